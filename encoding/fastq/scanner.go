// Package fastq reads and writes FASTQ records with phred+33 qualities.
package fastq

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var (
	// ErrShort is returned when a record is cut off by the end of the stream.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when a record is malformed.
	ErrInvalid = errors.New("invalid FASTQ file")
)

// qualOffset is the phred+33 encoding offset.
const qualOffset = 33

// MaxQual is the largest quality that fits in a printable phred+33 byte.
const MaxQual = '~' - qualOffset

// Read is one FASTQ record. ID holds the header without its leading '@'.
type Read struct {
	ID, Seq, Qual string
}

// Name returns the ID up to the first space.
func (r *Read) Name() string {
	if i := strings.IndexAny(r.ID, " \t"); i >= 0 {
		return r.ID[:i]
	}
	return r.ID
}

// Quals decodes the quality string into phred scores.
func (r *Read) Quals() []int {
	q := make([]int, len(r.Qual))
	for i := 0; i < len(r.Qual); i++ {
		q[i] = int(r.Qual[i]) - qualOffset
	}
	return q
}

// NewRead builds a read from phred scores, clamping each to [0, MaxQual].
func NewRead(id, seq string, quals []int) Read {
	b := make([]byte, len(quals))
	for i, q := range quals {
		switch {
		case q < 0:
			q = 0
		case q > MaxQual:
			q = MaxQual
		}
		b[i] = byte(q + qualOffset)
	}
	return Read{ID: id, Seq: seq, Qual: string(b)}
}

var errEOF = errors.New("eof")

// Scanner reads FASTQ records from a stream. It checks that headers begin
// with '@', that the separator line begins with '+', and that sequence and
// quality have the same length. Scanners are not threadsafe.
type Scanner struct {
	b   *bufio.Scanner
	err error
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{b: bufio.NewScanner(r)}
}

// Scan reads the next record into read. Once Scan returns false it never
// returns true again; check Err to learn whether the stream ended cleanly.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	if !f.b.Scan() {
		if f.err = f.b.Err(); f.err == nil {
			f.err = errEOF
		}
		return false
	}
	id := f.b.Bytes()
	if len(id) == 0 || id[0] != '@' {
		f.err = ErrInvalid
		return false
	}
	read.ID = string(id[1:])
	if !f.scan() {
		return false
	}
	read.Seq = f.b.Text()
	if !f.scan() {
		return false
	}
	if sep := f.b.Bytes(); len(sep) == 0 || sep[0] != '+' {
		f.err = ErrInvalid
		return false
	}
	if !f.scan() {
		return false
	}
	read.Qual = f.b.Text()
	if len(read.Qual) != len(read.Seq) {
		f.err = ErrInvalid
		return false
	}
	return true
}

func (f *Scanner) scan() bool {
	ok := f.b.Scan()
	if !ok {
		if f.err = f.b.Err(); f.err == nil {
			f.err = ErrShort
		}
	}
	return ok
}

// Err returns the scanning error, if any.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}
