// Package fasta reads FASTA records one at a time. A record is a '>' header
// line followed by sequence lines:
//
// >read1 some description
// ACGTAC
// GAGG
// >read2
// ACGT
//
// The record name is the header text up to the first space. Sequence lines
// are concatenated and upper-cased.
package fasta

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// maxLineLength bounds a single FASTA line.
const maxLineLength = 64 * 1024 * 1024

// Record is one named FASTA sequence.
type Record struct {
	Name string
	Seq  string
}

// Scanner reads FASTA records from a stream. It is not safe for concurrent
// use.
type Scanner struct {
	b        *bufio.Scanner
	err      error
	header   []byte
	seq      bytes.Buffer
	lineNo   int
	finished bool
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(nil, maxLineLength)
	return &Scanner{b: b}
}

// Scan reads the next record into rec. It returns false at the end of the
// stream or on error; check Err to tell them apart.
func (s *Scanner) Scan(rec *Record) bool {
	if s.err != nil || s.finished {
		return false
	}
	for s.b.Scan() {
		s.lineNo++
		line := bytes.TrimRight(s.b.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] != '>' {
			if s.header == nil {
				s.err = errors.Errorf("fasta: line %d: sequence data before the first header", s.lineNo)
				return false
			}
			s.seq.Write(bytes.ToUpper(line))
			continue
		}
		name := recordName(line)
		if s.header == nil {
			s.header = name
			continue
		}
		s.emit(rec)
		s.header = name
		return true
	}
	if err := s.b.Err(); err != nil {
		s.err = errors.Wrap(err, "fasta: read")
		return false
	}
	s.finished = true
	if s.header == nil {
		return false
	}
	s.emit(rec)
	return true
}

func (s *Scanner) emit(rec *Record) {
	rec.Name = string(s.header)
	rec.Seq = s.seq.String()
	s.seq.Reset()
}

func recordName(header []byte) []byte {
	name := header[1:]
	if i := bytes.IndexAny(name, " \t"); i >= 0 {
		name = name[:i]
	}
	return append([]byte{}, name...)
}

// Err returns the error that stopped Scan, if any.
func (s *Scanner) Err() error { return s.err }

// ReadAll returns every record in r.
func ReadAll(r io.Reader) ([]Record, error) {
	var (
		s    = NewScanner(r)
		recs []Record
		rec  Record
	)
	for s.Scan(&rec) {
		recs = append(recs, rec)
	}
	return recs, s.Err()
}
