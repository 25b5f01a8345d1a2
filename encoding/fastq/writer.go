package fastq

import (
	"bufio"
	"io"
)

// Writer writes FASTQ records. Call Flush when done.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter returns a Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes r as a four-line record with a bare '+' separator.
func (w *Writer) Write(r *Read) error {
	w.writeln("@", r.ID)
	w.writeln(r.Seq)
	w.writeln("+")
	w.writeln(r.Qual)
	return w.err
}

func (w *Writer) writeln(parts ...string) {
	for _, p := range parts {
		if w.err != nil {
			return
		}
		_, w.err = w.w.WriteString(p)
	}
	if w.err == nil {
		w.err = w.w.WriteByte('\n')
	}
}

// Flush writes any buffered data and returns the first error seen.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}
