package trace

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/pagesim/mem/vm"
)

// A Record is one decoded line of a trace.
type Record struct {
	Raw       string
	Reference vm.Reference
}

// A Reader produces the records of a trace in order. Next returns io.EOF when
// the trace is exhausted.
type Reader interface {
	Next() (Record, error)
}

// A ReadCloser is a Reader that holds resources.
type ReadCloser interface {
	Reader
	io.Closer
}

type streamReader struct {
	in      *bufio.Reader
	format  Format
	buf     []byte
	numRead int
}

// NewReader reads fixed-width records from r.
func NewReader(r io.Reader, format Format) Reader {
	return &streamReader{
		in:     bufio.NewReader(r),
		format: format,
		buf:    make([]byte, format.RecordLen()),
	}
}

func (s *streamReader) Next() (Record, error) {
	n, err := io.ReadFull(s.in, s.buf)
	switch {
	case errors.Is(err, io.EOF):
		return Record{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		if len(bytes.TrimSpace(s.buf[:n])) == 0 {
			return Record{}, io.EOF
		}

		return Record{}, fmt.Errorf("record %d is truncated: %q",
			s.numRead+1, s.buf[:n])
	case err != nil:
		return Record{}, err
	}

	s.numRead++

	ref, err := s.format.Decode(s.buf)
	if err != nil {
		return Record{}, fmt.Errorf("record %d: %w", s.numRead, err)
	}

	rec := Record{Raw: string(s.buf), Reference: ref}

	if err := s.skipLineTerminator(); err != nil {
		return Record{}, fmt.Errorf("record %d: %w", s.numRead, err)
	}

	return rec, nil
}

func (s *streamReader) skipLineTerminator() error {
	b, err := s.in.ReadByte()
	if errors.Is(err, io.EOF) {
		return nil
	}

	if err != nil {
		return err
	}

	if b == '\r' {
		b, err = s.in.ReadByte()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}
	}

	if b != '\n' {
		return fmt.Errorf("expected end of line, found %q", b)
	}

	return nil
}

type readCloser struct {
	Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var errs []error

	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
