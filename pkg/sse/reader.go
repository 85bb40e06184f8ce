// Package sse provides the line sources for agent run streams: a tee-capable
// line reader over any io.Reader, an HTTP opener for live run streams and a
// follower for capture files that are still being written.
//
// The reader hands out raw lines one at a time and never interprets them.
// Field parsing belongs to the stream decoder.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"bufio"
	"io"
	"iter"
)

const (
	initialBufferSize = 64 * 1024
	maxLineSize       = 1024 * 1024
)

// Reader reads raw stream lines from a source io.Reader, optionally writing
// every line verbatim to a destination io.Writer.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │  Reader.Next()   │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │       line       │
// └──────────────────┘
//
// With a destination set, the caller gets a byte-exact capture of the stream
// (modulo line terminators, which are normalized to "\n") that can be
// decoded again later.
type Reader struct {
	scanner *bufio.Scanner
	dest    io.Writer
	count   int
	err     error
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a Reader over src that writes each raw line to dest.
// A nil dest disables the tee.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialBufferSize), maxLineSize)

	return &Reader{
		scanner: scanner,
		dest:    dest,
	}
}

// Next returns the next raw line. It blocks until a full line is available
// and returns io.EOF once the source is exhausted.
func (r *Reader) Next() (string, error) {
	if r.err != nil {
		return "", r.err
	}

	if !r.scanner.Scan() {
		r.err = r.scanner.Err()
		if r.err == nil {
			r.err = io.EOF
		}
		return "", r.err
	}

	line := r.scanner.Text()

	if r.dest != nil {
		// bufio.Scanner strips the newline from the Scan() so we reinsert it here.
		if _, err := io.WriteString(r.dest, line+"\n"); err != nil {
			r.err = err
			return "", err
		}
	}

	r.count++
	return line, nil
}

// Lines returns the remaining lines as a lazy sequence. A line is read from
// the source only when the consumer asks for it. The sequence stops at the
// end of the source or at the first error, which is then reported by Err.
func (r *Reader) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			line, err := r.Next()
			if err != nil {
				return
			}
			if !yield(line) {
				return
			}
		}
	}
}

// Err returns the first non-EOF error encountered by the Reader.
func (r *Reader) Err() error {
	if r.err == io.EOF {
		return nil
	}
	return r.err
}

// Count returns the number of lines read so far.
func (r *Reader) Count() int {
	return r.count
}
