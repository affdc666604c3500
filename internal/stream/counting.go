// Package stream provides small I/O adapters shared by the archive reader
// and writer: byte counting, context-aware copying, and hashing passthrough.
package stream

import (
	"errors"
	"io"
	"math"
)

// ErrOverflow indicates a byte counter exceeded its maximum value.
var ErrOverflow = errors.New("ustar: counter overflow")

// CountingReader wraps a reader and tracks the stream offset.
type CountingReader struct {
	R io.Reader
	N int64
}

// Read implements io.Reader.
func (cr *CountingReader) Read(p []byte) (int, error) {
	n, err := cr.R.Read(p)
	if n > 0 {
		if cr.N > math.MaxInt64-int64(n) {
			return n, ErrOverflow
		}
		cr.N += int64(n)
	}
	return n, err
}

// CountingWriter wraps a writer and tracks the stream offset.
type CountingWriter struct {
	W io.Writer
	N int64
}

// Write implements io.Writer.
func (cw *CountingWriter) Write(p []byte) (int, error) {
	n, err := cw.W.Write(p)
	if n > 0 {
		if cw.N > math.MaxInt64-int64(n) {
			return n, ErrOverflow
		}
		cw.N += int64(n)
	}
	return n, err
}
