package stream

import (
	"hash"
	"io"
)

// HashingReader wraps an io.Reader and computes a hash of all data read.
type HashingReader struct {
	r io.Reader
	h hash.Hash
}

// NewHashingReader creates a reader that computes a hash while reading.
func NewHashingReader(r io.Reader, h hash.Hash) *HashingReader {
	return &HashingReader{r: r, h: h}
}

// Read implements io.Reader.
func (hr *HashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		_, _ = hr.h.Write(p[:n])
	}
	return n, err
}

// Sum returns the hash sum computed so far.
func (hr *HashingReader) Sum() []byte {
	return hr.h.Sum(nil)
}
