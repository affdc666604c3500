package codec

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// gzipCodec implements Codec for the gzip compression algorithm.
type gzipCodec struct{}

var _ Codec = gzipCodec{}

func (gzipCodec) NewDecoder(src io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(src)
}

func (gzipCodec) NewEncoder(dst io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(dst), nil
}

func (gzipCodec) Ext(archive bool) string {
	if archive {
		return ".tar.gz"
	}
	return ".gz"
}
