package codec

import (
	"io"

	"github.com/ulikunitz/xz"
)

// xzCodec implements Codec for the xz compression algorithm.
type xzCodec struct{}

var _ Codec = xzCodec{}

func (xzCodec) NewDecoder(src io.Reader) (io.ReadCloser, error) {
	r, err := xz.NewReader(src)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(r), nil
}

func (xzCodec) NewEncoder(dst io.Writer) (io.WriteCloser, error) {
	return xz.NewWriter(dst)
}

func (xzCodec) Ext(archive bool) string {
	if archive {
		return ".tar.xz"
	}
	return ".xz"
}
