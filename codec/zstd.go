package codec

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// zstdCodec implements Codec for the zstd compression algorithm.
type zstdCodec struct{}

var _ Codec = zstdCodec{}

func (zstdCodec) NewDecoder(src io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, err
	}
	return &zstdDecoder{dec}, nil
}

// zstdDecoder adapts zstd.Decoder's Close() to io.ReadCloser.
type zstdDecoder struct {
	*zstd.Decoder
}

func (d *zstdDecoder) Close() error {
	d.Decoder.Close()
	return nil
}

func (zstdCodec) NewEncoder(dst io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(dst)
}

func (zstdCodec) Ext(archive bool) string {
	if archive {
		return ".tar.zst"
	}
	return ".zst"
}
