// Package codec layers compression over archive streams.
//
// Archives themselves are always plain ustar; a Codec wraps the underlying
// stream on either side (encoder around the destination before writing,
// decoder around the source before reading), so the archive layer never
// sees compressed bytes.
package codec

import (
	"io"
	"strings"
)

// Codec has methods to create compressor/encoder and decompressor/decoder.
type Codec interface {
	// NewDecoder creates a decoder to decompress contents from the given io.Reader.
	NewDecoder(src io.Reader) (io.ReadCloser, error)

	// NewEncoder creates an encoder to compress contents to the given io.Writer.
	NewEncoder(dst io.Writer) (io.WriteCloser, error)

	// Ext returns the file extension for the codec, ".tar.gz" style when
	// archive is true and ".gz" style otherwise.
	Ext(archive bool) string
}

// Codecs available in this package.
var (
	Gzip Codec = gzipCodec{}
	Zstd Codec = zstdCodec{}
	Xz   Codec = xzCodec{}
)

// ForPath returns the codec matching the path's extension, or nil when the
// path names an uncompressed archive.
func ForPath(path string) Codec {
	for _, c := range []Codec{Gzip, Zstd, Xz} {
		if strings.HasSuffix(path, c.Ext(true)) || strings.HasSuffix(path, c.Ext(false)) {
			return c
		}
	}
	return nil
}
