package codec

import (
	"bufio"
	"bytes"
	"io"
)

// Leading magic bytes for the supported compression formats.
var magics = []struct {
	codec Codec
	magic []byte
}{
	{Gzip, []byte{0x1f, 0x8b}},
	{Zstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	{Xz, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
}

// Detect sniffs the compression format of src from its leading bytes.
//
// It returns the matching codec, or nil when src does not start with a
// recognized compression magic, together with a replacement reader that
// yields the complete stream including the sniffed bytes.
func Detect(src io.Reader) (Codec, io.Reader, error) {
	br := bufio.NewReader(src)
	hdr, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return nil, br, err
	}
	for _, m := range magics {
		if bytes.HasPrefix(hdr, m.magic) {
			return m.codec, br, nil
		}
	}
	return nil, br, nil
}
