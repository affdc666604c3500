// Package tarblock implements the fixed 512-byte USTAR header record.
//
// The package covers exactly the POSIX.1-1988 ustar interchange layout for
// regular files: fixed-offset text fields, NUL-terminated octal numerics, and
// the space-seeded header checksum. Extended formats (PAX records, GNU long
// names, sparse maps) are out of scope.
package tarblock

import (
	"errors"
	"io/fs"
	"time"
)

// Sentinel errors for header encoding and decoding.
var (
	// ErrFormat is returned when a numeric header field is not valid octal.
	ErrFormat = errors.New("ustar: malformed header field")

	// ErrFieldTooLarge is returned when a header field does not fit its
	// fixed-width encoding.
	ErrFieldTooLarge = errors.New("ustar: header field too large")
)

const (
	// BlockSize is the unit of alignment in a tar stream. Headers occupy one
	// block and member content is padded to a block boundary.
	BlockSize = 512

	// TypeRegular marks a regular file member.
	TypeRegular = '0'

	// DefaultMode is the permission field written for every member.
	DefaultMode = "0000644"

	// Magic and Version identify the ustar interchange format.
	Magic   = "ustar\x00"
	Version = "00"

	// MaxName is the longest member name an ustar header can carry.
	MaxName = 100

	// MaxMode is the widest mode string an ustar header can carry.
	MaxMode = 7

	// MaxNumeric11 bounds the 11-digit octal fields (size, mtime).
	MaxNumeric11 = 1<<33 - 1 // 8^11 - 1

	// maxNumeric7 bounds the 7-digit octal fields (mode, uid, gid).
	maxNumeric7 = 1<<21 - 1 // 8^7 - 1
)

// Header is the decoded form of one 512-byte ustar header record.
//
// String fields hold the field text as stored in the archive: Name is
// truncated at the first NUL, Mode keeps its octal spelling ("0000644")
// rather than parsed permission bits. Checksum and Magic are populated on
// decode for callers that want to look; neither is verified.
type Header struct {
	// Name is the member name, at most MaxName bytes when encoding.
	Name string

	// Mode is the octal permission string, at most MaxMode bytes when
	// encoding. Empty encodes as DefaultMode.
	Mode string

	// UID and GID are numeric owner IDs, in [0, 8^7). Both default to 0.
	UID int
	GID int

	// Size is the member content length in bytes, in [0, MaxNumeric11].
	Size int64

	// ModTime is the modification time, encoded as whole seconds since the
	// Unix epoch. The zero time encodes as epoch second 0.
	ModTime time.Time

	// Checksum is the header checksum as stored in the archive. It is
	// computed on encode and read back verbatim on decode; decode never
	// verifies it against the block contents.
	Checksum int64

	// TypeFlag is the member type. The zero value encodes as TypeRegular;
	// this module never writes anything else.
	TypeFlag byte

	// Magic holds the raw magic+version bytes observed on decode. Encode
	// ignores it and always writes the canonical ustar magic.
	Magic string
}

// ModePerm parses the octal mode string into permission bits.
// An empty mode yields the DefaultMode permissions.
func (h *Header) ModePerm() (fs.FileMode, error) {
	mode := h.Mode
	if mode == "" {
		mode = DefaultMode
	}
	v, err := parseOctal([]byte(mode))
	if err != nil {
		return 0, err
	}
	return fs.FileMode(v) & fs.ModePerm, nil
}

// FileInfo returns an fs.FileInfo describing the member.
// Unparseable mode strings degrade to DefaultMode permissions.
func (h *Header) FileInfo() fs.FileInfo {
	return headerInfo{h}
}

// headerInfo adapts a Header to fs.FileInfo.
type headerInfo struct {
	h *Header
}

func (i headerInfo) Name() string { return baseName(i.h.Name) }
func (i headerInfo) Size() int64  { return i.h.Size }

func (i headerInfo) Mode() fs.FileMode {
	perm, err := i.h.ModePerm()
	if err != nil {
		return 0o644
	}
	return perm
}

func (i headerInfo) ModTime() time.Time { return i.h.ModTime }
func (i headerInfo) IsDir() bool        { return false }
func (i headerInfo) Sys() any           { return nil }

// baseName returns the final element of a slash-separated member name.
func baseName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[i+1:]
		}
	}
	return name
}

// Padding returns the number of NUL bytes needed to round n up to the next
// block boundary, in [0, BlockSize).
func Padding(n int64) int64 {
	return -n & (BlockSize - 1)
}

// Occupancy returns the total archive bytes one member consumes: one header
// block plus content rounded up to a block boundary.
func Occupancy(size int64) int64 {
	return BlockSize + size + Padding(size)
}
