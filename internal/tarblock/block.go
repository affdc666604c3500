package tarblock

import (
	"bytes"
	"fmt"
	"time"
)

// Field offsets within a header block, per POSIX.1-1988.
const (
	offName     = 0
	offMode     = 100
	offUID      = 108
	offGID      = 116
	offSize     = 124
	offModTime  = 136
	offChecksum = 148
	offTypeFlag = 156
	offMagic    = 257
	offVersion  = 263
	endMagic    = 265

	lenName      = 100
	lenMode      = 8
	lenNumeric8  = 8
	lenNumeric12 = 12
	lenChecksum  = 8
)

var zeroBlock Block

// Block is one 512-byte tar header record.
type Block [BlockSize]byte

func (b *Block) name() []byte     { return b[offName : offName+lenName] }
func (b *Block) mode() []byte     { return b[offMode : offMode+lenMode] }
func (b *Block) uid() []byte      { return b[offUID : offUID+lenNumeric8] }
func (b *Block) gid() []byte      { return b[offGID : offGID+lenNumeric8] }
func (b *Block) size() []byte     { return b[offSize : offSize+lenNumeric12] }
func (b *Block) modTime() []byte  { return b[offModTime : offModTime+lenNumeric12] }
func (b *Block) checksum() []byte { return b[offChecksum : offChecksum+lenChecksum] }
func (b *Block) magic() []byte    { return b[offMagic:endMagic] }

// IsZero reports whether the block is entirely NUL bytes. Two such blocks
// terminate an archive; a lone one is skipped by readers.
func (b *Block) IsZero() bool {
	return bytes.Equal(b[:], zeroBlock[:])
}

// Reset clears the block.
func (b *Block) Reset() {
	*b = Block{}
}

// Checksum returns the unsigned byte sum of the block with the checksum
// field treated as spaces, the POSIX seeding convention.
func (b *Block) Checksum() int64 {
	var sum int64
	for i, c := range b {
		if i >= offChecksum && i < offChecksum+lenChecksum {
			c = ' '
		}
		sum += int64(c)
	}
	return sum
}

// Encode renders h into the block.
//
// Numeric fields are zero-padded NUL-terminated octal; the checksum is
// computed last over the space-seeded block, stored as six octal digits, a
// NUL, and a space, and recorded in h.Checksum. Encode fails with
// ErrFieldTooLarge when a field does not fit its fixed width, and with
// ErrFormat when Size is negative.
func (b *Block) Encode(h *Header) error {
	b.Reset()

	if len(h.Name) > MaxName {
		return fmt.Errorf("%w: name %d bytes exceeds %d", ErrFieldTooLarge, len(h.Name), MaxName)
	}
	copy(b.name(), h.Name)

	mode := h.Mode
	if mode == "" {
		mode = DefaultMode
	}
	if !formatString(b.mode(), mode) {
		return fmt.Errorf("%w: mode %q exceeds %d bytes", ErrFieldTooLarge, mode, MaxMode)
	}

	if !formatOctal(b.uid(), int64(h.UID)) {
		return fmt.Errorf("%w: uid %d not in [0, %d]", ErrFieldTooLarge, h.UID, int64(maxNumeric7))
	}
	if !formatOctal(b.gid(), int64(h.GID)) {
		return fmt.Errorf("%w: gid %d not in [0, %d]", ErrFieldTooLarge, h.GID, int64(maxNumeric7))
	}

	if h.Size < 0 {
		return fmt.Errorf("%w: negative size %d", ErrFormat, h.Size)
	}
	if !formatOctal(b.size(), h.Size) {
		return fmt.Errorf("%w: size %d exceeds %d", ErrFieldTooLarge, h.Size, int64(MaxNumeric11))
	}

	mtime := int64(0)
	if !h.ModTime.IsZero() {
		mtime = h.ModTime.Unix()
	}
	if !formatOctal(b.modTime(), mtime) {
		return fmt.Errorf("%w: mtime %d not in [0, %d]", ErrFieldTooLarge, mtime, int64(MaxNumeric11))
	}

	typ := h.TypeFlag
	if typ == 0 {
		typ = TypeRegular
	}
	b[offTypeFlag] = typ

	copy(b.magic(), Magic+Version)

	// Seed the checksum field with spaces, sum, then overwrite with the
	// six-digit octal value, NUL, space.
	copy(b.checksum(), "        ")
	sum := b.Checksum()
	formatOctal(b.checksum()[:7], sum) // 512*255 < 8^6, always fits
	b.checksum()[7] = ' '
	h.Checksum = sum

	return nil
}

// Decode parses the block into a Header.
//
// The name is truncated at the first NUL; the mode keeps its octal text with
// padding stripped. Numeric fields that are not well-formed octal fail with
// ErrFormat. The stored checksum is captured best-effort and never verified
// against the block: readers of this format historically do not, and
// changing that would reject archives the reference tooling accepts.
func (b *Block) Decode() (Header, error) {
	var h Header

	name := b.name()
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	h.Name = string(name)

	// The terminator byte at offset 107 is not part of the mode text.
	h.Mode = string(trimPadding(b.mode()[:MaxMode]))

	uid, err := parseOctal(b.uid())
	if err != nil {
		return Header{}, fmt.Errorf("uid: %w", err)
	}
	h.UID = int(uid)

	gid, err := parseOctal(b.gid())
	if err != nil {
		return Header{}, fmt.Errorf("gid: %w", err)
	}
	h.GID = int(gid)

	h.Size, err = parseOctal(b.size())
	if err != nil {
		return Header{}, fmt.Errorf("size: %w", err)
	}

	mtime, err := parseOctal(b.modTime())
	if err != nil {
		return Header{}, fmt.Errorf("mtime: %w", err)
	}
	h.ModTime = time.Unix(mtime, 0).UTC()

	if sum, err := parseOctal(b.checksum()); err == nil {
		h.Checksum = sum
	}

	h.TypeFlag = b[offTypeFlag]
	h.Magic = string(b.magic())

	return h, nil
}
