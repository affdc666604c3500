package ustar

import (
	"github.com/meigma/ustar/internal/tarblock"
)

// Header is the decoded form of one 512-byte member header, re-exported
// from internal/tarblock for public API.
type Header = tarblock.Header

// Format constants re-exported from internal/tarblock.
const (
	// BlockSize is the unit of alignment in an archive stream.
	BlockSize = tarblock.BlockSize

	// TypeRegular marks a regular file member, the only type this
	// package writes.
	TypeRegular = tarblock.TypeRegular

	// DefaultMode is the permission string written for every member.
	DefaultMode = tarblock.DefaultMode

	// MaxName is the longest member name a header can carry.
	MaxName = tarblock.MaxName

	// MaxSize is the largest member content length a header can carry.
	MaxSize = tarblock.MaxNumeric11
)

// Padding returns the number of NUL bytes that round n up to the next block
// boundary.
func Padding(n int64) int64 { return tarblock.Padding(n) }

// Occupancy returns the total archive bytes a member of the given content
// size consumes: one header block plus padded content.
func Occupancy(size int64) int64 { return tarblock.Occupancy(size) }
