package ustar

import (
	"errors"

	"github.com/meigma/ustar/internal/tarblock"
)

// Sentinel errors re-exported from internal/tarblock.
var (
	// ErrFormat is returned when a numeric header field is not valid octal.
	ErrFormat = tarblock.ErrFormat

	// ErrFieldTooLarge is returned when a header field does not fit its
	// fixed-width encoding.
	ErrFieldTooLarge = tarblock.ErrFieldTooLarge
)

// Sentinel errors specific to the ustar package.
var (
	// ErrPosition is returned when an entry is opened or finalized while
	// the archive stream is not at the position the entry expects.
	ErrPosition = errors.New("ustar: stream position mismatch")

	// ErrWriteTooLong is returned when writes to a pre-sized entry exceed
	// the declared content size.
	ErrWriteTooLong = errors.New("ustar: write exceeds declared size")

	// ErrClosed is returned when a reader, writer, or content view is used
	// after it was closed or invalidated.
	ErrClosed = errors.New("ustar: closed")

	// ErrNotReadable is returned when content is read from an entry that
	// belongs to a writer.
	ErrNotReadable = errors.New("ustar: entry not readable")

	// ErrNotWritable is returned when content is written to an entry that
	// belongs to a reader.
	ErrNotWritable = errors.New("ustar: entry not writable")

	// ErrTooManyFiles is returned when the file count exceeds the
	// configured limit.
	ErrTooManyFiles = errors.New("ustar: too many files")

	// ErrSymlink is returned when a symlink is encountered where not allowed.
	ErrSymlink = errors.New("ustar: symlink")
)
