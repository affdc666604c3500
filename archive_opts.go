package ustar

import (
	"log/slog"
	"time"
)

// archiveConfig holds configuration for directory archiving.
type archiveConfig struct {
	modTime  time.Time
	maxFiles int
	owners   bool
	progress ProgressFunc
	logger   *slog.Logger
}

// ArchiveOption configures directory archiving.
type ArchiveOption func(*archiveConfig)

// ArchiveWithModTime stamps every member with the given modification time
// instead of each file's own, making archive bytes reproducible across runs.
func ArchiveWithModTime(t time.Time) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.modTime = t
	}
}

// ArchiveWithMaxFiles limits the number of files included in the archive.
// Zero or negative means no limit; the default is DefaultMaxFiles.
func ArchiveWithMaxFiles(n int) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.maxFiles = n
	}
}

// ArchiveWithOwners records each file's numeric UID and GID instead of the
// default zero IDs. IDs wider than the seven-digit octal header field fail
// with ErrFieldTooLarge. On non-Unix systems the recorded IDs stay zero.
func ArchiveWithOwners() ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.owners = true
	}
}

// ArchiveWithProgress reports progress after each archived file. The
// callback receives cumulative counters and runs on the archiving
// goroutine; slow callbacks slow the archive.
func ArchiveWithProgress(fn ProgressFunc) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.progress = fn
	}
}

// ArchiveWithLogger sets the logger for the archiving operation. The default
// discards all log output.
func ArchiveWithLogger(logger *slog.Logger) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.logger = logger
	}
}
