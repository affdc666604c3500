package ustar

import (
	"log/slog"
	"time"
)

// writeConfig holds configuration for archive writing.
type writeConfig struct {
	leaveOpen bool
	logger    *slog.Logger
}

// WriteOption configures a Writer.
type WriteOption func(*writeConfig)

// WriteWithLeaveOpen keeps the underlying stream open when the Writer is
// closed. By default the Writer closes any stream that implements io.Closer.
func WriteWithLeaveOpen() WriteOption {
	return func(cfg *writeConfig) {
		cfg.leaveOpen = true
	}
}

// WriteWithLogger sets the logger for write operations. The default discards
// all log output.
func WriteWithLogger(logger *slog.Logger) WriteOption {
	return func(cfg *writeConfig) {
		cfg.logger = logger
	}
}

// createConfig holds configuration for one member entry.
type createConfig struct {
	modTime time.Time
}

// CreateOption configures a member entry.
type CreateOption func(*createConfig)

// CreateWithModTime sets the member's modification time. Archives store
// whole seconds; sub-second precision is dropped on encode.
func CreateWithModTime(t time.Time) CreateOption {
	return func(cfg *createConfig) {
		cfg.modTime = t
	}
}
