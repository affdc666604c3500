package ustar

import "log/slog"

// readConfig holds configuration for archive reading.
type readConfig struct {
	leaveOpen bool
	logger    *slog.Logger
}

// ReadOption configures a Reader.
type ReadOption func(*readConfig)

// ReadWithLeaveOpen keeps the underlying stream open when the Reader is
// closed. By default the Reader closes any stream that implements io.Closer.
func ReadWithLeaveOpen() ReadOption {
	return func(cfg *readConfig) {
		cfg.leaveOpen = true
	}
}

// ReadWithLogger sets the logger for read operations. The default discards
// all log output.
func ReadWithLogger(logger *slog.Logger) ReadOption {
	return func(cfg *readConfig) {
		cfg.logger = logger
	}
}
