package ustar

import (
	"log/slog"

	"github.com/meigma/ustar/internal/pathutil"
)

type extractConfig struct {
	overwrite     bool
	preserveMode  bool
	preserveTimes bool
	directWrite   bool
	workers       int
	readAhead     int64
	paths         []string
	prefix        string
	progress      ProgressFunc
	logger        *slog.Logger

	pathSet   map[string]struct{}
	dirPrefix string
}

func (c extractConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// compile builds the derived member filters from the path and prefix
// options.
func (c *extractConfig) compile() {
	if len(c.paths) > 0 {
		c.pathSet = make(map[string]struct{}, len(c.paths))
		for _, p := range c.paths {
			c.pathSet[p] = struct{}{}
		}
	}
	c.dirPrefix = pathutil.DirPrefix(c.prefix)
}

// selects reports whether a member name passes the configured filters.
func (c extractConfig) selects(name string) bool {
	if c.pathSet != nil {
		if _, ok := c.pathSet[name]; !ok {
			return false
		}
	}
	return pathutil.UnderPrefix(name, c.dirPrefix)
}

// ExtractOption configures Extract.
type ExtractOption func(*extractConfig)

// ExtractWithOverwrite replaces existing files instead of skipping them.
func ExtractWithOverwrite() ExtractOption {
	return func(c *extractConfig) {
		c.overwrite = true
	}
}

// ExtractWithPreserveMode applies each member's permission bits to the
// extracted file instead of umask defaults.
func ExtractWithPreserveMode() ExtractOption {
	return func(c *extractConfig) {
		c.preserveMode = true
	}
}

// ExtractWithPreserveTimes applies each member's modification time to the
// extracted file.
func ExtractWithPreserveTimes() ExtractOption {
	return func(c *extractConfig) {
		c.preserveTimes = true
	}
}

// ExtractWithDirectWrites writes files directly to their final paths
// instead of staging through temporary files. Faster, but an interrupted
// extraction can leave partial files behind.
func ExtractWithDirectWrites() ExtractOption {
	return func(c *extractConfig) {
		c.directWrite = true
	}
}

// ExtractWithWorkers sets the number of concurrent disk writers. Values
// below 2 disable the worker pool and stream members directly to disk.
// The default is runtime.GOMAXPROCS(0).
func ExtractWithWorkers(n int) ExtractOption {
	return func(c *extractConfig) {
		c.workers = n
	}
}

// ExtractWithReadAhead caps the bytes of member content buffered in memory
// ahead of the disk writers. Values below 1 restore DefaultReadAhead.
func ExtractWithReadAhead(limit int64) ExtractOption {
	return func(c *extractConfig) {
		c.readAhead = limit
	}
}

// ExtractWithPaths restricts extraction to the named members. Names are
// matched against member names exactly as stored in the archive; names
// absent from the archive are not an error.
func ExtractWithPaths(paths ...string) ExtractOption {
	return func(c *extractConfig) {
		c.paths = paths
	}
}

// ExtractWithPrefix restricts extraction to members under the directory
// prefix. An empty prefix or "." matches every member.
func ExtractWithPrefix(prefix string) ExtractOption {
	return func(c *extractConfig) {
		c.prefix = prefix
	}
}

// ExtractWithProgress reports progress after each extracted file. The
// callback receives cumulative counters and must be safe for concurrent
// calls; with a worker pool it runs on the worker goroutines.
func ExtractWithProgress(fn ProgressFunc) ExtractOption {
	return func(c *extractConfig) {
		c.progress = fn
	}
}

// ExtractWithLogger sets the logger used during extraction. By default
// Extract uses the reader's logger.
func ExtractWithLogger(logger *slog.Logger) ExtractOption {
	return func(c *extractConfig) {
		c.logger = logger
	}
}
