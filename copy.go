package ustar

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/meigma/ustar/internal/pathutil"
	"github.com/meigma/ustar/internal/stream"
)

// CopyOption configures CopyTo operations.
type CopyOption func(*copyConfig)

type copyConfig struct {
	paths  []string
	prefix string
	logger *slog.Logger
}

// CopyWithPaths restricts the copy to the named members. Names that are not
// valid slash paths never match; names absent from the source are not an
// error.
func CopyWithPaths(paths ...string) CopyOption {
	return func(c *copyConfig) {
		c.paths = paths
	}
}

// CopyWithPrefix restricts the copy to members under the directory prefix.
// An empty prefix or "." matches every member.
func CopyWithPrefix(prefix string) CopyOption {
	return func(c *copyConfig) {
		c.prefix = prefix
	}
}

// CopyWithLogger sets the logger for copy operations. The default discards
// all log output.
func CopyWithLogger(logger *slog.Logger) CopyOption {
	return func(c *copyConfig) {
		c.logger = logger
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (c copyConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// CopyTo transfers members from the Reader into dst, re-encoding each
// header and streaming content without buffering whole members.
//
// Header metadata survives the transfer: name, mode, owner IDs,
// modification time, and type flag are carried over, so repacking an
// archive preserves what its members declared. Without filter options every
// member is copied. With CopyWithPaths or CopyWithPrefix only matching
// members are transferred; skipped members are never read, which on
// seekable sources means their content is seeked over rather than copied.
//
// CopyTo does not finalize dst; call dst.Close to append the footer.
func (r *Reader) CopyTo(ctx context.Context, dst *Writer, opts ...CopyOption) error {
	cfg := copyConfig{logger: r.cfg.logger}
	for _, opt := range opts {
		opt(&cfg)
	}

	var want map[string]struct{}
	if cfg.paths != nil {
		want = make(map[string]struct{}, len(cfg.paths))
		for _, p := range cfg.paths {
			if !fs.ValidPath(p) {
				continue
			}
			want[p] = struct{}{}
		}
	}
	prefix := pathutil.DirPrefix(cfg.prefix)

	log := cfg.log()
	buf := make([]byte, 32*1024)
	var members int
	var bytes int64
	for e, err := range r.Entries() {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := e.Header.Name
		if want != nil {
			if _, ok := want[name]; !ok {
				continue
			}
		}
		if !pathutil.UnderPrefix(name, prefix) {
			continue
		}

		if err := copyMember(ctx, dst, e, buf); err != nil {
			return fmt.Errorf("copy %q: %w", name, err)
		}
		members++
		bytes += e.Header.Size
		log.Debug("copied member", "name", name, "size", e.Header.Size)
	}

	log.Info("copy complete", "members", members, "bytes", bytes)
	return nil
}

// copyMember recreates one member in dst and streams its content.
func copyMember(ctx context.Context, dst *Writer, e *Entry, buf []byte) error {
	out, err := dst.Create(e.Header.Name, CreateWithModTime(e.Header.ModTime))
	if err != nil {
		return err
	}
	out.Header.Mode = e.Header.Mode
	out.Header.UID = e.Header.UID
	out.Header.GID = e.Header.GID
	out.Header.TypeFlag = e.Header.TypeFlag

	cw, err := out.OpenWriter(e.Header.Size)
	if err != nil {
		return err
	}
	rc, err := e.Open()
	if err != nil {
		return err
	}
	if _, err := stream.CopyWithContext(ctx, cw, rc, buf); err != nil {
		return err
	}
	if err := rc.Close(); err != nil {
		return err
	}
	return cw.Close()
}
