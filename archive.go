package ustar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meigma/ustar/internal/stream"
)

// DefaultMaxFiles is the default limit used when no MaxFiles option is set.
const DefaultMaxFiles = 200_000

// Archive writes the regular files under dir to dst as an archive.
//
// Files are walked in lexical order and stored with slash-separated paths
// relative to dir. Each file becomes one pre-sized member; directories are
// implied by member names and symbolic links are skipped. A file whose
// relative path exceeds 100 bytes fails the walk with ErrFieldTooLarge.
//
// Archive finalizes the stream with the zero-block footer but does not
// close dst; the destination (and any compression layer around it) belongs
// to the caller. The context is checked between files and during each copy.
func Archive(ctx context.Context, dir string, dst io.Writer, opts ...ArchiveOption) error {
	cfg := archiveConfig{maxFiles: DefaultMaxFiles}
	for _, opt := range opts {
		opt(&cfg)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return err
	}
	defer root.Close()

	a := &archiver{cfg: cfg}
	a.log().Info("archiving directory", "dir", dir)

	w := NewWriter(dst, WriteWithLeaveOpen(), WriteWithLogger(cfg.logger))
	if err := a.writeFiles(ctx, root, w); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	a.log().Info("directory archived", "dir", dir, "entries", w.entries, "bytes", w.Offset())
	return nil
}

// archiver holds state for directory archiving.
type archiver struct {
	cfg archiveConfig

	files int
	bytes int64
}

// writeFiles walks the directory tree and writes one member per regular file.
func (a *archiver) writeFiles(ctx context.Context, root *os.Root, w *Writer) error {
	buf := make([]byte, 32*1024)

	return fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			a.log().Debug("skipped symlink", "path", path)
			return nil
		}
		if !d.Type().IsRegular() {
			a.log().Debug("skipped irregular file", "path", path)
			return nil
		}

		if a.cfg.maxFiles > 0 && a.files >= a.cfg.maxFiles {
			return fmt.Errorf("archive %q: %w: limit %d", path, ErrTooManyFiles, a.cfg.maxFiles)
		}

		if err := a.writeFile(ctx, root, w, path, buf); err != nil {
			if errors.Is(err, ErrSymlink) {
				// The path became a symlink after the walk saw it.
				a.log().Debug("skipped symlink", "path", path)
				return nil
			}
			return err
		}
		return nil
	})
}

// writeFile emits one file as a pre-sized member.
func (a *archiver) writeFile(ctx context.Context, root *os.Root, w *Writer, path string, buf []byte) error {
	f, err := openFileNoFollow(root, filepath.FromSlash(path))
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}

	modTime := info.ModTime()
	if !a.cfg.modTime.IsZero() {
		modTime = a.cfg.modTime
	}

	entry, err := w.Create(path, CreateWithModTime(modTime))
	if err != nil {
		return err
	}
	if a.cfg.owners {
		entry.Header.UID, entry.Header.GID = fileOwner(info)
	}
	cw, err := entry.OpenWriter(info.Size())
	if err != nil {
		return err
	}

	if _, err := stream.CopyWithContext(ctx, cw, f, buf); err != nil {
		return fmt.Errorf("archive %q: %w", path, err)
	}
	if err := cw.Close(); err != nil {
		return err
	}

	a.files++
	a.bytes += info.Size()
	if a.cfg.progress != nil {
		a.cfg.progress(ProgressEvent{
			Stage:     StageArchiving,
			Path:      path,
			BytesDone: a.bytes,
			FilesDone: a.files,
		})
	}
	return nil
}

// log returns the logger, falling back to a discard logger if nil.
func (a *archiver) log() *slog.Logger {
	if a.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.cfg.logger
}
