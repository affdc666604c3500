package ustar

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"runtime"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/meigma/ustar/internal/extract"
	"github.com/meigma/ustar/internal/stream"
)

// DefaultReadAhead is the default byte budget for member content held in
// memory while extraction workers catch up.
const DefaultReadAhead = 64 << 20

// Extract writes every regular file in the archive beneath destDir.
//
// The archive is scanned sequentially while disk writes are handled by a
// pool of workers, with in-flight member content bounded by a byte budget.
// Each file is staged in a temporary file and renamed into place on
// completion, so a failed extraction never leaves partial content at a
// final path. Directory members and other non-regular members are skipped.
//
// Member names are treated as slash-separated paths relative to destDir,
// with any leading "/" dropped. A name that still escapes destDir after
// cleaning, such as "../x", fails with fs.ErrInvalid.
//
// With ExtractWithPaths or ExtractWithPrefix only matching members are
// written; the rest are skipped without their content being read, which on
// seekable sources means skipped bytes are seeked over.
//
// Extract consumes the stream through the end of the archive. The context
// is checked between members and during content copies.
func (r *Reader) Extract(ctx context.Context, destDir string, opts ...ExtractOption) error {
	cfg := extractConfig{
		workers:   runtime.GOMAXPROCS(0),
		readAhead: DefaultReadAhead,
		logger:    r.cfg.logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.compile()

	if r.closed {
		return ErrClosed
	}
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return fmt.Errorf("create destination %s: %w", destDir, err)
	}

	sink := extract.NewFileSink(destDir,
		extract.WithOverwrite(cfg.overwrite),
		extract.WithPreserveMode(cfg.preserveMode),
		extract.WithPreserveTimes(cfg.preserveTimes),
		extract.WithDirectWrites(cfg.directWrite),
	)

	cfg.log().Info("extracting archive", "dest", destDir, "workers", cfg.workers)
	if cfg.workers < 2 {
		return r.extractSerial(ctx, sink, cfg)
	}
	return r.extractPipelined(ctx, sink, cfg)
}

// extractSerial streams each member directly to disk without buffering.
func (r *Reader) extractSerial(ctx context.Context, sink *extract.FileSink, cfg extractConfig) error {
	var files, bytes int64
	buf := make([]byte, 32*1024)

	for entry, err := range r.Entries() {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !regularMember(entry.Header.TypeFlag) {
			cfg.log().Debug("skipped non-regular member", "name", entry.Header.Name)
			continue
		}
		if !cfg.selects(entry.Header.Name) {
			cfg.log().Debug("skipped filtered member", "name", entry.Header.Name)
			continue
		}
		memberPath, err := cleanMemberPath(entry.Header.Name)
		if err != nil {
			return err
		}
		if !sink.ShouldProcess(memberPath) {
			cfg.log().Debug("skipped existing file", "name", memberPath)
			continue
		}

		src, err := entry.Open()
		if err != nil {
			return err
		}
		n, err := placeStream(ctx, sink, memberOf(entry, memberPath), src, buf)
		_ = src.Close()
		if err != nil {
			return fmt.Errorf("extract %q: %w", memberPath, err)
		}
		files++
		bytes += n
		cfg.log().Debug("extracted file", "name", memberPath, "size", n)
		if cfg.progress != nil {
			cfg.progress(ProgressEvent{
				Stage:     StageExtracting,
				Path:      memberPath,
				BytesDone: bytes,
				FilesDone: int(files),
			})
		}
	}

	cfg.log().Info("extraction complete", "files", files, "bytes", bytes)
	return nil
}

// extractTask carries one member's buffered content to a disk worker.
type extractTask struct {
	member extract.Member
	data   []byte
	weight int64
}

// extractPipelined reads members into memory under the read-ahead budget
// and hands them to a pool of disk writers.
func (r *Reader) extractPipelined(ctx context.Context, sink *extract.FileSink, cfg extractConfig) error {
	budgetCap := cfg.readAhead
	if budgetCap < 1 {
		budgetCap = DefaultReadAhead
	}
	budget := semaphore.NewWeighted(budgetCap)
	tasks := make(chan extractTask)

	var files, bytes atomic.Int64

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer close(tasks)
		for entry, err := range r.Entries() {
			if err != nil {
				return err
			}
			if !regularMember(entry.Header.TypeFlag) {
				cfg.log().Debug("skipped non-regular member", "name", entry.Header.Name)
				continue
			}
			if !cfg.selects(entry.Header.Name) {
				cfg.log().Debug("skipped filtered member", "name", entry.Header.Name)
				continue
			}
			memberPath, err := cleanMemberPath(entry.Header.Name)
			if err != nil {
				return err
			}
			if !sink.ShouldProcess(memberPath) {
				cfg.log().Debug("skipped existing file", "name", memberPath)
				continue
			}

			weight := min(entry.Header.Size, budgetCap)
			if err := budget.Acquire(ctx, weight); err != nil {
				return err
			}
			data, err := readMember(entry)
			if err != nil {
				budget.Release(weight)
				return fmt.Errorf("read %q: %w", memberPath, err)
			}

			task := extractTask{member: memberOf(entry, memberPath), data: data, weight: weight}
			select {
			case tasks <- task:
			case <-ctx.Done():
				budget.Release(weight)
				return ctx.Err()
			}
		}
		return nil
	})

	for range cfg.workers {
		eg.Go(func() error {
			for task := range tasks {
				if ctx.Err() != nil {
					budget.Release(task.weight)
					continue
				}
				err := placeBytes(sink, task.member, task.data)
				budget.Release(task.weight)
				if err != nil {
					return fmt.Errorf("extract %q: %w", task.member.Path, err)
				}
				doneFiles := files.Add(1)
				doneBytes := bytes.Add(int64(len(task.data)))
				cfg.log().Debug("extracted file", "name", task.member.Path, "size", len(task.data))
				if cfg.progress != nil {
					cfg.progress(ProgressEvent{
						Stage:     StageExtracting,
						Path:      task.member.Path,
						BytesDone: doneBytes,
						FilesDone: int(doneFiles),
					})
				}
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	cfg.log().Info("extraction complete", "files", files.Load(), "bytes", bytes.Load())
	return nil
}

// regularMember reports whether the typeflag marks a regular file.
// Pre-POSIX archives mark regular files with a NUL typeflag.
func regularMember(typeFlag byte) bool {
	return typeFlag == TypeRegular || typeFlag == 0
}

// cleanMemberPath normalizes an archive member name to a path relative to
// the destination directory.
func cleanMemberPath(name string) (string, error) {
	p := path.Clean(strings.TrimPrefix(name, "/"))
	if p == "." || !fs.ValidPath(p) {
		return "", fmt.Errorf("extract %q: %w", name, fs.ErrInvalid)
	}
	return p, nil
}

func memberOf(e *Entry, memberPath string) extract.Member {
	return extract.Member{
		Path:    memberPath,
		Mode:    e.Header.FileInfo().Mode(),
		ModTime: e.Header.ModTime,
	}
}

// readMember buffers the member's full content in memory.
func readMember(e *Entry) ([]byte, error) {
	src, err := e.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data := make([]byte, e.Header.Size)
	if _, err := io.ReadFull(src, data); err != nil {
		return nil, err
	}
	return data, nil
}

func placeStream(ctx context.Context, sink *extract.FileSink, m extract.Member, src io.Reader, buf []byte) (int64, error) {
	c, err := sink.Writer(m)
	if err != nil {
		return 0, err
	}
	n, err := stream.CopyWithContext(ctx, c, src, buf)
	if err != nil {
		_ = c.Discard()
		return 0, err
	}
	if err := c.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func placeBytes(sink *extract.FileSink, m extract.Member, data []byte) error {
	c, err := sink.Writer(m)
	if err != nil {
		return err
	}
	if _, err := c.Write(data); err != nil {
		_ = c.Discard()
		return err
	}
	return c.Commit()
}
