package ustar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/ustar/internal/stream"
)

// Summary describes an archive's contents after a full scan.
type Summary struct {
	// Entries lists every member in archive order.
	Entries []EntrySummary

	// ContentBytes is the sum of all member sizes.
	ContentBytes int64

	// ArchiveBytes is the total bytes consumed from the stream, including
	// headers, padding, and the footer when one was present.
	ArchiveBytes int64
}

// EntrySummary describes a single archive member.
type EntrySummary struct {
	Name    string
	Size    int64
	ModTime time.Time

	// Digest is the canonical digest of the member's content. It is empty
	// unless the archive was inspected with InspectWithDigests.
	Digest digest.Digest
}

// FileCount returns the number of members in the archive.
func (s *Summary) FileCount() int {
	return len(s.Entries)
}

// Overhead returns the bytes spent on headers, padding, and the footer.
func (s *Summary) Overhead() int64 {
	return s.ArchiveBytes - s.ContentBytes
}

// InspectOption configures an Inspect operation.
type InspectOption func(*inspectConfig)

type inspectConfig struct {
	digests bool
	logger  *slog.Logger
}

func (c inspectConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// InspectWithDigests computes each member's content digest during the scan.
// Without it, member content is skipped and only metadata is collected.
func InspectWithDigests() InspectOption {
	return func(cfg *inspectConfig) {
		cfg.digests = true
	}
}

// InspectWithLogger sets the logger used during inspection.
func InspectWithLogger(logger *slog.Logger) InspectOption {
	return func(cfg *inspectConfig) {
		cfg.logger = logger
	}
}

// Inspect scans the archive from src and summarizes its contents.
//
// This makes a single pass collecting each member's name, size, and
// modification time along with archive totals. By default member content is
// skipped, which is cheap when src supports seeking; InspectWithDigests
// reads every member and records its content digest.
//
// The stream is consumed through the end of the archive and is not closed.
func Inspect(ctx context.Context, src io.Reader, opts ...InspectOption) (*Summary, error) {
	cfg := inspectConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := NewReader(src, ReadWithLeaveOpen(), ReadWithLogger(cfg.logger))
	defer func() { _ = r.Close() }()

	s := &Summary{}
	buf := make([]byte, 32*1024)

	for entry, err := range r.Entries() {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		es := EntrySummary{
			Name:    entry.Header.Name,
			Size:    entry.Header.Size,
			ModTime: entry.Header.ModTime,
		}
		if cfg.digests {
			es.Digest, err = digestEntry(ctx, entry, buf)
			if err != nil {
				return nil, fmt.Errorf("digest %q: %w", entry.Header.Name, err)
			}
		}

		s.Entries = append(s.Entries, es)
		s.ContentBytes += entry.Header.Size
	}

	s.ArchiveBytes = r.Offset()
	cfg.log().Info("inspection complete",
		"files", s.FileCount(),
		"content_bytes", s.ContentBytes,
		"archive_bytes", s.ArchiveBytes)
	return s, nil
}

// digestEntry consumes the member's content through a hashing tee.
func digestEntry(ctx context.Context, e *Entry, buf []byte) (digest.Digest, error) {
	src, err := e.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	digester := digest.Canonical.Digester()
	hr := stream.NewHashingReader(src, digester.Hash())
	if _, err := stream.CopyWithContext(ctx, io.Discard, hr, buf); err != nil {
		return "", err
	}
	return digester.Digest(), nil
}
