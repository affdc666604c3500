package ustar

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"

	"github.com/meigma/ustar/internal/stream"
	"github.com/meigma/ustar/internal/tarblock"
)

// Reader scans an archive stream sequentially.
//
// A Reader makes a single forward pass: Entries yields each member in
// archive order, and advancing to the next member invalidates the previous
// entry and its content view. The underlying stream is never rewound.
type Reader struct {
	src io.Reader
	cr  *stream.CountingReader
	cfg readConfig

	gen    uint64
	cur    *Entry
	closed bool
}

// NewReader returns a Reader scanning the archive from r.
//
// If r implements io.Closer the Reader owns it and Close closes it; pass
// ReadWithLeaveOpen to keep the stream open. If r implements io.Seeker,
// unread member content is skipped by seeking instead of reading.
func NewReader(r io.Reader, opts ...ReadOption) *Reader {
	cfg := readConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Reader{
		src: r,
		cr:  &stream.CountingReader{R: r},
		cfg: cfg,
	}
}

// OpenReader opens the archive file at path for scanning.
func OpenReader(path string, opts ...ReadOption) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewReader(f, opts...), nil
}

// Entries returns the archive's members in order as a single-use sequence.
//
// The sequence ends silently when the stream runs out at a header boundary:
// a missing zero-block footer is tolerated, and a lone zero block mid-stream
// is skipped. A header that cannot be decoded yields the error and ends the
// sequence. Each yielded entry stays valid until the loop advances; breaking
// out of the loop keeps the last entry readable until the Reader is closed
// or iteration resumes.
func (r *Reader) Entries() iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		for {
			if r.closed {
				yield(nil, fmt.Errorf("entries: %w", ErrClosed))
				return
			}
			if err := r.advance(); err != nil {
				if errors.Is(err, io.EOF) {
					// Content truncated; nothing more to scan.
					return
				}
				yield(nil, err)
				return
			}

			off := r.cr.N
			var blk tarblock.Block
			if _, err := io.ReadFull(r.cr, blk[:]); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					// A short header block ends the archive.
					return
				}
				yield(nil, fmt.Errorf("read header at offset %d: %w", off, err))
				return
			}
			if blk.IsZero() {
				// Footer block, or a stray zero block to tolerate.
				continue
			}

			hdr, err := blk.Decode()
			if err != nil {
				yield(nil, fmt.Errorf("decode header at offset %d: %w", off, err))
				return
			}

			e := &Entry{Header: hdr, r: r, gen: r.gen}
			r.cur = e
			r.log().Debug("read entry",
				"name", hdr.Name,
				"size", hdr.Size,
				"offset", off)

			if !yield(e, nil) {
				return
			}
		}
	}
}

// advance moves the stream past the current entry's remaining content and
// padding, invalidating the entry and any open view.
func (r *Reader) advance() error {
	e := r.cur
	if e == nil {
		return nil
	}
	r.cur = nil
	r.gen++

	remaining := e.Header.Size - e.read + tarblock.Padding(e.Header.Size)
	return r.skip(remaining)
}

// skip discards n bytes, seeking when the source supports it.
func (r *Reader) skip(n int64) error {
	if n <= 0 {
		return nil
	}
	if s, ok := r.src.(io.Seeker); ok {
		if _, err := s.Seek(n, io.SeekCurrent); err != nil {
			return fmt.Errorf("seek past content: %w", err)
		}
		r.cr.N += n
		return nil
	}
	if _, err := io.CopyN(io.Discard, r.cr, n); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("skip content: %w", err)
	}
	return nil
}

// Offset returns the number of bytes consumed from the underlying stream.
// After Entries finishes, this is the total size of the archive, including
// the footer when one was present.
func (r *Reader) Offset() int64 {
	return r.cr.N
}

// Close invalidates the Reader and closes the underlying stream unless the
// Reader was built with ReadWithLeaveOpen. Close is idempotent.
//
// Closing does not scan ahead: if iteration was abandoned mid-archive, the
// stream is left at its current position.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.cfg.leaveOpen {
		return nil
	}
	if c, ok := r.src.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close source: %w", err)
		}
	}
	return nil
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Reader) log() *slog.Logger {
	if r.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.cfg.logger
}
