package ustar

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/meigma/ustar/internal/stream"
)

// Writer builds an archive stream sequentially.
//
// Members are added with a two-step handshake: Create records an entry at
// the current stream position, then a content writer opened on the entry
// emits the member. The Writer tracks its position by counting every byte
// it emits; entry handles opened out of order or after the stream has moved
// fail with ErrPosition instead of corrupting the archive.
type Writer struct {
	dst io.Writer
	cw  *stream.CountingWriter
	cfg writeConfig

	entries int
	closed  bool
}

// NewWriter returns a Writer emitting an archive to w.
//
// If w implements io.Closer the Writer owns it and Close closes it; pass
// WriteWithLeaveOpen to keep the stream open.
func NewWriter(w io.Writer, opts ...WriteOption) *Writer {
	cfg := writeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Writer{
		dst: w,
		cw:  &stream.CountingWriter{W: w},
		cfg: cfg,
	}
}

// OpenWriter creates or truncates the archive file at path for writing.
func OpenWriter(path string, opts ...WriteOption) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return NewWriter(f, opts...), nil
}

// Create records a new member entry at the current stream position.
//
// Nothing is written until a content writer is opened on the returned entry:
// OpenWriter for content of known size, OpenBufferedWriter when the length
// is only known once the content has been produced. The member's
// modification time defaults to the current time; see CreateWithModTime.
//
// Create fails with ErrFieldTooLarge when name does not fit the 100-byte
// header field.
func (w *Writer) Create(name string, opts ...CreateOption) (*Entry, error) {
	if w.closed {
		return nil, fmt.Errorf("create %q: %w", name, ErrClosed)
	}
	if len(name) > MaxName {
		return nil, fmt.Errorf("create %q: %w: name %d bytes exceeds %d", name, ErrFieldTooLarge, len(name), MaxName)
	}

	cfg := createConfig{modTime: time.Now()}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Entry{
		Header: Header{Name: name, ModTime: cfg.modTime},
		w:      w,
		start:  w.cw.N,
	}
	w.log().Debug("create entry", "name", name, "offset", e.start)
	return e, nil
}

// Close appends the two-zero-block footer and, unless the Writer was built
// with WriteWithLeaveOpen, closes the underlying stream. Close is
// idempotent; only the first call writes the footer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs error
	if w.cw.N%BlockSize != 0 {
		// An unfinalized content writer left the stream mid-member. The
		// footer is still appended so the damage stays local to that member.
		w.log().Warn("closing with unaligned stream", "offset", w.cw.N)
	}
	if err := w.writeZeros(2 * BlockSize); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("write footer: %w", err))
	} else {
		w.log().Info("archive finalized", "entries", w.entries, "bytes", w.cw.N)
	}

	if !w.cfg.leaveOpen {
		if c, ok := w.dst.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("close destination: %w", err))
			}
		}
	}
	return errs
}

// Offset returns the number of bytes written to the archive so far.
func (w *Writer) Offset() int64 {
	return w.cw.N
}

var zeroBytes [BlockSize]byte

// writeZeros emits n NUL bytes.
func (w *Writer) writeZeros(n int64) error {
	for n > 0 {
		chunk := min(n, int64(len(zeroBytes)))
		wrote, err := w.cw.Write(zeroBytes[:chunk])
		n -= int64(wrote)
		if err != nil {
			return err
		}
	}
	return nil
}

// log returns the logger, falling back to a discard logger if nil.
func (w *Writer) log() *slog.Logger {
	if w.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.cfg.logger
}
