package ustar

import (
	"bytes"
	"fmt"
	"io"

	"github.com/meigma/ustar/internal/tarblock"
)

// Interface compliance.
var (
	_ io.WriteCloser = (*SizedWriter)(nil)
	_ io.WriteCloser = (*BufferedWriter)(nil)
)

// OpenWriter opens a pre-sized content writer for the entry and emits the
// member header immediately, with size as the declared content length.
//
// The archive stream must still be at the position the entry was created at;
// opening a stale or out-of-order entry fails with ErrPosition. A size that
// does not fit the 11-digit octal field fails with ErrFieldTooLarge.
func (e *Entry) OpenWriter(size int64) (*SizedWriter, error) {
	w := e.w
	if w == nil {
		return nil, fmt.Errorf("open writer %q: %w", e.Header.Name, ErrNotWritable)
	}
	if w.closed {
		return nil, fmt.Errorf("open writer %q: %w", e.Header.Name, ErrClosed)
	}
	if w.cw.N != e.start {
		return nil, fmt.Errorf("open writer %q: %w: stream at offset %d, entry recorded at %d",
			e.Header.Name, ErrPosition, w.cw.N, e.start)
	}

	e.Header.Size = size
	var blk tarblock.Block
	if err := blk.Encode(&e.Header); err != nil {
		return nil, fmt.Errorf("open writer %q: %w", e.Header.Name, err)
	}
	if _, err := w.cw.Write(blk[:]); err != nil {
		return nil, fmt.Errorf("write header %q: %w", e.Header.Name, err)
	}

	return &SizedWriter{
		w:        w,
		e:        e,
		base:     w.cw.N,
		declared: size,
	}, nil
}

// OpenBufferedWriter opens a buffered content writer for the entry.
//
// Nothing touches the archive stream until Close, which sizes the header
// from the bytes actually written. Use this mode when the content length is
// unknown upfront, at the cost of holding the whole member in memory.
func (e *Entry) OpenBufferedWriter() (*BufferedWriter, error) {
	if e.w == nil {
		return nil, fmt.Errorf("open buffered writer %q: %w", e.Header.Name, ErrNotWritable)
	}
	if e.w.closed {
		return nil, fmt.Errorf("open buffered writer %q: %w", e.Header.Name, ErrClosed)
	}
	return &BufferedWriter{w: e.w, e: e}, nil
}

// SizedWriter streams a member whose content length was declared upfront.
//
// Writes pass straight through to the archive. The total may fall short of
// the declared size: Close fills the difference with NUL bytes, so the
// member always occupies exactly the declared length on the wire. Writing
// past the declared size fails with ErrWriteTooLong.
type SizedWriter struct {
	w        *Writer
	e        *Entry
	base     int64
	declared int64
	written  int64
	closed   bool
}

// Write implements io.Writer. When p straddles the declared content end the
// fitting prefix is written before ErrWriteTooLong is returned.
func (sw *SizedWriter) Write(p []byte) (int, error) {
	if sw.closed || sw.w.closed {
		return 0, fmt.Errorf("write %q: %w", sw.e.Header.Name, ErrClosed)
	}
	if sw.w.cw.N != sw.base+sw.written {
		return 0, fmt.Errorf("write %q: %w: stream moved mid-member", sw.e.Header.Name, ErrPosition)
	}

	remaining := sw.declared - sw.written
	if int64(len(p)) <= remaining {
		n, err := sw.w.cw.Write(p)
		sw.written += int64(n)
		if err != nil {
			return n, fmt.Errorf("write %q: %w", sw.e.Header.Name, err)
		}
		return n, nil
	}

	var n int
	if remaining > 0 {
		var err error
		n, err = sw.w.cw.Write(p[:remaining])
		sw.written += int64(n)
		if err != nil {
			return n, fmt.Errorf("write %q: %w", sw.e.Header.Name, err)
		}
	}
	return n, fmt.Errorf("write %q: %w: declared %d bytes", sw.e.Header.Name, ErrWriteTooLong, sw.declared)
}

// Close finalizes the member: any gap up to the declared size is filled
// with NUL bytes, then the content is padded to the next block boundary.
// Padding is measured from the declared length, never from the bytes
// actually written. Close is idempotent.
func (sw *SizedWriter) Close() error {
	if sw.closed {
		return nil
	}
	sw.closed = true

	if sw.w.closed {
		return fmt.Errorf("close %q: %w", sw.e.Header.Name, ErrClosed)
	}
	if sw.w.cw.N != sw.base+sw.written {
		return fmt.Errorf("close %q: %w: stream moved mid-member", sw.e.Header.Name, ErrPosition)
	}

	gap := sw.declared - sw.written + tarblock.Padding(sw.declared)
	if err := sw.w.writeZeros(gap); err != nil {
		return fmt.Errorf("pad %q: %w", sw.e.Header.Name, err)
	}

	sw.w.entries++
	sw.w.log().Debug("entry finalized",
		"name", sw.e.Header.Name,
		"size", sw.declared,
		"written", sw.written)
	return nil
}

// BufferedWriter accumulates a member whose content length is unknown until
// the content has been produced, then emits header, content, and padding in
// one shot at Close.
type BufferedWriter struct {
	w      *Writer
	e      *Entry
	buf    bytes.Buffer
	closed bool
}

// Write implements io.Writer, appending to the in-memory buffer.
func (bw *BufferedWriter) Write(p []byte) (int, error) {
	if bw.closed || bw.w.closed {
		return 0, fmt.Errorf("write %q: %w", bw.e.Header.Name, ErrClosed)
	}
	return bw.buf.Write(p)
}

// Close emits the member. The archive stream must still be at the position
// the entry was created at (ErrPosition otherwise), and the buffered length
// must fit the 11-digit octal size field (ErrFieldTooLarge otherwise).
// Close is idempotent; only the first call emits.
func (bw *BufferedWriter) Close() error {
	if bw.closed {
		return nil
	}
	bw.closed = true

	w := bw.w
	if w.closed {
		return fmt.Errorf("close %q: %w", bw.e.Header.Name, ErrClosed)
	}
	if w.cw.N != bw.e.start {
		return fmt.Errorf("close %q: %w: stream at offset %d, entry recorded at %d",
			bw.e.Header.Name, ErrPosition, w.cw.N, bw.e.start)
	}

	size := int64(bw.buf.Len())
	bw.e.Header.Size = size
	var blk tarblock.Block
	if err := blk.Encode(&bw.e.Header); err != nil {
		return fmt.Errorf("close %q: %w", bw.e.Header.Name, err)
	}
	if _, err := w.cw.Write(blk[:]); err != nil {
		return fmt.Errorf("write header %q: %w", bw.e.Header.Name, err)
	}
	if _, err := w.cw.Write(bw.buf.Bytes()); err != nil {
		return fmt.Errorf("write content %q: %w", bw.e.Header.Name, err)
	}
	if err := w.writeZeros(tarblock.Padding(size)); err != nil {
		return fmt.Errorf("pad %q: %w", bw.e.Header.Name, err)
	}

	w.entries++
	w.log().Debug("entry finalized", "name", bw.e.Header.Name, "size", size)
	return nil
}
