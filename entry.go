package ustar

import (
	"fmt"
	"io"
)

// Entry is one archive member. A Reader yields entries during iteration; a
// Writer hands one out per Create call. Content access goes through a view:
// Open on the read side, OpenWriter or OpenBufferedWriter on the write side.
//
// Entries are positional. A read entry is invalidated when its Reader
// advances to the next member; a write entry's views refuse to operate once
// the archive stream has moved past the entry's recorded start.
type Entry struct {
	// Header holds the member metadata as decoded from the archive or as
	// it will be encoded into it.
	Header Header

	r   *Reader
	gen uint64

	w     *Writer
	start int64

	read int64
}

// Open returns a view of the member's remaining unread content.
//
// The view is bounded and not seekable: reads clamp at the member's content
// end and then return io.EOF, without ever touching the padding or the next
// header. It fails with ErrNotReadable on a writer-created entry and with
// ErrClosed once the Reader has advanced past this entry or was closed.
func (e *Entry) Open() (io.ReadCloser, error) {
	if e.r == nil {
		return nil, fmt.Errorf("open %q: %w", e.Header.Name, ErrNotReadable)
	}
	if e.r.closed || e.stale() {
		return nil, fmt.Errorf("open %q: %w", e.Header.Name, ErrClosed)
	}
	return &entryReader{e: e}, nil
}

// stale reports whether the reader has advanced past this entry.
func (e *Entry) stale() bool {
	return e.gen != e.r.gen
}

var _ io.ReadCloser = (*entryReader)(nil)

// entryReader is the bounded read view over one member's content window.
type entryReader struct {
	e      *Entry
	closed bool
}

func (er *entryReader) Read(p []byte) (int, error) {
	e := er.e
	if er.closed || e.r.closed || e.stale() {
		return 0, fmt.Errorf("read %q: %w", e.Header.Name, ErrClosed)
	}

	remaining := e.Header.Size - e.read
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err := e.r.cr.Read(p)
	e.read += int64(n)
	if err == io.EOF && e.read < e.Header.Size {
		// The archive ended inside the member's declared window.
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

// Close detaches the view. Further reads fail with ErrClosed; the member's
// unread content is skipped by the Reader when it advances.
func (er *entryReader) Close() error {
	er.closed = true
	return nil
}
