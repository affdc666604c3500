package stream

import (
	"context"
	"io"
	"math"
)

// CopyWithContext copies from src to dst until EOF or error, checking for
// context cancellation between reads. It returns the number of bytes written.
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			if nw > 0 {
				if written > math.MaxInt64-int64(nw) {
					return written, ErrOverflow
				}
				written += int64(nw)
			}
			if ew != nil {
				return written, ew
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er == io.EOF {
				return written, nil
			}
			return written, er
		}
	}
}
