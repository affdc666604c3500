// Package ustar reads and writes tar archives in the POSIX.1-1988 ustar
// interchange format.
//
// An archive is a sequential container of named byte blobs: each member is
// one 512-byte header block followed by content NUL-padded to the next block
// boundary, and the whole stream is terminated by two zero blocks. There is
// no index; discovery is a linear scan. The package writes a restricted
// profile (regular files, names up to 100 bytes, a fixed mode string) and
// reads any archive within that profile, including ones produced by other
// tar implementations.
//
// # Quick Start
//
// Archive a directory tree:
//
//	f, err := os.Create("docs.tar")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//	err = ustar.Archive(ctx, "./docs", f)
//
// Extract an archive to disk:
//
//	r, err := ustar.OpenReader("docs.tar")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	err = r.Extract(ctx, "./restored",
//	    ustar.ExtractWithPreserveMode(),
//	)
//
// # Streaming
//
// Reading walks the archive lazily; each entry exposes a bounded view over
// the underlying stream:
//
//	for entry, err := range r.Entries() {
//	    if err != nil {
//	        return err
//	    }
//	    rc, err := entry.Open()
//	    ...
//	}
//
// Writing is a two-step handshake per member: create the entry, then open a
// content writer for it. Pre-sized mode streams straight through, buffered
// mode accumulates in memory for content whose length is unknown upfront:
//
//	entry, err := w.Create("guide.md")
//	cw, err := entry.OpenWriter(int64(len(data)))
//	...
//	err = w.Close() // appends the zero-block footer
//
// # Compression
//
// Archives compose with the [codec] subpackage for gzip, zstd, and xz
// streams. [codec.Detect] sniffs magic bytes so readers need not know the
// compression upfront:
//
//	c, src, err := codec.Detect(f)
//	if err != nil {
//	    return err
//	}
//	if c != nil {
//	    dec, err := c.NewDecoder(src)
//	    if err != nil {
//	        return err
//	    }
//	    defer dec.Close()
//	    src = dec
//	}
//	r := ustar.NewReader(src)
package ustar
