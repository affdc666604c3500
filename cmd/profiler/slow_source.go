package main

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/meigma/ustar/codec"
)

// newArchiveSource returns a reader over the in-memory archive, throttled
// when the slow-source flags are set and decompressed when a codec is
// configured. The throttle wraps the compressed stream, so decompression
// runs at the simulated transport speed.
func newArchiveSource(cfg config, c codec.Codec, data []byte) (io.Reader, error) {
	var src io.Reader = bytes.NewReader(data)
	if cfg.slowLatency > 0 || cfg.slowBPS > 0 {
		src = &slowReader{r: src, latency: cfg.slowLatency, bytesPerSecond: cfg.slowBPS}
	}
	if c != nil {
		return c.NewDecoder(src)
	}
	return src, nil
}

// closeSource releases the decoder when the source carries one.
func closeSource(src io.Reader) {
	if c, ok := src.(io.Closer); ok {
		_ = c.Close()
	}
}

// slowReader throttles a stream to simulate a slow source. The wrapper
// hides the underlying Seeker, so readers take the streaming path and skip
// member content by discarding rather than seeking.
type slowReader struct {
	r              io.Reader
	latency        time.Duration
	bytesPerSecond int64
	started        bool
	start          time.Time
	readBytes      int64
}

func (sr *slowReader) Read(p []byte) (int, error) {
	if !sr.started {
		if sr.latency > 0 {
			time.Sleep(sr.latency)
		}
		sr.started = true
		sr.start = time.Now()
	}
	n, err := sr.r.Read(p)
	if n > 0 && sr.bytesPerSecond > 0 {
		sr.readBytes += int64(n)
		expected := time.Duration(float64(sr.readBytes) / float64(sr.bytesPerSecond) * float64(time.Second))
		elapsed := time.Since(sr.start)
		if expected > elapsed {
			time.Sleep(expected - elapsed)
		}
	}
	return n, err
}

func parseBytesPerSecond(value string) (int64, error) {
	text := strings.TrimSpace(value)
	text = strings.TrimSuffix(text, "Bps")
	text = strings.TrimSuffix(text, "bps")
	text = strings.TrimSuffix(text, "/s")
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("invalid bytes-per-second %q", value)
	}

	lower := strings.ToLower(text)
	multiplier := int64(1)
	switch {
	case strings.HasSuffix(lower, "kb"):
		multiplier = 1024
		text = text[:len(text)-2]
	case strings.HasSuffix(lower, "k"):
		multiplier = 1024
		text = text[:len(text)-1]
	case strings.HasSuffix(lower, "mb"):
		multiplier = 1024 * 1024
		text = text[:len(text)-2]
	case strings.HasSuffix(lower, "m"):
		multiplier = 1024 * 1024
		text = text[:len(text)-1]
	case strings.HasSuffix(lower, "gb"):
		multiplier = 1024 * 1024 * 1024
		text = text[:len(text)-2]
	case strings.HasSuffix(lower, "g"):
		multiplier = 1024 * 1024 * 1024
		text = text[:len(text)-1]
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("invalid bytes-per-second %q", value)
	}
	raw, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bytes-per-second %q", value)
	}
	if raw <= 0 {
		return 0, fmt.Errorf("invalid bytes-per-second %q", value)
	}
	return raw * multiplier, nil
}
