// Command profiler exercises archive operations under the Go profilers.
//
// It generates a file tree, then runs one operation mode in a loop for a
// fixed duration or iteration count while exposing the usual profiling
// outputs: CPU and heap profiles, execution traces, and a live pprof
// endpoint. The -slow-latency and -slow-bps flags simulate reading the
// archive from a slow source.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/meigma/ustar"
	"github.com/meigma/ustar/codec"
)

type config struct {
	mode        string
	files       int
	fileSize    int
	dirCount    int
	codecName   string
	pattern     string
	digests     bool
	workers     int
	readAhead   int64
	cold        bool
	slowLatency time.Duration
	slowBPS     int64
	duration    time.Duration
	iterations  int
	pprofAddr   string
	cpuProfile  string
	memProfile  string
	traceFile   string
	tempDir     string
	keepTemp    bool
	randomSeed  int64
}

//nolint:unused // sink variables prevent compiler optimizations in profiling
var (
	sinkCount int
	sinkBytes int64
)

//nolint:gocognit // main function complexity is acceptable for CLI tool
func main() {
	cfg := parseFlags()

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	dir, cleanup, err := setupTempDir(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	if err := makeFiles(dir, cfg.files, cfg.fileSize, cfg.dirCount, cfg.pattern, cfg.randomSeed); err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is intentional - cleanup is best-effort
	}

	if cfg.cpuProfile != "" {
		cpuFile, cpuErr := os.Create(cfg.cpuProfile)
		if cpuErr != nil {
			log.Fatal(cpuErr)
		}
		if cpuErr = pprof.StartCPUProfile(cpuFile); cpuErr != nil {
			log.Fatal(cpuErr)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	if cfg.traceFile != "" {
		traceFile, traceErr := os.Create(cfg.traceFile)
		if traceErr != nil {
			log.Fatal(traceErr)
		}
		if traceErr = trace.Start(traceFile); traceErr != nil {
			log.Fatal(traceErr)
		}
		defer func() {
			trace.Stop()
			_ = traceFile.Close()
		}()
	}

	stats, err := runProfile(cfg, dir)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		_ = f.Close()
	}

	fmt.Printf("mode=%s ops=%d bytes=%d elapsed=%s throughput=%.2f MB/s\n",
		cfg.mode,
		stats.ops,
		stats.bytes,
		stats.elapsed,
		float64(stats.bytes)/(1024*1024)/stats.elapsed.Seconds(),
	)
}

type profileStats struct {
	ops     int
	bytes   int64
	elapsed time.Duration
}

//nolint:gocognit,gocyclo,gocritic // complexity is inherent to multi-mode profiler dispatch; hugeParam acceptable for profiler
func runProfile(cfg config, rootDir string) (profileStats, error) {
	ctx := context.Background()
	c := parseCodec(cfg.codecName)
	contentBytes := int64(cfg.files) * int64(cfg.fileSize)

	start := time.Now()
	ops := 0
	var byteCount int64

	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}

	switch cfg.mode {
	case "archive":
		var buf bytes.Buffer
		for shouldContinue() {
			buf.Reset()
			dst := io.Writer(&buf)
			var enc io.WriteCloser
			if c != nil {
				var err error
				enc, err = c.NewEncoder(&buf)
				if err != nil {
					return profileStats{}, err
				}
				dst = enc
			}
			if err := ustar.Archive(ctx, rootDir, dst); err != nil {
				return profileStats{}, err
			}
			if enc != nil {
				if err := enc.Close(); err != nil {
					return profileStats{}, err
				}
			}
			byteCount += int64(buf.Len())
			ops++
		}

	case "scan":
		data, err := buildDataset(ctx, rootDir, c)
		if err != nil {
			return profileStats{}, err
		}
		start = time.Now()
		for shouldContinue() {
			src, err := newArchiveSource(cfg, c, data)
			if err != nil {
				return profileStats{}, err
			}
			r := ustar.NewReader(src)
			count := 0
			for _, err := range r.Entries() {
				if err != nil {
					return profileStats{}, err
				}
				count++
			}
			closeSource(src)
			sinkCount = count
			byteCount += int64(len(data))
			ops++
		}

	case "read":
		data, err := buildDataset(ctx, rootDir, c)
		if err != nil {
			return profileStats{}, err
		}
		start = time.Now()
		for shouldContinue() {
			src, err := newArchiveSource(cfg, c, data)
			if err != nil {
				return profileStats{}, err
			}
			r := ustar.NewReader(src)
			var total int64
			for e, err := range r.Entries() {
				if err != nil {
					return profileStats{}, err
				}
				rc, err := e.Open()
				if err != nil {
					return profileStats{}, err
				}
				n, err := io.Copy(io.Discard, rc)
				if err != nil {
					return profileStats{}, err
				}
				total += n
			}
			closeSource(src)
			sinkBytes = total
			byteCount += total
			ops++
		}

	case "extract":
		data, err := buildDataset(ctx, rootDir, c)
		if err != nil {
			return profileStats{}, err
		}
		opts := []ustar.ExtractOption{
			ustar.ExtractWithWorkers(cfg.workers),
		}
		if cfg.readAhead > 0 {
			opts = append(opts, ustar.ExtractWithReadAhead(cfg.readAhead))
		}
		if !cfg.cold {
			opts = append(opts, ustar.ExtractWithOverwrite())
		}

		start = time.Now()
		for shouldContinue() {
			destDir := filepath.Join(rootDir, "extract")
			if cfg.cold {
				destDir = filepath.Join(destDir, fmt.Sprintf("iter-%d", ops))
			}
			src, err := newArchiveSource(cfg, c, data)
			if err != nil {
				return profileStats{}, err
			}
			r := ustar.NewReader(src)
			if err := r.Extract(ctx, destDir, opts...); err != nil {
				return profileStats{}, err
			}
			closeSource(src)
			if cfg.cold {
				if err := os.RemoveAll(destDir); err != nil {
					return profileStats{}, err
				}
			}
			byteCount += contentBytes
			ops++
		}

	case "inspect":
		data, err := buildDataset(ctx, rootDir, c)
		if err != nil {
			return profileStats{}, err
		}
		var opts []ustar.InspectOption
		if cfg.digests {
			opts = append(opts, ustar.InspectWithDigests())
		}

		start = time.Now()
		for shouldContinue() {
			src, err := newArchiveSource(cfg, c, data)
			if err != nil {
				return profileStats{}, err
			}
			s, err := ustar.Inspect(ctx, src, opts...)
			if err != nil {
				return profileStats{}, err
			}
			closeSource(src)
			sinkCount = s.FileCount()
			byteCount += int64(len(data))
			ops++
		}

	default:
		return profileStats{}, fmt.Errorf("unknown mode: %s", cfg.mode)
	}

	return profileStats{
		ops:     ops,
		bytes:   byteCount,
		elapsed: time.Since(start),
	}, nil
}

func parseFlags() config {
	var cfg config
	var slowBPS string
	flag.StringVar(&cfg.mode, "mode", "archive", "mode: archive, scan, read, extract, inspect")
	flag.IntVar(&cfg.files, "files", 512, "number of files")
	flag.IntVar(&cfg.fileSize, "file-size", 16<<10, "file size in bytes")
	flag.IntVar(&cfg.dirCount, "dir-count", 16, "number of directories")
	flag.StringVar(&cfg.codecName, "codec", "none", "codec: none, gzip, zstd, xz")
	flag.StringVar(&cfg.pattern, "pattern", "compressible", "pattern: compressible or random")
	flag.BoolVar(&cfg.digests, "digests", false, "compute content digests in inspect mode")
	flag.IntVar(&cfg.workers, "workers", 0, "extract workers: <2 serial, 0 uses GOMAXPROCS")
	flag.Int64Var(&cfg.readAhead, "readahead", 0, "extract read-ahead budget in bytes (0 uses default)")
	flag.BoolVar(&cfg.cold, "cold", true, "recreate extract destination each iteration")
	flag.DurationVar(&cfg.slowLatency, "slow-latency", 0, "initial latency for the simulated slow source")
	flag.StringVar(&slowBPS, "slow-bps", "", "bytes/sec throttle for the simulated slow source (e.g. 10MBps)")
	flag.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	flag.IntVar(&cfg.iterations, "iterations", 0, "number of iterations to run")
	flag.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	flag.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flag.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	flag.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	flag.StringVar(&cfg.tempDir, "temp-dir", "", "directory to use for dataset")
	flag.BoolVar(&cfg.keepTemp, "keep-temp", false, "keep temp dir after run")
	flag.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	flag.Parse()
	if cfg.workers == 0 {
		cfg.workers = runtime.GOMAXPROCS(0)
	}
	if slowBPS != "" {
		bps, err := parseBytesPerSecond(slowBPS)
		if err != nil {
			log.Fatalf("slow-bps: %v", err)
		}
		cfg.slowBPS = bps
	}
	return cfg
}

func parseCodec(name string) codec.Codec {
	switch name {
	case "none":
		return nil
	case "gzip":
		return codec.Gzip
	case "zstd":
		return codec.Zstd
	case "xz":
		return codec.Xz
	default:
		log.Fatalf("unknown codec: %s", name)
		return nil
	}
}

// buildDataset archives the generated tree into memory, compressed when a
// codec is set.
func buildDataset(ctx context.Context, dir string, c codec.Codec) ([]byte, error) {
	var buf bytes.Buffer
	dst := io.Writer(&buf)
	var enc io.WriteCloser
	if c != nil {
		var err error
		enc, err = c.NewEncoder(&buf)
		if err != nil {
			return nil, err
		}
		dst = enc
	}
	if err := ustar.Archive(ctx, dir, dst); err != nil {
		return nil, err
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func setupTempDir(cfg config) (string, func() error, error) {
	if cfg.tempDir != "" {
		return cfg.tempDir, nil, os.MkdirAll(cfg.tempDir, 0o755) //nolint:gosec // 0o755 is intentional for profiler temp dirs
	}
	dir, err := os.MkdirTemp("", "ustar-profiler-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		if cfg.keepTemp {
			return nil
		}
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

func makeFiles(dir string, fileCount, fileSize, dirCount int, pattern string, seed int64) error {
	if dirCount <= 0 {
		dirCount = 1
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // intentional use for reproducible benchmarks
	for i := range fileCount {
		relPath := fmt.Sprintf("dir%02d/file%05d.dat", i%dirCount, i)
		fullPath := filepath.Join(dir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil { //nolint:gosec // 0o755 is intentional for profiler
			return err
		}

		content := make([]byte, fileSize)
		switch pattern {
		case "random":
			if _, err := rng.Read(content); err != nil {
				return err
			}
		default:
			fillByte := byte('a' + (i % 26))
			for j := range content {
				content[j] = fillByte
			}
			if len(content) > 0 {
				content[0] = byte(i)
			}
		}

		if err := os.WriteFile(fullPath, content, 0o644); err != nil { //nolint:gosec // 0o644 is intentional for profiler test files
			return err
		}
	}
	return nil
}
