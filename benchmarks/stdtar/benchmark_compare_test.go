// Package stdtarbench compares ustar against the standard library's
// archive/tar on the shared workloads: writing a file tree, scanning
// member headers, reading member content, and extracting to disk.
//
// Run with:
//
//	go test -bench . -benchmem ./benchmarks/stdtar
package stdtarbench

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/meigma/ustar"
)

var (
	sinkInt   int
	sinkInt64 int64
)

type benchPattern string

const (
	benchPatternCompressible benchPattern = "compressible"
	benchPatternRandom       benchPattern = "random"

	benchDirCount = 16

	benchFileCount = 128
	benchFileSize  = 16 << 10
)

func makeBenchFiles(b *testing.B, dir string, fileCount, fileSize int, pattern benchPattern) {
	b.Helper()

	rng := rand.New(rand.NewSource(1))
	for i := range fileCount {
		relPath := fmt.Sprintf("dir%02d/file%05d.dat", i%benchDirCount, i)
		fullPath := filepath.Join(dir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			b.Fatal(err)
		}

		content := make([]byte, fileSize)
		switch pattern {
		case benchPatternRandom:
			if _, err := rng.Read(content); err != nil {
				b.Fatal(err)
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

		if err := os.WriteFile(fullPath, content, 0o644); err != nil {
			b.Fatal(err)
		}
	}
}

// writeStdTar mirrors ustar.Archive with archive/tar: lexical walk, one
// USTAR member per regular file.
func writeStdTar(b *testing.B, dir string, dst io.Writer) {
	b.Helper()

	tw := tar.NewWriter(dst)
	err := fs.WalkDir(os.DirFS(dir), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !d.Type().IsRegular() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr := &tar.Header{
			Name:     path,
			Mode:     0o644,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Typeflag: tar.TypeReg,
			Format:   tar.FormatUSTAR,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(filepath.Join(dir, filepath.FromSlash(path)))
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		b.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		b.Fatal(err)
	}
}

func buildArchive(b *testing.B, fileCount, fileSize int) []byte {
	b.Helper()

	dir := b.TempDir()
	makeBenchFiles(b, dir, fileCount, fileSize, benchPatternCompressible)

	var buf bytes.Buffer
	if err := ustar.Archive(context.Background(), dir, &buf); err != nil {
		b.Fatal(err)
	}
	return buf.Bytes()
}

func BenchmarkWrite(b *testing.B) {
	dir := b.TempDir()
	makeBenchFiles(b, dir, benchFileCount, benchFileSize, benchPatternCompressible)
	totalBytes := int64(benchFileCount * benchFileSize)

	b.Run("format=ustar", func(b *testing.B) {
		b.SetBytes(totalBytes)
		var buf bytes.Buffer
		b.ReportAllocs()
		b.ResetTimer()
		for b.Loop() {
			buf.Reset()
			if err := ustar.Archive(context.Background(), dir, &buf); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("format=stdtar", func(b *testing.B) {
		b.SetBytes(totalBytes)
		var buf bytes.Buffer
		b.ReportAllocs()
		b.ResetTimer()
		for b.Loop() {
			buf.Reset()
			writeStdTar(b, dir, &buf)
		}
	})
}

func BenchmarkScan(b *testing.B) {
	data := buildArchive(b, benchFileCount, benchFileSize)

	b.Run("format=ustar", func(b *testing.B) {
		b.SetBytes(int64(len(data)))
		b.ReportAllocs()
		b.ResetTimer()
		for b.Loop() {
			r := ustar.NewReader(bytes.NewReader(data))
			count := 0
			for _, err := range r.Entries() {
				if err != nil {
					b.Fatal(err)
				}
				count++
			}
			sinkInt = count
		}
	})

	b.Run("format=stdtar", func(b *testing.B) {
		b.SetBytes(int64(len(data)))
		b.ReportAllocs()
		b.ResetTimer()
		for b.Loop() {
			tr := tar.NewReader(bytes.NewReader(data))
			count := 0
			for {
				_, err := tr.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					b.Fatal(err)
				}
				count++
			}
			sinkInt = count
		}
	})
}

func BenchmarkReadContent(b *testing.B) {
	data := buildArchive(b, benchFileCount, benchFileSize)
	totalBytes := int64(benchFileCount * benchFileSize)

	b.Run("format=ustar", func(b *testing.B) {
		b.SetBytes(totalBytes)
		b.ReportAllocs()
		b.ResetTimer()
		for b.Loop() {
			r := ustar.NewReader(bytes.NewReader(data))
			var total int64
			for e, err := range r.Entries() {
				if err != nil {
					b.Fatal(err)
				}
				src, err := e.Open()
				if err != nil {
					b.Fatal(err)
				}
				n, err := io.Copy(io.Discard, src)
				if err != nil {
					b.Fatal(err)
				}
				total += n
			}
			sinkInt64 = total
		}
	})

	b.Run("format=stdtar", func(b *testing.B) {
		b.SetBytes(totalBytes)
		b.ReportAllocs()
		b.ResetTimer()
		for b.Loop() {
			tr := tar.NewReader(bytes.NewReader(data))
			var total int64
			for {
				_, err := tr.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					b.Fatal(err)
				}
				n, err := io.Copy(io.Discard, tr)
				if err != nil {
					b.Fatal(err)
				}
				total += n
			}
			sinkInt64 = total
		}
	})
}

func BenchmarkExtractToDisk(b *testing.B) {
	data := buildArchive(b, benchFileCount, benchFileSize)
	totalBytes := int64(benchFileCount * benchFileSize)

	b.Run("format=ustar/serial", func(b *testing.B) {
		benchExtractUstar(b, data, totalBytes, 1)
	})

	b.Run("format=ustar/parallel", func(b *testing.B) {
		benchExtractUstar(b, data, totalBytes, runtime.GOMAXPROCS(0))
	})

	b.Run("format=stdtar", func(b *testing.B) {
		b.SetBytes(totalBytes)
		destRoot := b.TempDir()
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; b.Loop(); i++ {
			b.StopTimer()
			destDir := filepath.Join(destRoot, fmt.Sprintf("iter-%d", i))
			if err := os.MkdirAll(destDir, 0o755); err != nil {
				b.Fatal(err)
			}
			b.StartTimer()

			extractStdTar(b, data, destDir)
		}
	})
}

func benchExtractUstar(b *testing.B, data []byte, totalBytes int64, workers int) {
	b.Helper()

	b.SetBytes(totalBytes)
	destRoot := b.TempDir()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; b.Loop(); i++ {
		b.StopTimer()
		destDir := filepath.Join(destRoot, fmt.Sprintf("iter-%d", i))
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			b.Fatal(err)
		}
		b.StartTimer()

		r := ustar.NewReader(bytes.NewReader(data))
		err := r.Extract(context.Background(), destDir,
			ustar.ExtractWithWorkers(workers),
			ustar.ExtractWithDirectWrites(),
		)
		if err != nil {
			b.Fatal(err)
		}
	}
}

// extractStdTar is the minimal archive/tar extraction loop: no staging, no
// worker pool, direct writes only.
func extractStdTar(b *testing.B, data []byte, destDir string) {
	b.Helper()

	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			b.Fatal(err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		dest := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			b.Fatal(err)
		}
		f, err := os.Create(dest)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			b.Fatal(err)
		}
		if err := f.Close(); err != nil {
			b.Fatal(err)
		}
	}
}
