package ustar

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/ustar/codec"
)

// createTestFiles creates files in dir from a map of relative path to content.
func createTestFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	}
}

// readTree walks dir and maps relative slash paths to file contents.
func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	tree := make(map[string]string)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		tree[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return tree
}

func TestArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := map[string]string{
		"a.txt":         "content of a",
		"b.txt":         "content of b",
		"sub/c.txt":     "content of c",
		"sub/deep/d.go": "package main",
	}
	createTestFiles(t, dir, files)

	var buf bytes.Buffer
	require.NoError(t, Archive(context.Background(), dir, &buf))

	r := NewReader(bytes.NewReader(buf.Bytes()))
	defer r.Close()

	var paths []string
	got := make(map[string]string)
	for e, err := range r.Entries() {
		require.NoError(t, err)
		paths = append(paths, e.Header.Name)
		got[e.Header.Name] = readEntry(t, e)
	}

	// The walk is lexical, so member order is deterministic.
	assert.Equal(t, []string{"a.txt", "b.txt", "sub/c.txt", "sub/deep/d.go"}, paths)
	assert.Equal(t, files, got)
}

func TestArchiveEmptyDir(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Archive(context.Background(), t.TempDir(), &buf))
	assert.Equal(t, 2*BlockSize, buf.Len())
}

func TestArchiveDeterministic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	createTestFiles(t, dir, map[string]string{
		"a.txt":     "alpha",
		"sub/b.txt": "bravo",
	})
	modTime := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	var first, second bytes.Buffer
	require.NoError(t, Archive(context.Background(), dir, &first, ArchiveWithModTime(modTime)))
	require.NoError(t, Archive(context.Background(), dir, &second, ArchiveWithModTime(modTime)))

	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestArchiveSkipsSymlinks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.txt"), []byte("real"), 0o644))
	require.NoError(t, os.Symlink("real.txt", filepath.Join(dir, "link.txt")))

	var buf bytes.Buffer
	require.NoError(t, Archive(context.Background(), dir, &buf))

	r := NewReader(bytes.NewReader(buf.Bytes()))
	defer r.Close()

	var names []string
	for e, err := range r.Entries() {
		require.NoError(t, err)
		names = append(names, e.Header.Name)
	}
	assert.Equal(t, []string{"real.txt"}, names)
}

func TestArchiveMaxFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	createTestFiles(t, dir, map[string]string{
		"a.txt": "1",
		"b.txt": "2",
		"c.txt": "3",
	})

	var buf bytes.Buffer
	err := Archive(context.Background(), dir, &buf, ArchiveWithMaxFiles(2))
	assert.ErrorIs(t, err, ErrTooManyFiles)
}

func TestArchiveLongName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	long := filepath.Join(strings.Repeat("d", 60), strings.Repeat("f", 60))
	createTestFiles(t, dir, map[string]string{long: "deep"})

	var buf bytes.Buffer
	err := Archive(context.Background(), dir, &buf)
	assert.ErrorIs(t, err, ErrFieldTooLarge)
}

func TestArchiveCancellation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	createTestFiles(t, dir, map[string]string{"a.txt": "alpha"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := Archive(ctx, dir, &buf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchiveLeavesDestinationOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	createTestFiles(t, dir, map[string]string{"a.txt": "alpha"})

	dst := &closeRecorder{}
	require.NoError(t, Archive(context.Background(), dir, dst))
	assert.False(t, dst.closed, "Archive should leave the destination open")
}

func TestArchiveWithOwners(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	createTestFiles(t, dir, map[string]string{"a.txt": "alpha"})

	var buf bytes.Buffer
	require.NoError(t, Archive(context.Background(), dir, &buf, ArchiveWithOwners()))

	r := NewReader(bytes.NewReader(buf.Bytes()))
	defer r.Close()
	for e, err := range r.Entries() {
		require.NoError(t, err)
		assert.Equal(t, os.Getuid(), e.Header.UID)
		assert.Equal(t, os.Getgid(), e.Header.GID)
	}

	// Without the option the recorded IDs stay zero.
	var plain bytes.Buffer
	require.NoError(t, Archive(context.Background(), dir, &plain))
	r2 := NewReader(bytes.NewReader(plain.Bytes()))
	defer r2.Close()
	for e, err := range r2.Entries() {
		require.NoError(t, err)
		assert.Equal(t, 0, e.Header.UID)
		assert.Equal(t, 0, e.Header.GID)
	}
}

func TestExtract(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	files := make(map[string]string)
	for i := range 50 {
		files[fmt.Sprintf("data/f%02d.bin", i)] = strings.Repeat("x", 17*i)
	}
	files["top.txt"] = "top level"
	createTestFiles(t, src, files)

	var buf bytes.Buffer
	require.NoError(t, Archive(context.Background(), src, &buf))

	dest := t.TempDir()
	r := NewReader(bytes.NewReader(buf.Bytes()))
	defer r.Close()
	require.NoError(t, r.Extract(context.Background(), dest))

	assert.Equal(t, files, readTree(t, dest))
}

func TestExtractSerial(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	files := map[string]string{
		"a.txt":     "alpha",
		"sub/b.bin": string(pattern(1162)),
	}
	createTestFiles(t, src, files)

	var buf bytes.Buffer
	require.NoError(t, Archive(context.Background(), src, &buf))

	dest := t.TempDir()
	r := NewReader(bytes.NewReader(buf.Bytes()))
	defer r.Close()
	require.NoError(t, r.Extract(context.Background(), dest, ExtractWithWorkers(1)))

	assert.Equal(t, files, readTree(t, dest))
}

func TestExtractSkipsExisting(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	writeEntry(t, w, "data.txt", "new content")
	require.NoError(t, w.Close())

	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "data.txt"), []byte("old"), 0o644))

	r := NewReader(bytes.NewReader(buf.Bytes()))
	defer r.Close()
	require.NoError(t, r.Extract(context.Background(), dest))
	assert.Equal(t, map[string]string{"data.txt": "old"}, readTree(t, dest))

	// With overwrite the member replaces the file.
	r2 := NewReader(bytes.NewReader(buf.Bytes()))
	defer r2.Close()
	require.NoError(t, r2.Extract(context.Background(), dest, ExtractWithOverwrite()))
	assert.Equal(t, map[string]string{"data.txt": "new content"}, readTree(t, dest))
}

func TestExtractPreserveMetadata(t *testing.T) {
	t.Parallel()

	modTime := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	e, err := w.Create("script.sh", CreateWithModTime(modTime))
	require.NoError(t, err)
	e.Header.Mode = "0000755"
	cw, err := e.OpenWriter(10)
	require.NoError(t, err)
	_, err = cw.Write([]byte("#!/bin/sh\n"))
	require.NoError(t, err)
	require.NoError(t, cw.Close())
	require.NoError(t, w.Close())

	dest := t.TempDir()
	r := NewReader(bytes.NewReader(buf.Bytes()))
	defer r.Close()
	require.NoError(t, r.Extract(context.Background(), dest,
		ExtractWithPreserveMode(),
		ExtractWithPreserveTimes(),
	))

	info, err := os.Stat(filepath.Join(dest, "script.sh"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o755), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(modTime), "mtime = %v, want %v", info.ModTime(), modTime)
}

func TestExtractDirectWrites(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	files := map[string]string{"a.txt": "alpha", "b/c.txt": "charlie"}
	createTestFiles(t, src, files)

	var buf bytes.Buffer
	require.NoError(t, Archive(context.Background(), src, &buf))

	dest := t.TempDir()
	r := NewReader(bytes.NewReader(buf.Bytes()))
	defer r.Close()
	require.NoError(t, r.Extract(context.Background(), dest, ExtractWithDirectWrites()))

	assert.Equal(t, files, readTree(t, dest))
}

func TestExtractReadAhead(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	files := make(map[string]string)
	for i := range 20 {
		files[fmt.Sprintf("f%02d.bin", i)] = strings.Repeat("y", 600)
	}
	createTestFiles(t, src, files)

	var buf bytes.Buffer
	require.NoError(t, Archive(context.Background(), src, &buf))

	// A budget smaller than a single member still makes progress.
	dest := t.TempDir()
	r := NewReader(bytes.NewReader(buf.Bytes()))
	defer r.Close()
	require.NoError(t, r.Extract(context.Background(), dest, ExtractWithReadAhead(128)))

	assert.Equal(t, files, readTree(t, dest))
}

func TestExtractRejectsTraversal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	writeEntry(t, w, "../evil.txt", "gotcha")
	require.NoError(t, w.Close())

	dest := t.TempDir()
	r := NewReader(bytes.NewReader(buf.Bytes()))
	defer r.Close()
	err := r.Extract(context.Background(), dest)
	assert.ErrorIs(t, err, fs.ErrInvalid)
	assert.Empty(t, readTree(t, dest))
}

func TestExtractAbsoluteName(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	writeEntry(t, w, "/abs.txt", "rooted")
	require.NoError(t, w.Close())

	dest := t.TempDir()
	r := NewReader(bytes.NewReader(buf.Bytes()))
	defer r.Close()
	require.NoError(t, r.Extract(context.Background(), dest))

	// The leading slash is dropped and the member lands under destDir.
	assert.Equal(t, map[string]string{"abs.txt": "rooted"}, readTree(t, dest))
}

func TestExtractStdlibArchive(t *testing.T) {
	t.Parallel()

	modTime := time.Unix(1700000000, 0)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "sub/",
		Mode:     0o755,
		ModTime:  modTime,
		Typeflag: tar.TypeDir,
		Format:   tar.FormatUSTAR,
	}))
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "sub/file.txt",
		Mode:     0o644,
		Size:     5,
		ModTime:  modTime,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}))
	_, err := tw.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	// Directory members are skipped; parents come from the file paths.
	dest := t.TempDir()
	r := NewReader(bytes.NewReader(buf.Bytes()))
	defer r.Close()
	require.NoError(t, r.Extract(context.Background(), dest))

	assert.Equal(t, map[string]string{"sub/file.txt": "hello"}, readTree(t, dest))
}

func TestExtractCancellation(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	createTestFiles(t, src, map[string]string{"a.txt": "alpha"})

	var buf bytes.Buffer
	require.NoError(t, Archive(context.Background(), src, &buf))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReader(bytes.NewReader(buf.Bytes()))
	defer r.Close()
	err := r.Extract(ctx, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchiveCompressedRoundTrip(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	files := map[string]string{
		"readme.md":    "compressed archive",
		"data/big.bin": string(pattern(5000)),
	}
	createTestFiles(t, src, files)

	var buf bytes.Buffer
	enc, err := codec.Gzip.NewEncoder(&buf)
	require.NoError(t, err)
	require.NoError(t, Archive(context.Background(), src, enc))
	require.NoError(t, enc.Close())

	c, br, err := codec.Detect(&buf)
	require.NoError(t, err)
	require.NotNil(t, c, "gzip stream not detected")
	dec, err := c.NewDecoder(br)
	require.NoError(t, err)

	dest := t.TempDir()
	r := NewReader(dec)
	require.NoError(t, r.Extract(context.Background(), dest))
	require.NoError(t, r.Close())

	assert.Equal(t, files, readTree(t, dest))
}
