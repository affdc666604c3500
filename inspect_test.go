package ustar

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	t.Parallel()

	modTime := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	writeEntry(t, w, "a.txt", "alpha", CreateWithModTime(modTime))
	writeEntry(t, w, "big.bin", strings.Repeat("x", 1162), CreateWithModTime(modTime))
	writeEntry(t, w, "empty", "", CreateWithModTime(modTime))
	require.NoError(t, w.Close())
	archiveSize := int64(buf.Len())

	s, err := Inspect(context.Background(), &buf)
	require.NoError(t, err)

	assert.Equal(t, 3, s.FileCount())
	assert.Equal(t, int64(5+1162), s.ContentBytes)
	assert.Equal(t, archiveSize, s.ArchiveBytes)
	assert.Equal(t, archiveSize-1167, s.Overhead())

	require.Len(t, s.Entries, 3)
	assert.Equal(t, "a.txt", s.Entries[0].Name)
	assert.Equal(t, int64(5), s.Entries[0].Size)
	assert.True(t, s.Entries[0].ModTime.Equal(modTime))
	assert.Equal(t, "big.bin", s.Entries[1].Name)
	assert.Equal(t, int64(1162), s.Entries[1].Size)

	// Digests are off by default.
	for _, e := range s.Entries {
		assert.Empty(t, e.Digest)
	}
}

func TestInspectWithDigests(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	writeEntry(t, w, "a.txt", "alpha")
	writeEntry(t, w, "empty", "")
	require.NoError(t, w.Close())

	s, err := Inspect(context.Background(), &buf, InspectWithDigests())
	require.NoError(t, err)

	require.Len(t, s.Entries, 2)
	assert.Equal(t, digest.FromString("alpha"), s.Entries[0].Digest)
	assert.Equal(t, digest.FromString(""), s.Entries[1].Digest)
}

func TestInspectEmptyArchive(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Close())

	s, err := Inspect(context.Background(), &buf)
	require.NoError(t, err)

	assert.Zero(t, s.FileCount())
	assert.Zero(t, s.ContentBytes)
	assert.Equal(t, int64(2*BlockSize), s.ArchiveBytes)
}

func TestInspectCorruptArchive(t *testing.T) {
	t.Parallel()

	data := memberBytes(t, "ok.txt", "fine")
	data[124] = 'z'

	_, err := Inspect(context.Background(), bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrFormat)
}

func TestInspectCancellation(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, []testMember{{"a.txt", "alpha"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Inspect(ctx, bytes.NewReader(data))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInspectLeavesStreamOpen(t *testing.T) {
	t.Parallel()

	src := &closeRecorder{}
	w := NewWriter(src, WriteWithLeaveOpen())
	writeEntry(t, w, "a.txt", "alpha")
	require.NoError(t, w.Close())

	_, err := Inspect(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, src.closed, "Inspect should not close the stream")
}
