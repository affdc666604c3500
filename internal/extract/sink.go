// Package extract places archive members on the filesystem.
package extract

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Member describes one file to place under the destination directory.
type Member struct {
	// Path is the slash-separated relative destination path.
	Path string

	// Mode holds the permission bits applied when mode preservation is on.
	Mode fs.FileMode

	// ModTime is applied when time preservation is on.
	ModTime time.Time
}

// Committer receives one member's content and finalizes or abandons it.
type Committer interface {
	io.Writer

	// Commit finalizes the file at its destination path.
	Commit() error

	// Discard abandons the write and removes any partial file.
	Discard() error
}

// FileSink writes members to the filesystem.
//
// By default each file is written to a temporary file in its destination
// directory and renamed into place on Commit, so partially written files
// are never visible at the final path.
type FileSink struct {
	destDir       string
	overwrite     bool
	preserveMode  bool
	preserveTimes bool
	directWrite   bool
}

// SinkOption configures a FileSink.
type SinkOption func(*FileSink)

// WithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func WithOverwrite(overwrite bool) SinkOption {
	return func(s *FileSink) {
		s.overwrite = overwrite
	}
}

// WithPreserveMode applies each member's permission bits to the placed file.
// By default, files use umask defaults.
func WithPreserveMode(preserve bool) SinkOption {
	return func(s *FileSink) {
		s.preserveMode = preserve
	}
}

// WithPreserveTimes applies each member's modification time to the placed
// file. By default, files keep the current time.
func WithPreserveTimes(preserve bool) SinkOption {
	return func(s *FileSink) {
		s.preserveTimes = preserve
	}
}

// WithDirectWrites disables temp files and writes directly to the final path.
func WithDirectWrites(enabled bool) SinkOption {
	return func(s *FileSink) {
		s.directWrite = enabled
	}
}

// NewFileSink creates a FileSink that writes to destDir.
//
// destDir must already exist. Parent directories of individual members are
// created automatically as needed, and member paths cannot escape destDir.
func NewFileSink(destDir string, opts ...SinkOption) *FileSink {
	s := &FileSink{
		destDir: destDir,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShouldProcess returns false when the member's file already exists and
// overwriting is disabled.
func (s *FileSink) ShouldProcess(path string) bool {
	if s.overwrite {
		return true
	}
	if !fs.ValidPath(path) {
		return false
	}
	_, err := os.Stat(filepath.Join(s.destDir, filepath.FromSlash(path)))
	return os.IsNotExist(err)
}

// Writer returns a Committer placing the member's content.
func (s *FileSink) Writer(m Member) (Committer, error) {
	if !fs.ValidPath(m.Path) {
		return nil, &fs.PathError{Op: "extract", Path: m.Path, Err: fs.ErrInvalid}
	}
	destRel := filepath.FromSlash(m.Path)

	root, err := os.OpenRoot(s.destDir)
	if err != nil {
		return nil, fmt.Errorf("open destination root %s: %w", s.destDir, err)
	}
	if err := root.MkdirAll(filepath.Dir(destRel), 0o750); err != nil {
		_ = root.Close()
		return nil, fmt.Errorf("create directory for %s: %w", m.Path, err)
	}

	if s.directWrite {
		f, err := root.OpenFile(destRel, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
		if err != nil {
			_ = root.Close()
			return nil, fmt.Errorf("create file %s: %w", m.Path, err)
		}
		return &committer{
			member:  m,
			file:    f,
			fileRel: destRel,
			destRel: destRel,
			root:    root,
			sink:    s,
			inPlace: true,
		}, nil
	}

	tempFile, tempRel, err := createTempFile(root, filepath.Dir(destRel), ".ustar-")
	if err != nil {
		_ = root.Close()
		return nil, fmt.Errorf("create temp file for %s: %w", m.Path, err)
	}
	return &committer{
		member:  m,
		file:    tempFile,
		fileRel: tempRel,
		destRel: destRel,
		root:    root,
		sink:    s,
	}, nil
}

// committer writes member content to a staging file, applies metadata, and
// renames into place unless the write was direct.
type committer struct {
	member  Member
	file    *os.File
	fileRel string
	destRel string
	root    *os.Root
	sink    *FileSink
	inPlace bool
}

// Write implements io.Writer.
func (c *committer) Write(p []byte) (int, error) {
	return c.file.Write(p)
}

// Commit closes the staging file, applies metadata, and renames it to the
// final path when staged.
func (c *committer) Commit() error {
	if err := c.file.Close(); err != nil {
		c.cleanup()
		return fmt.Errorf("close %s: %w", c.member.Path, err)
	}

	if c.sink.preserveMode {
		if err := c.root.Chmod(c.fileRel, c.member.Mode.Perm()); err != nil {
			c.cleanup()
			return fmt.Errorf("chmod %s: %w", c.member.Path, err)
		}
	}
	if c.sink.preserveTimes {
		if err := c.root.Chtimes(c.fileRel, c.member.ModTime, c.member.ModTime); err != nil {
			c.cleanup()
			return fmt.Errorf("chtimes %s: %w", c.member.Path, err)
		}
	}

	if !c.inPlace {
		if err := c.root.Rename(c.fileRel, c.destRel); err != nil {
			c.cleanup()
			return fmt.Errorf("rename %s: %w", c.member.Path, err)
		}
	}

	return c.root.Close()
}

// Discard closes and removes the staging file.
func (c *committer) Discard() error {
	_ = c.file.Close()
	if err := c.root.Remove(c.fileRel); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_ = c.root.Close()
		return err
	}
	return c.root.Close()
}

// cleanup removes the staging file after a failed commit, best effort.
func (c *committer) cleanup() {
	_ = c.root.Remove(c.fileRel)
	_ = c.root.Close()
}

func createTempFile(root *os.Root, dir, prefix string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		suffix, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		relPath := filepath.Join(dir, prefix+suffix)
		f, err := root.OpenFile(relPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			return f, relPath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
