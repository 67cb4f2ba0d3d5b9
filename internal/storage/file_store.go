package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileStore owns the on-disk binaries. Uploads are first spooled into a temp
// subdirectory; only a validated attempt gets promoted into the blob
// directory under a generated stored name. Temp files never outlive their
// attempt.
type FileStore struct {
	dir    string
	tmpDir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage dir is required")
	}
	tmpDir := filepath.Join(dir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{dir: dir, tmpDir: tmpDir}, nil
}

// SpoolTemp drains r into a fresh temp file and reports the byte count
// actually written. On a failed copy (client disconnect included) the partial
// file is removed before returning.
func (f *FileStore) SpoolTemp(r io.Reader) (string, int64, error) {
	tmp, err := os.CreateTemp(f.tmpDir, "upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp: %w", err)
	}
	n, err := io.Copy(tmp, r)
	cerr := tmp.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("spool upload: %w", err)
	}
	return tmp.Name(), n, nil
}

// Promote moves a validated temp file into the blob directory. Rename is
// atomic on one filesystem; a copy fallback covers the cross-device case.
func (f *FileStore) Promote(tmpPath, storedName string) error {
	target := filepath.Join(f.dir, storedName)
	if err := os.Rename(tmpPath, target); err == nil {
		return nil
	}
	src, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("promote open: %w", err)
	}
	defer src.Close()
	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("promote create: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(target)
		return fmt.Errorf("promote copy: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(target)
		return fmt.Errorf("promote close: %w", err)
	}
	_ = os.Remove(tmpPath)
	return nil
}

// Open returns the stored binary for streaming.
func (f *FileStore) Open(storedName string) (*os.File, error) {
	return os.Open(filepath.Join(f.dir, storedName))
}

func (f *FileStore) Stat(storedName string) (os.FileInfo, error) {
	return os.Stat(filepath.Join(f.dir, storedName))
}

func (f *FileStore) Remove(storedName string) error {
	err := os.Remove(filepath.Join(f.dir, storedName))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Discard deletes a temp file. Missing files are fine: a rejection may have
// cleaned up already.
func (f *FileStore) Discard(tmpPath string) {
	if tmpPath == "" {
		return
	}
	_ = os.Remove(tmpPath)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// StoredName builds a collision-resistant on-disk name from a timestamp,
// random entropy, and the sanitized original extension. The original
// filename itself is kept only as display metadata on the record.
func StoredName(originalName string) string {
	ext := unsafeChars.ReplaceAllString(strings.ToLower(filepath.Ext(originalName)), "_")
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), ext)
}
