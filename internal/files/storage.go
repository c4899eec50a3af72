// Package files stores submitted CSV sources on local disk. Files are kept
// at their storage path after processing for traceability.
package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Storage is the file storage interface used by the upload path (writes)
// and the ingestion worker (reads).
type Storage interface {
	// Save streams r to durable storage under a sanitized unique name
	// derived from displayName and returns the stored file's metadata.
	Save(r io.Reader, displayName string) (SavedFile, error)
	Exists(path string) bool
	Open(path string) (io.ReadCloser, error)
	Size(path string) (int64, error)
}

// SavedFile describes one stored source file.
type SavedFile struct {
	Path string
	Name string
	Size int64
}

// DiskStorage implements Storage on a local directory.
type DiskStorage struct {
	root string
}

// NewDiskStorage creates the root directory if needed and returns a
// DiskStorage rooted there.
func NewDiskStorage(root string) (*DiskStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStorage{root: root}, nil
}

func (d *DiskStorage) Save(r io.Reader, displayName string) (SavedFile, error) {
	name := SanitizeName(displayName)
	path := filepath.Join(d.root, name)

	f, err := os.Create(path)
	if err != nil {
		return SavedFile{}, fmt.Errorf("create file: %w", err)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(path)
		return SavedFile{}, fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return SavedFile{}, fmt.Errorf("close file: %w", err)
	}

	return SavedFile{Path: path, Name: name, Size: size}, nil
}

func (d *DiskStorage) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (d *DiskStorage) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (d *DiskStorage) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

var (
	specialChars = regexp.MustCompile(`[^\w\s-]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// SanitizeName strips special characters from a client-supplied file name,
// collapses whitespace to hyphens, and appends a short unique suffix so
// repeated uploads of the same file never collide.
func SanitizeName(displayName string) string {
	base := displayName
	ext := ""
	if i := strings.LastIndex(displayName, "."); i >= 0 {
		base, ext = displayName[:i], displayName[i+1:]
	}

	base = specialChars.ReplaceAllString(base, "")
	base = whitespace.ReplaceAllString(strings.TrimSpace(base), "-")
	if base == "" {
		base = "upload"
	}

	suffix := uuid.NewString()[:8]
	if ext == "" {
		return base + "-" + suffix
	}
	return base + "-" + suffix + "." + ext
}
