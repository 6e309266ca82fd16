package mirror

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
)

// FileSource reads metadata archives from a local mirror tree.
type FileSource struct {
	root string
}

// NewFileSource creates a source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{root: dir}
}

func (s *FileSource) URL(path string) string {
	return "file://" + s.resolve(path)
}

func (s *FileSource) resolve(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// Stat returns the file's modification time.
func (s *FileSource) Stat(_ context.Context, path string) (time.Time, error) {
	info, err := os.Stat(s.resolve(path))
	if err != nil {
		return time.Time{}, errutils.NewFetchError(s.URL(path), err)
	}
	return info.ModTime(), nil
}

// Fetch copies the file into w.
func (s *FileSource) Fetch(ctx context.Context, path string, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := os.Open(s.resolve(path))
	if err != nil {
		return 0, errutils.NewFetchError(s.URL(path), err)
	}
	defer func() { _ = f.Close() }()

	n, err := io.Copy(w, f)
	if err != nil {
		return n, errutils.NewFetchError(s.URL(path), err)
	}
	return n, nil
}
