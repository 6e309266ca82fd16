// Package fsutil provides utility functions and constants for file system operations.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrPathTraversal is returned when a joined path escapes its base directory.
var ErrPathTraversal = errors.New("invalid path: path traversal detected")

// CreateFilePerm creates a new file with the specified permissions.
func CreateFilePerm(name string, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
}

// SafeJoin joins path elements and ensures the result is within the base directory.
func SafeJoin(baseDir string, elems ...string) (string, error) {
	cleanPath := filepath.Clean(filepath.Join(append([]string{baseDir}, elems...)...))

	relPath, err := filepath.Rel(baseDir, cleanPath)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(os.PathSeparator)) {
		return "", ErrPathTraversal
	}
	return cleanPath, nil
}

// MakeTempDir creates a fresh owner-only directory below base.
// An empty base uses the system temp directory.
func MakeTempDir(base, prefix string) (string, error) {
	if base != "" {
		if err := os.MkdirAll(base, DirModeDefault); err != nil {
			return "", fmt.Errorf("failed to create temp base %s: %w", base, err)
		}
	}
	dir, err := os.MkdirTemp(base, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	if err := os.Chmod(dir, DirModePrivate); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("failed to restrict temp directory %s: %w", dir, err)
	}
	return dir, nil
}

// RemoveTree deletes dir and everything below it. Children are removed before
// their parents and symbolic links are unlinked without being followed.
// A missing dir is not an error.
func RemoveTree(dir string) error {
	if dir == "" || filepath.Clean(dir) == string(os.PathSeparator) {
		return fmt.Errorf("refusing to remove %q", dir)
	}
	return os.RemoveAll(dir)
}

// Lock is an exclusive lock file created with O_EXCL.
type Lock struct {
	path string
}

// AcquireLock creates the lock file at path. It fails with os.ErrExist
// when another process holds the lock.
func AcquireLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), DirModeDefault); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FileModePrivate)
	if err != nil {
		return nil, err
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
