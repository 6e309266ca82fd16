// Package archive extracts repository database archives and builds test fixtures.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/glorpus-work/pkgcatalog/pkg/fsutil"
	"github.com/mholt/archives"
)

// ErrNotArchive is returned when the input format cannot be identified as an archive.
var ErrNotArchive = errors.New("not a recognized archive")

// Stats summarises an extraction.
type Stats struct {
	Entries int
	Bytes   int64
}

// Manager handles archive extraction and creation operations.
type Manager struct{}

// NewManager creates a new Manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// ExtractAll extracts every directory and regular file of archivePath into destDir.
// Modification times recorded in the archive are applied to the extracted entries.
// Symbolic links, devices and other entry kinds are skipped.
func (am *Manager) ExtractAll(ctx context.Context, archivePath, destDir string) (Stats, error) {
	var stats Stats

	file, err := os.Open(archivePath)
	if err != nil {
		return stats, fmt.Errorf("failed to open archive file: %w", err)
	}
	defer func() { _ = file.Close() }()

	format, stream, err := archives.Identify(ctx, filepath.Base(archivePath), file)
	if err != nil {
		return stats, fmt.Errorf("failed to identify archive %s: %w", archivePath, err)
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return stats, fmt.Errorf("%w: %s", ErrNotArchive, archivePath)
	}

	if err := os.MkdirAll(destDir, fsutil.DirModePrivate); err != nil {
		return stats, fmt.Errorf("failed to create destination directory: %w", err)
	}

	dirTimes := make(map[string]time.Time)
	handler := func(ctx context.Context, f archives.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := am.extractEntry(f, destDir, dirTimes)
		if err != nil {
			return err
		}
		if n >= 0 {
			stats.Entries++
			stats.Bytes += n
		}
		return nil
	}

	if err := extractor.Extract(ctx, stream, handler); err != nil {
		return stats, fmt.Errorf("failed to extract archive %s: %w", archivePath, err)
	}

	if err := applyDirTimes(dirTimes); err != nil {
		return stats, err
	}
	return stats, nil
}

// extractEntry writes one archive entry below destDir. It returns the number of
// bytes written, or -1 if the entry was skipped.
func (am *Manager) extractEntry(f archives.FileInfo, destDir string, dirTimes map[string]time.Time) (int64, error) {
	name := filepath.Clean(strings.TrimPrefix(filepath.FromSlash(f.NameInArchive), string(os.PathSeparator)))
	if name == "." {
		return -1, nil
	}

	targetPath, err := fsutil.SafeJoin(destDir, name)
	if err != nil {
		return 0, fmt.Errorf("archive entry %s: %w", f.NameInArchive, err)
	}

	switch {
	case f.IsDir():
		if err := os.MkdirAll(targetPath, fsutil.DirModePrivate); err != nil {
			return 0, fmt.Errorf("failed to create directory %s: %w", targetPath, err)
		}
		if !f.ModTime().IsZero() {
			dirTimes[targetPath] = f.ModTime()
		}
		return 0, nil
	case f.Mode().IsRegular():
		return am.writeRegularFile(f, targetPath)
	default:
		return -1, nil
	}
}

// writeRegularFile copies a regular file entry to targetPath and preserves its modification time.
func (am *Manager) writeRegularFile(f archives.FileInfo, targetPath string) (int64, error) {
	src, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open archive entry %s: %w", f.NameInArchive, err)
	}
	defer func() { _ = src.Close() }()

	if err := os.MkdirAll(filepath.Dir(targetPath), fsutil.DirModePrivate); err != nil {
		return 0, fmt.Errorf("failed to create parent directory for %s: %w", f.NameInArchive, err)
	}

	dst, err := fsutil.CreateFilePerm(targetPath, fsutil.FileModePrivate)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file %s: %w", targetPath, err)
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to copy file %s: %w", f.NameInArchive, err)
	}

	if mt := f.ModTime(); !mt.IsZero() {
		if err := os.Chtimes(targetPath, mt, mt); err != nil {
			return 0, fmt.Errorf("failed to set modification time for %s: %w", targetPath, err)
		}
	}
	return n, nil
}

// applyDirTimes sets directory modification times deepest first, after all
// children have been written.
func applyDirTimes(dirTimes map[string]time.Time) error {
	dirs := make([]string, 0, len(dirTimes))
	for dir := range dirTimes {
		dirs = append(dirs, dir)
	}
	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], string(os.PathSeparator)) > strings.Count(dirs[j], string(os.PathSeparator))
	})
	for _, dir := range dirs {
		mt := dirTimes[dir]
		if err := os.Chtimes(dir, mt, mt); err != nil {
			return fmt.Errorf("failed to set modification time for %s: %w", dir, err)
		}
	}
	return nil
}

// Create creates a gzip compressed tar archive from the contents of sourceDir.
func (am *Manager) Create(ctx context.Context, sourceDir, archivePath string) error {
	absolutePath, err := filepath.Abs(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for source directory: %w", err)
	}

	archiveFiles, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		absolutePath + string(os.PathSeparator): "",
	})
	if err != nil {
		return fmt.Errorf("failed to read files from disk: %w", err)
	}

	file, err := fsutil.CreateFilePerm(archivePath, fsutil.FileModeDefault)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", archivePath, err)
	}
	defer func() {
		_ = file.Sync()
		_ = file.Close()
	}()

	format := archives.CompressedArchive{
		Compression: archives.Gz{},
		Archival:    archives.Tar{},
	}

	if err := format.Archive(ctx, file, archiveFiles); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	return nil
}
