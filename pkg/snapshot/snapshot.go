// Package snapshot downloads and extracts the metadata archive of one
// repository and architecture, and exposes its package directories relative
// to a modification time watermark.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/glorpus-work/pkgcatalog/pkg/archive"
	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
	"github.com/glorpus-work/pkgcatalog/pkg/fsutil"
	"github.com/glorpus-work/pkgcatalog/pkg/mirror"
	"github.com/glorpus-work/pkgcatalog/pkg/model"
)

const readDirBatch = 128

var packageDirPattern = regexp.MustCompile(`^([^-].*)-[^-]+-[^-]+$`)

// Options configure a Fetcher.
type Options struct {
	// Files selects the .files archive, which carries file lists.
	Files bool
	// Delay is the minimum age of a remote archive before it is trusted.
	Delay time.Duration
	// TmpDir is the base directory for extraction. Empty uses the system default.
	TmpDir string
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Fetcher opens repository snapshots from a mirror.
type Fetcher struct {
	source  mirror.Source
	archive *archive.Manager
	opts    Options
}

// NewFetcher creates a Fetcher reading from source.
func NewFetcher(source mirror.Source, opts Options) *Fetcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Fetcher{
		source:  source,
		archive: archive.NewManager(),
		opts:    opts,
	}
}

// Open probes the metadata archive of repository/architecture. The archive is
// downloaded and extracted only when its modification time is newer than
// repoWatermark and older than the configured delay. Package directories are
// filtered against packageWatermark. The returned Snapshot must be closed.
func (f *Fetcher) Open(ctx context.Context, repository, architecture string, repoWatermark, packageWatermark int64) (*Snapshot, error) {
	path := mirror.ArchivePath(repository, architecture, f.opts.Files)

	remote, err := f.source.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	if remote.IsZero() {
		return nil, errutils.NewFetchError(f.source.URL(path), errors.New("unknown modification time"))
	}

	snap := &Snapshot{
		url:       f.source.URL(path),
		mtime:     remote.Unix(),
		watermark: packageWatermark,
		files:     f.opts.Files,
	}

	if snap.mtime <= repoWatermark || f.opts.Now().Sub(remote) <= f.opts.Delay {
		return snap, nil
	}

	if err := f.extract(ctx, snap, path, repository, architecture); err != nil {
		_ = snap.Close()
		return nil, err
	}
	return snap, nil
}

func (f *Fetcher) extract(ctx context.Context, snap *Snapshot, path, repository, architecture string) error {
	root, err := fsutil.MakeTempDir(f.opts.TmpDir, "pkgcatalog-"+repository+"-"+architecture+"-")
	if err != nil {
		return err
	}
	snap.root = root

	archivePath := filepath.Join(root, filepath.Base(path))
	out, err := fsutil.CreateFilePerm(archivePath, fsutil.FileModePrivate)
	if err != nil {
		return errutils.Wrap(err, "could not create archive file")
	}
	n, err := f.source.Fetch(ctx, path, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = errutils.NewFetchError(snap.url, cerr)
	}
	if err != nil {
		return err
	}
	snap.size = n

	dbDir := filepath.Join(root, "db")
	stats, err := f.archive.ExtractAll(ctx, archivePath, dbDir)
	if err != nil {
		return errutils.NewFetchError(snap.url, err)
	}
	if stats.Entries == 0 {
		return errutils.NewFetchError(snap.url, errors.New("archive is empty"))
	}
	if err := os.Remove(archivePath); err != nil {
		return errutils.Wrap(err, "could not remove archive file")
	}
	snap.dbDir = dbDir
	return nil
}

// Snapshot is the extracted content of one metadata archive.
type Snapshot struct {
	url       string
	mtime     int64
	watermark int64
	files     bool
	size      int64

	root  string
	dbDir string

	dir      *os.File
	consumed bool
	newCount *int
}

// URL is the location the archive was probed at.
func (s *Snapshot) URL() string { return s.url }

// MTime is the remote modification time observed at probe, in Unix seconds.
func (s *Snapshot) MTime() int64 { return s.mtime }

// Extracted reports whether the archive was downloaded and extracted.
func (s *Snapshot) Extracted() bool { return s.dbDir != "" }

// Size is the number of archive bytes downloaded.
func (s *Snapshot) Size() int64 { return s.size }

// Packages yields the names of package directories modified after the
// watermark, in directory order. The sequence can be consumed only once.
func (s *Snapshot) Packages() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !s.Extracted() || s.consumed {
			return
		}
		s.consumed = true

		dir, err := os.Open(s.dbDir)
		if err != nil {
			yield("", errutils.NewFetchError(s.url, err))
			return
		}
		s.dir = dir
		defer s.releaseDir()

		for {
			entries, err := dir.ReadDir(readDirBatch)
			for _, entry := range entries {
				mtime, ok, serr := s.dirMTime(entry)
				if serr != nil {
					yield("", serr)
					return
				}
				if !ok || mtime <= s.watermark {
					continue
				}
				if !yield(entry.Name(), nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", errutils.NewFetchError(s.url, err))
				return
			}
		}
	}
}

// Package loads the descriptor of the named package directory.
func (s *Snapshot) Package(name string) (*model.Package, error) {
	if !s.Extracted() {
		return nil, errutils.NewDataError(name, os.ErrNotExist)
	}
	dir, err := fsutil.SafeJoin(s.dbDir, name)
	if err != nil {
		return nil, errutils.NewDataError(name, err)
	}
	return model.Load(dir, s.files)
}

// NewPackageCount counts package directories modified after the watermark.
// The result is computed once.
func (s *Snapshot) NewPackageCount() (int, error) {
	if s.newCount != nil {
		return *s.newCount, nil
	}
	count := 0
	err := s.scan(func(_ string, mtime int64) error {
		if mtime > s.watermark {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.newCount = &count
	return count, nil
}

// OldPackageNames returns the package names of directories not modified
// after the watermark, with the version and release suffix stripped.
func (s *Snapshot) OldPackageNames() ([]string, error) {
	var names []string
	err := s.scan(func(name string, mtime int64) error {
		if mtime > s.watermark {
			return nil
		}
		pkgName, ok := PackageName(name)
		if !ok {
			return errutils.NewConsistencyError(name)
		}
		names = append(names, pkgName)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// PackageName strips the version and release suffix from a package directory name.
func PackageName(dir string) (string, bool) {
	m := packageDirPattern.FindStringSubmatch(dir)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (s *Snapshot) scan(fn func(name string, mtime int64) error) error {
	if !s.Extracted() {
		return nil
	}
	entries, err := os.ReadDir(s.dbDir)
	if err != nil {
		return errutils.NewFetchError(s.url, err)
	}
	for _, entry := range entries {
		mtime, ok, err := s.dirMTime(entry)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(entry.Name(), mtime); err != nil {
			return err
		}
	}
	return nil
}

func (s *Snapshot) dirMTime(entry os.DirEntry) (int64, bool, error) {
	if !entry.IsDir() {
		return 0, false, nil
	}
	info, err := entry.Info()
	if err != nil {
		return 0, false, errutils.NewFetchError(s.url, fmt.Errorf("stat %s: %w", entry.Name(), err))
	}
	return info.ModTime().Unix(), true, nil
}

func (s *Snapshot) releaseDir() {
	if s.dir != nil {
		_ = s.dir.Close()
		s.dir = nil
	}
}

// Close releases the directory handle and removes the extracted tree.
// It is safe to call more than once.
func (s *Snapshot) Close() error {
	s.releaseDir()
	if s.root == "" {
		return nil
	}
	root := s.root
	s.root = ""
	s.dbDir = ""
	if err := fsutil.RemoveTree(root); err != nil {
		return errutils.Wrapf(err, "could not remove snapshot directory %s", root)
	}
	return nil
}
