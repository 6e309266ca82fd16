// Package mirror provides access to repository metadata archives published by
// a package mirror. A Source resolves paths relative to the mirror base and
// supports probing a resource's modification time before downloading it.
package mirror

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
)

//go:generate mockgen -destination=./mocks/source.go -package=mocks . Source

// Source is a mirror that serves metadata archives.
type Source interface {
	// Stat returns the remote modification time of the resource at path.
	Stat(ctx context.Context, path string) (time.Time, error)
	// Fetch copies the resource at path into w and returns the number of bytes written.
	Fetch(ctx context.Context, path string, w io.Writer) (int64, error)
	// URL returns the absolute location of path, used in diagnostics.
	URL(path string) string
}

// Options configure the sources created by New.
type Options struct {
	Timeout   time.Duration
	UserAgent string
}

// New returns the Source serving base, selected by URL scheme.
func New(ctx context.Context, base string, opts Options) (Source, error) {
	if strings.TrimSpace(base) == "" {
		return nil, errutils.ErrMirrorEmpty
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, errutils.Wrapf(err, "invalid mirror URL %s", base)
	}

	switch u.Scheme {
	case "http", "https":
		return NewHTTPSource(u, opts.Timeout, opts.UserAgent), nil
	case "file":
		return NewFileSource(u.Path), nil
	case "ftp":
		return NewFTPSource(u, opts.Timeout), nil
	case "s3":
		return NewS3Source(ctx, u)
	default:
		return nil, errutils.ErrUnsupportedSchemeWithDetails(u.Scheme)
	}
}

// ArchivePath returns the mirror-relative path of the metadata archive of a
// repository and architecture.
func ArchivePath(repository, architecture string, files bool) string {
	ext := ".db"
	if files {
		ext = ".files"
	}
	return repository + "/os/" + architecture + "/" + repository + ext
}

func joinURLPath(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
