package mirror

import (
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
	"github.com/jlaffaye/ftp"
)

const (
	defaultFTPPort = "21"
	anonymousUser  = "anonymous"
)

// FTPConn is the subset of an FTP control connection used by FTPSource.
type FTPConn interface {
	GetTime(path string) (time.Time, error)
	Retr(path string) (io.ReadCloser, error)
	Quit() error
}

// FTPDialer opens a logged-in connection to the mirror.
type FTPDialer func(ctx context.Context) (FTPConn, error)

// FTPSource reads metadata archives from an FTP mirror. Every call uses its
// own connection.
type FTPSource struct {
	base *url.URL
	dial FTPDialer
}

// NewFTPSource creates a source that dials u's host with the given timeout.
// Credentials come from the URL user info and default to anonymous login.
func NewFTPSource(u *url.URL, timeout time.Duration) *FTPSource {
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), defaultFTPPort)
	}
	user, password := anonymousUser, anonymousUser
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			password = p
		}
	}

	dial := func(ctx context.Context) (FTPConn, error) {
		opts := []ftp.DialOption{ftp.DialWithContext(ctx)}
		if timeout > 0 {
			opts = append(opts, ftp.DialWithTimeout(timeout))
		}
		conn, err := ftp.Dial(addr, opts...)
		if err != nil {
			return nil, err
		}
		if err := conn.Login(user, password); err != nil {
			_ = conn.Quit()
			return nil, err
		}
		return serverConn{conn}, nil
	}
	return NewFTPSourceWithDialer(u, dial)
}

// NewFTPSourceWithDialer creates a source using dial for every connection.
func NewFTPSourceWithDialer(u *url.URL, dial FTPDialer) *FTPSource {
	return &FTPSource{base: u, dial: dial}
}

// URL returns the absolute URL of path without credentials.
func (s *FTPSource) URL(path string) string {
	redacted := *s.base
	redacted.User = nil
	return joinURLPath(redacted.String(), path)
}

func (s *FTPSource) remotePath(path string) string {
	return joinURLPath(s.base.Path, path)
}

// Stat returns the file's modification time as reported by MDTM.
func (s *FTPSource) Stat(ctx context.Context, path string) (time.Time, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return time.Time{}, errutils.NewFetchError(s.URL(path), err)
	}
	defer func() { _ = conn.Quit() }()

	mtime, err := conn.GetTime(s.remotePath(path))
	if err != nil {
		return time.Time{}, errutils.NewFetchError(s.URL(path), err)
	}
	return mtime, nil
}

// Fetch retrieves the file into w.
func (s *FTPSource) Fetch(ctx context.Context, path string, w io.Writer) (int64, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return 0, errutils.NewFetchError(s.URL(path), err)
	}
	defer func() { _ = conn.Quit() }()

	body, err := conn.Retr(s.remotePath(path))
	if err != nil {
		return 0, errutils.NewFetchError(s.URL(path), err)
	}
	n, err := io.Copy(w, body)
	if closeErr := body.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, errutils.NewFetchError(s.URL(path), err)
	}
	return n, nil
}

type serverConn struct {
	*ftp.ServerConn
}

func (c serverConn) Retr(path string) (io.ReadCloser, error) {
	resp, err := c.ServerConn.Retr(path)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
