package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
)

const defaultUserAgent = "pkgcatalog/1.0"

// HTTPSource reads metadata archives from an HTTP(S) mirror.
type HTTPSource struct {
	base      *url.URL
	client    *http.Client
	userAgent string
}

// NewHTTPSource creates an HTTP source with the given timeout and user agent.
func NewHTTPSource(base *url.URL, timeout time.Duration, userAgent string) *HTTPSource {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPSource{
		base:      base,
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// URL returns the absolute URL of path.
func (s *HTTPSource) URL(path string) string {
	return joinURLPath(s.base.String(), path)
}

// Stat issues a HEAD request and returns the Last-Modified time.
func (s *HTTPSource) Stat(ctx context.Context, path string) (time.Time, error) {
	target := s.URL(path)
	resp, err := s.doRequest(ctx, http.MethodHead, target)
	if err != nil {
		return time.Time{}, err
	}
	_ = resp.Body.Close()

	lm := resp.Header.Get("Last-Modified")
	if lm == "" {
		return time.Time{}, errutils.NewFetchError(target, fmt.Errorf("missing Last-Modified header"))
	}
	mtime, err := http.ParseTime(lm)
	if err != nil {
		return time.Time{}, errutils.NewFetchError(target, errutils.Wrap(err, "invalid Last-Modified header"))
	}
	return mtime, nil
}

// Fetch downloads path into w.
func (s *HTTPSource) Fetch(ctx context.Context, path string, w io.Writer) (int64, error) {
	target := s.URL(path)
	resp, err := s.doRequest(ctx, http.MethodGet, target)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, errutils.NewFetchError(target, errutils.Wrap(err, "could not write file"))
	}
	return n, nil
}

func (s *HTTPSource) doRequest(ctx context.Context, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, http.NoBody)
	if err != nil {
		return nil, errutils.NewFetchError(target, errutils.Wrap(err, "failed to create request"))
	}
	req.Header.Set("User-Agent", s.userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errutils.NewFetchError(target, errutils.Wrap(err, "request failed"))
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, errutils.NewFetchError(target, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
	return resp, nil
}
