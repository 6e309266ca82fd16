package testutil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glorpus-work/pkgcatalog/pkg/archive"
	"github.com/stretchr/testify/require"
)

// Package describes one package directory inside a metadata archive.
type Package struct {
	// Dir is the directory name, e.g. bash-5.1-1.
	Dir     string
	Desc    []string
	Depends []string
	// Files is written only when non-nil.
	Files []string
	// MTime is applied to the directory and its desc file.
	MTime time.Time
	// NoDepends omits the depends file.
	NoDepends bool
}

// Desc builds desc lines for name, version and arch, followed by extra lines.
func Desc(name, version, arch string, extra ...string) []string {
	lines := []string{
		"%FILENAME%", fmt.Sprintf("%s-%s-%s.pkg.tar.zst", name, version, arch),
		"%NAME%", name,
		"%VERSION%", version,
		"%ARCH%", arch,
	}
	return append(lines, extra...)
}

// Mirror is an on-disk mirror tree for tests.
type Mirror struct {
	Root string
}

// NewMirror creates an empty mirror tree in a temporary directory.
func NewMirror(t *testing.T) *Mirror {
	t.Helper()
	return &Mirror{Root: t.TempDir()}
}

// URL returns the file:// URL of the mirror.
func (m *Mirror) URL() string {
	return "file://" + filepath.ToSlash(m.Root)
}

// Publish writes the metadata archive of repository/architecture with the
// given packages and sets its modification time to mtime. Both the .db and
// the .files archive are written.
func (m *Mirror) Publish(t *testing.T, repository, architecture string, mtime time.Time, packages ...Package) {
	t.Helper()

	src := t.TempDir()
	for _, p := range packages {
		writePackage(t, src, p)
	}

	dir := filepath.Join(m.Root, repository, "os", architecture)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	am := archive.NewManager()
	for _, ext := range []string{".db", ".files"} {
		path := filepath.Join(dir, repository+ext)
		require.NoError(t, am.Create(context.Background(), src, path))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

// PublishRaw writes arbitrary bytes as the metadata archive of repository/architecture.
func (m *Mirror) PublishRaw(t *testing.T, repository, architecture string, mtime time.Time, data []byte) {
	t.Helper()
	dir := filepath.Join(m.Root, repository, "os", architecture)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, ext := range []string{".db", ".files"} {
		path := filepath.Join(dir, repository+ext)
		require.NoError(t, os.WriteFile(path, data, 0o644))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

func writePackage(t *testing.T, root string, p Package) {
	t.Helper()
	dir := filepath.Join(root, p.Dir)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	write := func(name string, lines []string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(recordText(lines)), 0o644))
	}
	write("desc", p.Desc)
	if !p.NoDepends {
		write("depends", p.Depends)
	}
	if p.Files != nil {
		write("files", append([]string{"%FILES%"}, p.Files...))
	}

	if !p.MTime.IsZero() {
		require.NoError(t, os.Chtimes(filepath.Join(dir, "desc"), p.MTime, p.MTime))
		require.NoError(t, os.Chtimes(dir, p.MTime, p.MTime))
	}
}

// recordText renders lines in the record format, with a blank line before each section marker.
func recordText(lines []string) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 && strings.HasPrefix(line, "%") && strings.HasSuffix(line, "%") {
			b.WriteString("\n")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// NewMirrorServer serves the mirror over HTTP. Last-Modified headers come
// from file modification times.
func NewMirrorServer(t *testing.T, m *Mirror) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.FileServer(http.Dir(m.Root)))
	t.Cleanup(server.Close)
	return server
}

// SetupTestConfig writes a YAML configuration for the given mirror and
// database into a temporary directory and returns its path.
func SetupTestConfig(t *testing.T, mirrorURL, dsn string, repositories map[string][]string) string {
	t.Helper()

	var b strings.Builder
	fmt.Fprintf(&b, "mirror: %q\n", mirrorURL)
	b.WriteString("files: true\n")
	b.WriteString("delay: 0s\n")
	fmt.Fprintf(&b, "tmp_dir: %q\n", t.TempDir())
	b.WriteString("database:\n  driver: sqlite3\n")
	fmt.Fprintf(&b, "  dsn: %q\n", dsn)
	b.WriteString("repositories:\n")
	for repo, arches := range repositories {
		fmt.Fprintf(&b, "  %s: [%s]\n", repo, strings.Join(arches, ", "))
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}
