//go:build integration

package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
	"github.com/glorpus-work/pkgcatalog/test/testutil"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var archiveTime = time.Unix(1_700_003_600, 0)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func publishCore(t *testing.T, m *testutil.Mirror) {
	t.Helper()
	m.Publish(t, "core", "x86_64", archiveTime,
		testutil.Package{
			Dir:     "bash-5.1-1",
			Desc:    testutil.Desc("bash", "5.1-1", "x86_64", "%DESC%", "The GNU Bourne Again shell"),
			Depends: []string{"%DEPENDS%", "readline"},
			Files:   []string{"usr/", "usr/bin/", "usr/bin/bash"},
		},
		testutil.Package{Dir: "readline-8.1-1", Desc: testutil.Desc("readline", "8.1-1", "x86_64")},
	)
}

func TestSync_ImportsAndIsIdempotent(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	m := testutil.NewMirror(t)
	publishCore(t, m)
	srv := testutil.NewMirrorServer(t, m)

	dsn := filepath.Join(t.TempDir(), "db", "catalog.db")
	cfgPath := testutil.SetupTestConfig(t, srv.URL, dsn, map[string][]string{"core": {"x86_64"}})

	out, err := runCmd(t, "--config", cfgPath, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "2 added")

	out, err = runCmd(t, "--config", cfgPath, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM packages`).Scan(&n))
	assert.Equal(t, 2, n)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM package_relation WHERE target_id IS NOT NULL`).Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestSync_FailsWhenLocked(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateDir)
	m := testutil.NewMirror(t)
	publishCore(t, m)

	cfgPath := testutil.SetupTestConfig(t, m.URL(), filepath.Join(t.TempDir(), "catalog.db"), map[string][]string{"core": {"x86_64"}})

	lockPath := filepath.Join(stateDir, "pkgcatalog", "sync.lock")
	require.NoError(t, os.MkdirAll(filepath.Dir(lockPath), 0o755))
	require.NoError(t, os.WriteFile(lockPath, []byte("1\n"), 0o600))

	_, err := runCmd(t, "--config", cfgPath, "sync")
	require.Error(t, err)
	assert.ErrorIs(t, err, errutils.ErrLocked)
}

func TestSync_FailsForMissingArchive(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	m := testutil.NewMirror(t)
	cfgPath := testutil.SetupTestConfig(t, m.URL(), filepath.Join(t.TempDir(), "catalog.db"), map[string][]string{"extra": {"x86_64"}})

	_, err := runCmd(t, "--config", cfgPath, "sync")
	require.Error(t, err)
	assert.ErrorIs(t, err, errutils.ErrFetch)
	assert.Contains(t, err.Error(), "[extra] (x86_64)")
}

func TestSnapshot_ListsPackages(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	m := testutil.NewMirror(t)
	publishCore(t, m)
	cfgPath := testutil.SetupTestConfig(t, m.URL(), filepath.Join(t.TempDir(), "catalog.db"), map[string][]string{"core": {"x86_64"}})

	out, err := runCmd(t, "--config", cfgPath, "snapshot", "core", "x86_64")
	require.NoError(t, err)
	assert.Contains(t, out, "2 packages")
	assert.Contains(t, out, "bash")
	assert.Contains(t, out, "The GNU Bourne Again shell")
	assert.Less(t, bytes.Index([]byte(out), []byte("bash")), bytes.Index([]byte(out), []byte("readline")))
}

func TestMigrateAndVersion(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	m := testutil.NewMirror(t)
	cfgPath := testutil.SetupTestConfig(t, m.URL(), filepath.Join(t.TempDir(), "catalog.db"), map[string][]string{"core": {"x86_64"}})

	out, err := runCmd(t, "--config", cfgPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "version 1 (sqlite3)")

	out, err = runCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pkgcatalog version")
}

func TestConfig_InitShowTargets(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	cfgPath := filepath.Join(t.TempDir(), "pkgcatalog.toml")

	_, err := runCmd(t, "--config", cfgPath, "config", "init", "--mirror", "file:///srv/mirror")
	require.NoError(t, err)

	_, err = runCmd(t, "--config", cfgPath, "config", "init")
	assert.ErrorIs(t, err, os.ErrExist)

	out, err := runCmd(t, "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "file:///srv/mirror")

	out, err = runCmd(t, "--config", cfgPath, "config", "targets")
	require.NoError(t, err)
	assert.Contains(t, out, "core")
	assert.Contains(t, out, "extra")
}
