package sqlstore

import (
	"context"
	"database/sql"
	"testing"

	"github.com/glorpus-work/pkgcatalog/pkg/catalog"
	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates an in-memory SQLite catalog with the schema applied.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	store, err := Open(ctx, DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(ctx))
	return store
}

func begin(t *testing.T, store *Store) catalog.Tx {
	t.Helper()
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })
	return tx
}

func count(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

type fixture struct {
	archID int64
	repos  map[string]int64
}

func setupRepos(t *testing.T, tx catalog.Tx, arch string, repos ...string) fixture {
	t.Helper()
	ctx := context.Background()

	archID, err := tx.InsertArchitecture(ctx, arch)
	require.NoError(t, err)

	f := fixture{archID: archID, repos: map[string]int64{}}
	for _, name := range repos {
		id, err := tx.InsertRepository(ctx, name, archID, name == "testing" || name == "core-testing")
		require.NoError(t, err)
		f.repos[name] = id
	}
	return f
}

func insertPackage(t *testing.T, tx catalog.Tx, repoID, archID int64, name string, mtime int64) int64 {
	t.Helper()
	id, err := tx.InsertPackage(context.Background(), catalog.Package{
		RepositoryID:   repoID,
		ArchitectureID: archID,
		Name:           name,
		Base:           name,
		Version:        "1.0-1",
		MTime:          mtime,
	})
	require.NoError(t, err)
	return id
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	assert.ErrorIs(t, err, errutils.ErrUnknownDriver)
}

func TestStore_Migrate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	version, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	require.NoError(t, store.Migrate(ctx), "migrating twice is a no-op")
	assert.Equal(t, DriverSQLite, store.Driver())
}

func TestTx_LookupsMissReturnNotFound(t *testing.T) {
	tx := begin(t, newTestStore(t))
	ctx := context.Background()

	_, err := tx.FindArchitecture(ctx, "x86_64")
	assert.ErrorIs(t, err, errutils.ErrNotFound)
	_, err = tx.FindRepository(ctx, "core", 1)
	assert.ErrorIs(t, err, errutils.ErrNotFound)
	_, err = tx.FindPackage(ctx, 1, 1, "bash")
	assert.ErrorIs(t, err, errutils.ErrNotFound)
	_, err = tx.FindPackager(ctx, "Jane", "jane@example.org")
	assert.ErrorIs(t, err, errutils.ErrNotFound)
	_, err = tx.FindGroup(ctx, "base")
	assert.ErrorIs(t, err, errutils.ErrNotFound)
	_, err = tx.FindLicense(ctx, "GPL")
	assert.ErrorIs(t, err, errutils.ErrNotFound)
	_, err = tx.FindFileIndex(ctx, "bash")
	assert.ErrorIs(t, err, errutils.ErrNotFound)
}

func TestTx_Repositories(t *testing.T) {
	tx := begin(t, newTestStore(t))
	ctx := context.Background()
	f := setupRepos(t, tx, "x86_64", "core", "testing")

	repo, err := tx.FindRepository(ctx, "core", f.archID)
	require.NoError(t, err)
	assert.Equal(t, catalog.Repository{ID: f.repos["core"], Name: "core", ArchitectureID: f.archID, Architecture: "x86_64"}, repo)

	testingRepo, err := tx.FindRepository(ctx, "testing", f.archID)
	require.NoError(t, err)
	assert.True(t, testingRepo.Testing)

	require.NoError(t, tx.SetRepositoryMTime(ctx, f.repos["core"], 1234))
	repo, err = tx.FindRepository(ctx, "core", f.archID)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), repo.MTime)

	mtime, err := tx.MaxPackageMTime(ctx, f.repos["core"])
	require.NoError(t, err)
	assert.Zero(t, mtime)

	insertPackage(t, tx, f.repos["core"], f.archID, "bash", 100)
	insertPackage(t, tx, f.repos["core"], f.archID, "glibc", 300)
	mtime, err = tx.MaxPackageMTime(ctx, f.repos["core"])
	require.NoError(t, err)
	assert.Equal(t, int64(300), mtime)

	repos, err := tx.ListRepositories(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "core", repos[0].Name)
	assert.Equal(t, "testing", repos[1].Name)
}

func TestTx_PackageLifecycle(t *testing.T) {
	store := newTestStore(t)
	tx := begin(t, store)
	ctx := context.Background()
	f := setupRepos(t, tx, "x86_64", "core")
	repoID := f.repos["core"]

	packagerID, err := tx.InsertPackager(ctx, "Jane Doe", "jane@example.org")
	require.NoError(t, err)
	found, err := tx.FindPackager(ctx, "Jane Doe", "jane@example.org")
	require.NoError(t, err)
	assert.Equal(t, packagerID, found)

	pkg := catalog.Package{
		RepositoryID:   repoID,
		ArchitectureID: f.archID,
		FileName:       "bash-5.1-1-x86_64.pkg.tar.zst",
		Name:           "bash",
		Base:           "bash",
		Version:        "5.1-1",
		Description:    "The GNU Bourne Again shell",
		PackagerID:     &packagerID,
		MTime:          100,
	}
	pkgID, err := tx.InsertPackage(ctx, pkg)
	require.NoError(t, err)

	ref, err := tx.FindPackage(ctx, repoID, f.archID, "bash")
	require.NoError(t, err)
	assert.Equal(t, catalog.PackageRef{ID: pkgID, Name: "bash", Version: "5.1-1", MTime: 100}, ref)

	pkg.Version = "5.1-2"
	pkg.MTime = 200
	pkg.PackagerID = nil
	require.NoError(t, tx.UpdatePackage(ctx, pkgID, pkg))
	ref, err = tx.FindPackage(ctx, repoID, f.archID, "bash")
	require.NoError(t, err)
	assert.Equal(t, "5.1-2", ref.Version)
	assert.Equal(t, int64(200), ref.MTime)

	groupID, err := tx.InsertGroup(ctx, "base")
	require.NoError(t, err)
	require.NoError(t, tx.InsertPackageGroup(ctx, pkgID, groupID))
	require.NoError(t, tx.InsertPackageGroup(ctx, pkgID, groupID), "duplicate links are ignored")

	licenseID, err := tx.InsertLicense(ctx, "GPL")
	require.NoError(t, err)
	require.NoError(t, tx.InsertPackageLicense(ctx, pkgID, licenseID))

	require.NoError(t, tx.InsertRelation(ctx, pkgID, "depends", "readline", ">=7.0"))
	require.NoError(t, tx.InsertRelation(ctx, pkgID, "depends", "glibc", ""))
	require.NoError(t, tx.InsertRelation(ctx, pkgID, "provides", "sh", ""))

	require.NoError(t, tx.InsertFile(ctx, pkgID, "usr/bin/bash"))
	indexID, err := tx.InsertFileIndex(ctx, "bash")
	require.NoError(t, err)
	require.NoError(t, tx.InsertPackageFileIndex(ctx, pkgID, indexID))
	require.NoError(t, tx.Commit())

	db := store.DB()
	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM package_group WHERE package_id = $1`, pkgID))
	assert.Equal(t, 3, count(t, db, `SELECT COUNT(*) FROM package_relation WHERE package_id = $1`, pkgID))
	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM package_relation WHERE version IS NULL AND type = 'depends'`))

	tx = begin(t, store)
	require.NoError(t, tx.DeletePackageRelations(ctx, pkgID, "depends"))
	require.NoError(t, tx.DeletePackageFiles(ctx, pkgID))
	require.NoError(t, tx.Commit())
	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM package_relation WHERE package_id = $1`, pkgID))
	assert.Equal(t, 0, count(t, db, `SELECT COUNT(*) FROM files WHERE package_id = $1`, pkgID))
	assert.Equal(t, 0, count(t, db, `SELECT COUNT(*) FROM package_file_index WHERE package_id = $1`, pkgID))

	tx = begin(t, store)
	refs, err := tx.ListPackages(ctx, repoID, 200)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
	refs, err = tx.ListPackages(ctx, repoID, 199)
	require.NoError(t, err)
	assert.Empty(t, refs)

	require.NoError(t, tx.DeletePackage(ctx, pkgID))
	require.NoError(t, tx.Commit())

	for _, table := range []string{"packages", "package_relation", "files", "package_file_index", "package_group", "package_license"} {
		assert.Equal(t, 0, count(t, db, `SELECT COUNT(*) FROM `+table), table)
	}
}

func TestTx_Rollback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.InsertArchitecture(ctx, "x86_64")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	assert.Equal(t, 0, count(t, store.DB(), `SELECT COUNT(*) FROM architectures`))
}

func TestTx_DeleteRepository(t *testing.T) {
	store := newTestStore(t)
	tx := begin(t, store)
	ctx := context.Background()
	f := setupRepos(t, tx, "x86_64", "core", "extra")

	bash := insertPackage(t, tx, f.repos["core"], f.archID, "bash", 1)
	glibc := insertPackage(t, tx, f.repos["extra"], f.archID, "glibc", 1)
	require.NoError(t, tx.InsertRelation(ctx, glibc, "depends", "bash", ""))
	require.NoError(t, tx.InsertRelation(ctx, bash, "depends", "glibc", ""))
	require.NoError(t, tx.InsertFile(ctx, bash, "usr/bin/bash"))
	require.NoError(t, tx.ResolveRelations(ctx))

	require.NoError(t, tx.DeleteRepository(ctx, f.repos["core"]))
	require.NoError(t, tx.Commit())

	db := store.DB()
	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM repositories`))
	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM packages`))
	assert.Equal(t, 0, count(t, db, `SELECT COUNT(*) FROM files`))
	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM package_relation`))
	assert.Equal(t, 0, count(t, db, `SELECT COUNT(*) FROM package_relation WHERE target_id IS NOT NULL`))
}

func TestTx_CleanupOrphans(t *testing.T) {
	store := newTestStore(t)
	tx := begin(t, store)
	ctx := context.Background()
	f := setupRepos(t, tx, "x86_64", "core")

	pkgID := insertPackage(t, tx, f.repos["core"], f.archID, "bash", 1)
	used, err := tx.InsertGroup(ctx, "base")
	require.NoError(t, err)
	require.NoError(t, tx.InsertPackageGroup(ctx, pkgID, used))
	_, err = tx.InsertGroup(ctx, "unused")
	require.NoError(t, err)
	_, err = tx.InsertLicense(ctx, "MIT")
	require.NoError(t, err)
	_, err = tx.InsertPackager(ctx, "Gone", "")
	require.NoError(t, err)
	_, err = tx.InsertFileIndex(ctx, "orphan")
	require.NoError(t, err)
	_, err = tx.InsertArchitecture(ctx, "i686")
	require.NoError(t, err)

	require.NoError(t, tx.CleanupOrphans(ctx))
	require.NoError(t, tx.Commit())

	db := store.DB()
	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM "groups"`))
	assert.Equal(t, 0, count(t, db, `SELECT COUNT(*) FROM licenses`))
	assert.Equal(t, 0, count(t, db, `SELECT COUNT(*) FROM packagers`))
	assert.Equal(t, 0, count(t, db, `SELECT COUNT(*) FROM file_index`))
	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM architectures`), "architecture of a repository is kept")
}

func TestTx_ResolveRelations(t *testing.T) {
	store := newTestStore(t)
	tx := begin(t, store)
	ctx := context.Background()
	f := setupRepos(t, tx, "x86_64", "core", "extra", "testing")

	other := setupRepos(t, tx, "aarch64", "alarm")

	coreFoo := insertPackage(t, tx, f.repos["core"], f.archID, "foo", 1)
	insertPackage(t, tx, f.repos["extra"], f.archID, "foo", 1)
	extraBar := insertPackage(t, tx, f.repos["extra"], f.archID, "bar", 1)
	insertPackage(t, tx, f.repos["testing"], f.archID, "qux", 1)
	insertPackage(t, tx, other.repos["alarm"], other.archID, "zap", 1)

	coreApp := insertPackage(t, tx, f.repos["core"], f.archID, "app", 1)
	require.NoError(t, tx.InsertRelation(ctx, coreApp, "depends", "foo", ""))
	require.NoError(t, tx.InsertRelation(ctx, coreApp, "depends", "bar", ""))
	require.NoError(t, tx.InsertRelation(ctx, coreApp, "depends", "qux", ""))
	require.NoError(t, tx.InsertRelation(ctx, coreApp, "depends", "zap", ""))
	require.NoError(t, tx.InsertRelation(ctx, coreApp, "depends", "missing", ""))

	testingApp := insertPackage(t, tx, f.repos["testing"], f.archID, "tapp", 1)
	require.NoError(t, tx.InsertRelation(ctx, testingApp, "depends", "qux", ""))

	require.NoError(t, tx.ResolveRelations(ctx))
	require.NoError(t, tx.Commit())

	target := func(pkgID int64, name string) sql.NullInt64 {
		var id sql.NullInt64
		require.NoError(t, store.DB().QueryRow(
			`SELECT target_id FROM package_relation WHERE package_id = $1 AND name = $2`, pkgID, name,
		).Scan(&id))
		return id
	}

	assert.Equal(t, sql.NullInt64{Int64: coreFoo, Valid: true}, target(coreApp, "foo"), "same repository wins")
	assert.Equal(t, sql.NullInt64{Int64: extraBar, Valid: true}, target(coreApp, "bar"), "fallback to same architecture")
	assert.False(t, target(coreApp, "qux").Valid, "testing repositories are not fallback targets")
	assert.False(t, target(coreApp, "zap").Valid, "other architectures are never targets")
	assert.False(t, target(coreApp, "missing").Valid)
	assert.True(t, target(testingApp, "qux").Valid, "testing packages resolve inside their own repository")
}
