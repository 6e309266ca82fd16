package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/glorpus-work/pkgcatalog/pkg/catalog"
	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
)

// Tx is a catalog transaction. Placeholders are numbered ($1, $2, ...) and
// appear in ascending order in every statement, which both drivers bind positionally.
type Tx struct {
	tx *sql.Tx
}

var _ catalog.Tx = (*Tx)(nil)

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

func (t *Tx) queryID(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errutils.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

func (t *Tx) execAll(ctx context.Context, queries []string, args ...any) error {
	for _, q := range queries {
		if err := t.exec(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

// Architectures

func (t *Tx) FindArchitecture(ctx context.Context, name string) (int64, error) {
	return t.queryID(ctx, `SELECT id FROM architectures WHERE name = $1`, name)
}

func (t *Tx) InsertArchitecture(ctx context.Context, name string) (int64, error) {
	return t.queryID(ctx, `INSERT INTO architectures (name) VALUES ($1) RETURNING id`, name)
}

// Repositories

func (t *Tx) FindRepository(ctx context.Context, name string, architectureID int64) (catalog.Repository, error) {
	var r catalog.Repository
	err := t.tx.QueryRowContext(ctx, `
		SELECT r.id, r.name, r.arch_id, a.name, r.testing, r.mtime
		FROM repositories r
		JOIN architectures a ON a.id = r.arch_id
		WHERE r.name = $1 AND r.arch_id = $2`,
		name, architectureID,
	).Scan(&r.ID, &r.Name, &r.ArchitectureID, &r.Architecture, &r.Testing, &r.MTime)
	if errors.Is(err, sql.ErrNoRows) {
		return r, errutils.ErrNotFound
	}
	return r, err
}

func (t *Tx) InsertRepository(ctx context.Context, name string, architectureID int64, testing bool) (int64, error) {
	return t.queryID(ctx,
		`INSERT INTO repositories (name, arch_id, testing, mtime) VALUES ($1, $2, $3, 0) RETURNING id`,
		name, architectureID, testing)
}

func (t *Tx) SetRepositoryMTime(ctx context.Context, repositoryID, mtime int64) error {
	return t.exec(ctx, `UPDATE repositories SET mtime = $1 WHERE id = $2`, mtime, repositoryID)
}

func (t *Tx) MaxPackageMTime(ctx context.Context, repositoryID int64) (int64, error) {
	var mtime sql.NullInt64
	err := t.tx.QueryRowContext(ctx,
		`SELECT MAX(mtime) FROM packages WHERE repository_id = $1`, repositoryID,
	).Scan(&mtime)
	if err != nil {
		return 0, err
	}
	return mtime.Int64, nil
}

func (t *Tx) ListRepositories(ctx context.Context) ([]catalog.Repository, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT r.id, r.name, r.arch_id, a.name, r.testing, r.mtime
		FROM repositories r
		JOIN architectures a ON a.id = r.arch_id
		ORDER BY r.name, a.name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var repos []catalog.Repository
	for rows.Next() {
		var r catalog.Repository
		if err := rows.Scan(&r.ID, &r.Name, &r.ArchitectureID, &r.Architecture, &r.Testing, &r.MTime); err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

var deleteRepositoryQueries = []string{
	`DELETE FROM package_relation WHERE package_id IN (SELECT id FROM packages WHERE repository_id = $1)`,
	`UPDATE package_relation SET target_id = NULL WHERE target_id IN (SELECT id FROM packages WHERE repository_id = $1)`,
	`DELETE FROM files WHERE package_id IN (SELECT id FROM packages WHERE repository_id = $1)`,
	`DELETE FROM package_file_index WHERE package_id IN (SELECT id FROM packages WHERE repository_id = $1)`,
	`DELETE FROM package_group WHERE package_id IN (SELECT id FROM packages WHERE repository_id = $1)`,
	`DELETE FROM package_license WHERE package_id IN (SELECT id FROM packages WHERE repository_id = $1)`,
	`DELETE FROM packages WHERE repository_id = $1`,
	`DELETE FROM repositories WHERE id = $1`,
}

func (t *Tx) DeleteRepository(ctx context.Context, repositoryID int64) error {
	return t.execAll(ctx, deleteRepositoryQueries, repositoryID)
}

// Packages

func (t *Tx) FindPackage(ctx context.Context, repositoryID, architectureID int64, name string) (catalog.PackageRef, error) {
	var p catalog.PackageRef
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, name, version, mtime FROM packages WHERE repository_id = $1 AND arch_id = $2 AND name = $3`,
		repositoryID, architectureID, name,
	).Scan(&p.ID, &p.Name, &p.Version, &p.MTime)
	if errors.Is(err, sql.ErrNoRows) {
		return p, errutils.ErrNotFound
	}
	return p, err
}

func (t *Tx) InsertPackage(ctx context.Context, p catalog.Package) (int64, error) {
	return t.queryID(ctx, `
		INSERT INTO packages (
			repository_id, arch_id, filename, name, base, version, description, url,
			compressed_size, installed_size, md5sum, sha256sum, pgpsig, builddate, packager_id, mtime
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`,
		p.RepositoryID, p.ArchitectureID, p.FileName, p.Name, p.Base, p.Version, p.Description, p.URL,
		p.CompressedSize, p.InstalledSize, p.MD5Sum, p.SHA256Sum, p.PGPSignature, p.BuildDate,
		nullInt64(p.PackagerID), p.MTime)
}

func (t *Tx) UpdatePackage(ctx context.Context, id int64, p catalog.Package) error {
	return t.exec(ctx, `
		UPDATE packages SET
			repository_id = $1, arch_id = $2, filename = $3, name = $4, base = $5, version = $6,
			description = $7, url = $8, compressed_size = $9, installed_size = $10, md5sum = $11,
			sha256sum = $12, pgpsig = $13, builddate = $14, packager_id = $15, mtime = $16
		WHERE id = $17`,
		p.RepositoryID, p.ArchitectureID, p.FileName, p.Name, p.Base, p.Version,
		p.Description, p.URL, p.CompressedSize, p.InstalledSize, p.MD5Sum,
		p.SHA256Sum, p.PGPSignature, p.BuildDate, nullInt64(p.PackagerID), p.MTime,
		id)
}

func (t *Tx) ListPackages(ctx context.Context, repositoryID, maxMTime int64) ([]catalog.PackageRef, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, name, version, mtime FROM packages WHERE repository_id = $1 AND mtime <= $2 ORDER BY id`,
		repositoryID, maxMTime)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var refs []catalog.PackageRef
	for rows.Next() {
		var p catalog.PackageRef
		if err := rows.Scan(&p.ID, &p.Name, &p.Version, &p.MTime); err != nil {
			return nil, err
		}
		refs = append(refs, p)
	}
	return refs, rows.Err()
}

var deletePackageQueries = []string{
	`DELETE FROM package_relation WHERE package_id = $1`,
	`UPDATE package_relation SET target_id = NULL WHERE target_id = $1`,
	`DELETE FROM files WHERE package_id = $1`,
	`DELETE FROM package_file_index WHERE package_id = $1`,
	`DELETE FROM package_group WHERE package_id = $1`,
	`DELETE FROM package_license WHERE package_id = $1`,
	`DELETE FROM packages WHERE id = $1`,
}

func (t *Tx) DeletePackage(ctx context.Context, id int64) error {
	return t.execAll(ctx, deletePackageQueries, id)
}

// Packagers

func (t *Tx) FindPackager(ctx context.Context, name, email string) (int64, error) {
	return t.queryID(ctx, `SELECT id FROM packagers WHERE name = $1 AND email = $2`, name, email)
}

func (t *Tx) InsertPackager(ctx context.Context, name, email string) (int64, error) {
	return t.queryID(ctx, `INSERT INTO packagers (name, email) VALUES ($1, $2) RETURNING id`, name, email)
}

// Groups

func (t *Tx) FindGroup(ctx context.Context, name string) (int64, error) {
	return t.queryID(ctx, `SELECT id FROM "groups" WHERE name = $1`, name)
}

func (t *Tx) InsertGroup(ctx context.Context, name string) (int64, error) {
	return t.queryID(ctx, `INSERT INTO "groups" (name) VALUES ($1) RETURNING id`, name)
}

func (t *Tx) DeletePackageGroups(ctx context.Context, packageID int64) error {
	return t.exec(ctx, `DELETE FROM package_group WHERE package_id = $1`, packageID)
}

func (t *Tx) InsertPackageGroup(ctx context.Context, packageID, groupID int64) error {
	return t.exec(ctx,
		`INSERT INTO package_group (package_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		packageID, groupID)
}

// Licenses

func (t *Tx) FindLicense(ctx context.Context, name string) (int64, error) {
	return t.queryID(ctx, `SELECT id FROM licenses WHERE name = $1`, name)
}

func (t *Tx) InsertLicense(ctx context.Context, name string) (int64, error) {
	return t.queryID(ctx, `INSERT INTO licenses (name) VALUES ($1) RETURNING id`, name)
}

func (t *Tx) DeletePackageLicenses(ctx context.Context, packageID int64) error {
	return t.exec(ctx, `DELETE FROM package_license WHERE package_id = $1`, packageID)
}

func (t *Tx) InsertPackageLicense(ctx context.Context, packageID, licenseID int64) error {
	return t.exec(ctx,
		`INSERT INTO package_license (package_id, license_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		packageID, licenseID)
}

// Relations

func (t *Tx) DeletePackageRelations(ctx context.Context, packageID int64, kind string) error {
	return t.exec(ctx, `DELETE FROM package_relation WHERE package_id = $1 AND type = $2`, packageID, kind)
}

func (t *Tx) InsertRelation(ctx context.Context, packageID int64, kind, name, version string) error {
	return t.exec(ctx,
		`INSERT INTO package_relation (package_id, type, name, version) VALUES ($1, $2, $3, $4)`,
		packageID, kind, name, nullString(version))
}

// Files

func (t *Tx) DeletePackageFiles(ctx context.Context, packageID int64) error {
	return t.execAll(ctx, []string{
		`DELETE FROM package_file_index WHERE package_id = $1`,
		`DELETE FROM files WHERE package_id = $1`,
	}, packageID)
}

func (t *Tx) InsertFile(ctx context.Context, packageID int64, path string) error {
	return t.exec(ctx, `INSERT INTO files (package_id, path) VALUES ($1, $2)`, packageID, path)
}

func (t *Tx) FindFileIndex(ctx context.Context, name string) (int64, error) {
	return t.queryID(ctx, `SELECT id FROM file_index WHERE name = $1`, name)
}

func (t *Tx) InsertFileIndex(ctx context.Context, name string) (int64, error) {
	return t.queryID(ctx, `INSERT INTO file_index (name) VALUES ($1) RETURNING id`, name)
}

func (t *Tx) InsertPackageFileIndex(ctx context.Context, packageID, fileIndexID int64) error {
	return t.exec(ctx,
		`INSERT INTO package_file_index (package_id, file_index_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		packageID, fileIndexID)
}

// Maintenance

var cleanupOrphanQueries = []string{
	`DELETE FROM "groups" WHERE id NOT IN (SELECT group_id FROM package_group)`,
	`DELETE FROM licenses WHERE id NOT IN (SELECT license_id FROM package_license)`,
	`DELETE FROM packagers WHERE id NOT IN (SELECT packager_id FROM packages WHERE packager_id IS NOT NULL)`,
	`DELETE FROM architectures
		WHERE id NOT IN (SELECT arch_id FROM packages)
		AND id NOT IN (SELECT arch_id FROM repositories)`,
	`DELETE FROM file_index WHERE id NOT IN (SELECT file_index_id FROM package_file_index)`,
}

func (t *Tx) CleanupOrphans(ctx context.Context) error {
	for _, q := range cleanupOrphanQueries {
		if err := t.exec(ctx, q); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
	}
	return nil
}
