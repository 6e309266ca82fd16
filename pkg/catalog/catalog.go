// Package catalog defines the persistent package catalog the reconciler
// writes to. All writes of a synchronization run happen inside one Tx.
//
// Lookups that find no row return errutils.ErrNotFound; callers treat that as
// the signal to insert and reuse the new id.
package catalog

import (
	"context"
)

// Store opens catalog transactions.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Repository is a stored repository of one architecture.
type Repository struct {
	ID             int64
	Name           string
	ArchitectureID int64
	Architecture   string
	Testing        bool
	// MTime is the watermark of the last synchronized metadata archive.
	MTime int64
}

// PackageRef identifies a stored package.
type PackageRef struct {
	ID      int64
	Name    string
	Version string
	MTime   int64
}

// Package holds the column values of a package row.
type Package struct {
	RepositoryID   int64
	ArchitectureID int64
	FileName       string
	Name           string
	Base           string
	Version        string
	Description    string
	URL            string
	CompressedSize int64
	InstalledSize  int64
	MD5Sum         string
	SHA256Sum      string
	PGPSignature   string
	BuildDate      int64
	// PackagerID is nil for packages without a packager.
	PackagerID *int64
	MTime      int64
}

// Tx is one catalog transaction.
type Tx interface {
	FindArchitecture(ctx context.Context, name string) (int64, error)
	InsertArchitecture(ctx context.Context, name string) (int64, error)

	FindRepository(ctx context.Context, name string, architectureID int64) (Repository, error)
	InsertRepository(ctx context.Context, name string, architectureID int64, testing bool) (int64, error)
	SetRepositoryMTime(ctx context.Context, repositoryID, mtime int64) error
	// MaxPackageMTime is the newest package mtime of a repository, 0 when it has none.
	MaxPackageMTime(ctx context.Context, repositoryID int64) (int64, error)
	ListRepositories(ctx context.Context) ([]Repository, error)
	// DeleteRepository removes a repository with all its packages and their dependent rows.
	DeleteRepository(ctx context.Context, repositoryID int64) error

	FindPackage(ctx context.Context, repositoryID, architectureID int64, name string) (PackageRef, error)
	InsertPackage(ctx context.Context, pkg Package) (int64, error)
	UpdatePackage(ctx context.Context, id int64, pkg Package) error
	// ListPackages returns the packages of a repository with mtime <= maxMTime.
	ListPackages(ctx context.Context, repositoryID, maxMTime int64) ([]PackageRef, error)
	// DeletePackage removes a package with its relations, files, file index links, group and license links.
	DeletePackage(ctx context.Context, id int64) error

	FindPackager(ctx context.Context, name, email string) (int64, error)
	InsertPackager(ctx context.Context, name, email string) (int64, error)

	FindGroup(ctx context.Context, name string) (int64, error)
	InsertGroup(ctx context.Context, name string) (int64, error)
	DeletePackageGroups(ctx context.Context, packageID int64) error
	InsertPackageGroup(ctx context.Context, packageID, groupID int64) error

	FindLicense(ctx context.Context, name string) (int64, error)
	InsertLicense(ctx context.Context, name string) (int64, error)
	DeletePackageLicenses(ctx context.Context, packageID int64) error
	InsertPackageLicense(ctx context.Context, packageID, licenseID int64) error

	DeletePackageRelations(ctx context.Context, packageID int64, kind string) error
	InsertRelation(ctx context.Context, packageID int64, kind, name, version string) error

	// DeletePackageFiles removes the file rows and file index links of a package.
	DeletePackageFiles(ctx context.Context, packageID int64) error
	InsertFile(ctx context.Context, packageID int64, path string) error
	FindFileIndex(ctx context.Context, name string) (int64, error)
	InsertFileIndex(ctx context.Context, name string) (int64, error)
	InsertPackageFileIndex(ctx context.Context, packageID, fileIndexID int64) error

	// CleanupOrphans drops groups, licenses, packagers, architectures and
	// file index names no longer referenced.
	CleanupOrphans(ctx context.Context) error
	// ResolveRelations re-links every relation to a target package.
	ResolveRelations(ctx context.Context) error

	Commit() error
	Rollback() error
}
