// Package sqlstore implements the catalog on database/sql. The same queries
// run on SQLite (driver "sqlite3") and PostgreSQL (driver "pgx").
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/glorpus-work/pkgcatalog/internal/logger"
	"github.com/glorpus-work/pkgcatalog/pkg/catalog"
	"github.com/glorpus-work/pkgcatalog/pkg/catalog/sqlstore/migrations"
	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
	"github.com/pressly/goose/v3"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Store is a catalog backed by a database/sql connection pool.
type Store struct {
	db         *sql.DB
	driver     string
	dialect    string
	migrations fs.FS
	dir        string
}

var _ catalog.Store = (*Store)(nil)

// Open connects to the catalog database. For SQLite, foreign keys are enabled
// and the pool is limited to one connection so in-memory databases persist.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	s := &Store{driver: driver}
	switch driver {
	case DriverSQLite:
		s.dialect, s.migrations, s.dir = "sqlite3", migrations.SQLite, "sqlite"
	case DriverPostgres:
		s.dialect, s.migrations, s.dir = "postgres", migrations.Postgres, "postgres"
	default:
		return nil, errutils.ErrUnknownDriverWithDetails(driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s.db = db
	return s, nil
}

// DB exposes the underlying pool.
func (s *Store) DB() *sql.DB { return s.db }

// Driver returns the database/sql driver name.
func (s *Store) Driver() string { return s.driver }

// Migrate applies all pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(s.migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{})

	if err := goose.SetDialect(s.dialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, s.db, s.dir); err != nil {
		return errutils.Wrap(err, "failed to migrate catalog")
	}
	return nil
}

// Version returns the current schema version.
func (s *Store) Version(ctx context.Context) (int64, error) {
	goose.SetBaseFS(s.migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{})

	if err := goose.SetDialect(s.dialect); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, s.db)
}

// Begin starts a catalog transaction.
func (s *Store) Begin(ctx context.Context) (catalog.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type gooseLogger struct{}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	logger.Errorf("goose: "+format, v...)
}

func (gooseLogger) Printf(format string, v ...interface{}) {
	logger.Debugf("goose: "+format, v...)
}
