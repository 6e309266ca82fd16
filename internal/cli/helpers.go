package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/pkgcatalog/internal/logger"
	"github.com/glorpus-work/pkgcatalog/pkg/catalog/sqlstore"
	"github.com/glorpus-work/pkgcatalog/pkg/config"
	"github.com/glorpus-work/pkgcatalog/pkg/fsutil"
	"github.com/glorpus-work/pkgcatalog/pkg/mirror"
	"github.com/glorpus-work/pkgcatalog/pkg/snapshot"
)

// These variables will be set by the main package
var (
	ConfigPath *string
	Verbose    *bool
	LogFormat  *string
)

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}

	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		logger.Warn("Failed to get default config path, using empty path", logger.Fields{"error": err})
		return ""
	}
	return defaultPath
}

// loadConfig loads the configuration and applies the logging flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.LogLevel
	if Verbose != nil && *Verbose {
		level = "debug"
	}
	format := logger.FormatText
	if LogFormat != nil && *LogFormat != "" {
		format = logger.OutputFormat(*LogFormat)
	}
	logger.InitLogger(level, format)

	return cfg, nil
}

// openStore connects to the catalog and applies pending migrations.
func openStore(ctx context.Context, cfg *config.Config) (*sqlstore.Store, error) {
	if cfg.Database.Driver == sqlstore.DriverSQLite {
		if dir := sqliteDir(cfg.Database.DSN); dir != "" {
			if err := os.MkdirAll(dir, fsutil.DirModeSecure); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	store, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// sqliteDir returns the parent directory of a plain SQLite file DSN.
func sqliteDir(dsn string) string {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return ""
	}
	path, _, _ := strings.Cut(dsn, "?")
	return filepath.Dir(path)
}

func newFetcher(ctx context.Context, cfg *config.Config) (*snapshot.Fetcher, error) {
	source, err := mirror.New(ctx, cfg.Mirror, mirror.Options{Timeout: cfg.HTTPTimeout})
	if err != nil {
		return nil, err
	}
	return snapshot.NewFetcher(source, snapshot.Options{
		Files:  cfg.Files,
		Delay:  cfg.Delay,
		TmpDir: cfg.TmpDir,
	}), nil
}
