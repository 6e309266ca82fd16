// Package migrations embeds the catalog schema for each supported dialect.
package migrations

import "embed"

// SQLite holds the migrations for the sqlite3 driver, under "sqlite".
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres holds the migrations for the pgx driver, under "postgres".
//
//go:embed postgres/*.sql
var Postgres embed.FS
