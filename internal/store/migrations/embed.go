// Package migrations embeds the schema migrations of both cache backends.
package migrations

import "embed"

// FS holds sqlite/ and postgres/ migration directories.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

const (
	SQLiteDir   = "sqlite"
	PostgresDir = "postgres"
)
