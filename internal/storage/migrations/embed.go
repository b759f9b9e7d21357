// Package migrations carries the goose-versioned schema for the catalog
// database, embedded so binaries migrate without shipping SQL files.
package migrations

import "embed"

// PostgresFS embeds all PostgreSQL migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// PostgresDir is the directory goose reads inside PostgresFS.
const PostgresDir = "postgres"
