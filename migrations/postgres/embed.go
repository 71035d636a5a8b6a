// Package postgres embeds SQL migration files.
package postgres

import "embed"

// PostgresFS contains the schema migrations for the PostgreSQL store.
//
//go:embed schema/*.sql
var PostgresFS embed.FS

// PostgresDir is the directory within PostgresFS where migrations live.
const PostgresDir = "schema"
