// Package migrations embeds the SQL schema migrations for the PostgreSQL
// metadata store.
package migrations

import "embed"

// FS holds the migration files, named <version>_<title>.<up|down>.sql.
//
//go:embed *.sql
var FS embed.FS
