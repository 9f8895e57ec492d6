// Package migrations embeds SQL migration files for the Postgres backend.
package migrations

import "embed"

// FS contains the schema migrations, applied in lexicographic order.
//
//go:embed *.sql
var FS embed.FS
