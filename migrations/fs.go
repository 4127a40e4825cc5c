// Package migrations embeds the SQL schema migrations for the catalog
// database. Files are applied in lexical order by the shared migration
// runner at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
