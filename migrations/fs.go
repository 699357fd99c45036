// Package migrations embeds the SQL schema migrations so cmd/migrate can run
// them from the binary alone.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
