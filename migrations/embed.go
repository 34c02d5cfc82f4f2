// Package migrations embeds the schema migration files so the API binary
// and the migrate tool run from the same compiled-in schema history.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
