// Package migrations embeds the SQL files that create the normalized
// listening-history schema.
package migrations

import "embed"

// FS contains the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
