// Package migrations embeds the goose migrations of the credential tables.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
