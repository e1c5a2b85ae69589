// Package migrations embeds the goose SQL migrations for the document-store
// mirror backend.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
