package migrations

import "embed"

// FS contains embedded goose migrations for Postgres marketplace storage.
//
//go:embed *.sql
var FS embed.FS
