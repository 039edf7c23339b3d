// Package migrations embeds the goose SQL migration files for the
// substrate's own bookkeeping tables. Gameplay schemas are out of scope
// here — these migrations only cover what the networking/session layer
// itself persists.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
