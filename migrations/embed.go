// Package migrations ships the audit database schema inside the linepush
// binary.
package migrations

import "embed"

// FS holds every *.up.sql / *.down.sql file in this directory at its root.
// Pass it to database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
