// Package migrations embeds the schema migrations applied by database.RunMigrations.
package migrations

import "embed"

// FS holds the *.up.sql / *.down.sql files in golang-migrate naming.
//
//go:embed *.sql
var FS embed.FS
