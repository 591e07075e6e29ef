// Package migrations embeds SQL migration files into the binary.
//
// Importing this package registers the bridge schema with the database
// package, so migrations run without the SQL files present on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/vhome-bridge/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
