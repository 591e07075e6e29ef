// Package database provides SQLite database connectivity for the vhome bridge.
//
// The bridge keeps its registered device set and connection parameters in a
// small key/value table (see migrations/). This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations embedded in the binary
//   - Connection lifecycle and a health check that covers schema drift
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (the file holds the bridge user code)
//
// Usage:
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are forward-only files named YYYYMMDD_HHMMSS_label.up.sql.
// HealthCheck fails while any of them is unapplied.
package database
