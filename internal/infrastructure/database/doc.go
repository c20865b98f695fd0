// Package database provides SQLite connectivity for SmartLight Core.
//
// It manages the database lifecycle (open, migrate, health check,
// close) and embeds SQL migrations into the binary via the migrations
// package. SQLite runs in WAL mode with a single writer connection,
// which matches the bridge's per-device write serialization.
//
//	db, err := database.Open(database.Config{Path: "./data/smartlight.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
