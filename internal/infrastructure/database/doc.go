// Package database provides SQLite connectivity for RoomWatch Core.
//
// It opens the database with WAL mode and foreign keys, keeps a single
// pooled connection, and applies the embedded schema migrations from the
// top-level migrations package.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Repositories accept a Querier so they can be bound to either the pool
// or a transaction opened with InTx.
//
// Migration files are named YYYYMMDD_HHMMSS_description.{up,down}.sql.
// Each migration runs in its own transaction and is recorded in
// schema_migrations.
package database
