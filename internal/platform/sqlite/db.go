package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	// Register the sqlite3 database/sql driver.
	_ "github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver registered by go-sqlite3.
const DriverName = "sqlite3"

// Open connects to the database at dsn, which is a file path or ":memory:".
// SQLite allows a single writer, so the pool is limited to one connection;
// this also keeps an in-memory database alive across calls.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, DriverName, withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	opts := "_busy_timeout=5000&_foreign_keys=on"
	if dsn != ":memory:" && !strings.Contains(dsn, "mode=memory") {
		opts += "&_journal_mode=WAL"
	}
	return dsn + sep + opts
}
