package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLite is the sqlite-backed Store implementation.
// Params: path-bound sql.DB handle in WAL mode.
// Returns: Store behavior over one database file.
type SQLite struct {
	db *sql.DB
}

// Open opens the database file and prepares the schema.
// Params: path is the sqlite file path, ":memory:" is accepted for tests.
// Returns: ready store or open/migration error.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer avoids SQLITE_BUSY under concurrent scheduler ticks.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set synchronous: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	store := &SQLite{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// initSchema creates all tables and indexes.
// Params: none.
// Returns: migration error if any statement fails.
func (s *SQLite) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS sites (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT NOT NULL,
        name TEXT NOT NULL,
        url TEXT NOT NULL,
        check_interval INTEGER NOT NULL,
        timeout INTEGER NOT NULL,
        uptime_percent INTEGER NOT NULL,
        max_latency INTEGER NOT NULL,
        seo_score INTEGER NOT NULL,
        query_params TEXT NOT NULL DEFAULT '[]',
        health_endpoint TEXT NOT NULL DEFAULT '',
        enabled INTEGER NOT NULL DEFAULT 1,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_sites_user ON sites(user_id);

    CREATE TABLE IF NOT EXISTS check_results (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        site_id INTEGER NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
        timestamp DATETIME NOT NULL,
        status TEXT NOT NULL,
        response_time INTEGER NOT NULL,
        status_code INTEGER,
        error_message TEXT NOT NULL DEFAULT '',
        seo_score INTEGER
    );

    CREATE INDEX IF NOT EXISTS idx_checks_site_ts ON check_results(site_id, timestamp);
    CREATE INDEX IF NOT EXISTS idx_checks_ts ON check_results(timestamp);

    CREATE TABLE IF NOT EXISTS incidents (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        site_id INTEGER NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
        type TEXT NOT NULL,
        status TEXT NOT NULL,
        started_at DATETIME NOT NULL,
        resolved_at DATETIME,
        message TEXT NOT NULL DEFAULT ''
    );

    CREATE UNIQUE INDEX IF NOT EXISTS ux_incidents_active
        ON incidents(site_id, type) WHERE status = 'ACTIVE';
    CREATE INDEX IF NOT EXISTS idx_incidents_site ON incidents(site_id, started_at);

    CREATE TABLE IF NOT EXISTS notification_rules (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT NOT NULL,
        site_id INTEGER NOT NULL DEFAULT 0,
        type TEXT NOT NULL,
        enabled INTEGER NOT NULL DEFAULT 1,
        channels TEXT NOT NULL,
        webhook_url TEXT NOT NULL DEFAULT '',
        slack_channel TEXT NOT NULL DEFAULT ''
    );

    CREATE INDEX IF NOT EXISTS idx_rules_user ON notification_rules(user_id);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
// Params: none.
// Returns: close error from the driver.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether the driver error is a unique index conflict.
// Params: err from an INSERT.
// Returns: true for UNIQUE constraint failures.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
