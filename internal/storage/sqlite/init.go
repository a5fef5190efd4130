package sqlite

import (
	"database/sql"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database at dbPath and creates the deliveries
// table if it doesn't exist.
func InitDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS deliveries (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source_path TEXT NOT NULL,
		destination_path TEXT NOT NULL,
		max_wait_ms INTEGER NOT NULL DEFAULT 0,
		poll_interval_ms INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		failure_reason TEXT NOT NULL DEFAULT '',
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		polls INTEGER NOT NULL DEFAULT 0,
		locked_by TEXT,
		requested_at DATETIME,
		delivered_at DATETIME
	)`)

	if err != nil {
		return nil, err
	}

	return db, nil
}
