// Package sqlite implements persistence on a local SQLite database. One
// process owns the file; WAL mode keeps the API server and the background
// poller from blocking each other.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under the poller + API combination.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS club_research (
	club_name             TEXT PRIMARY KEY,
	country               TEXT NOT NULL DEFAULT '',
	website               TEXT NOT NULL DEFAULT '',
	introduction_research TEXT NOT NULL DEFAULT '',
	checkup_research      TEXT NOT NULL DEFAULT '',
	acceptance_research   TEXT NOT NULL DEFAULT '',
	full_research         TEXT NOT NULL DEFAULT '',
	search_cost           REAL NOT NULL DEFAULT 0,
	web_search_cost       REAL NOT NULL DEFAULT 0,
	total_cost            REAL NOT NULL DEFAULT 0,
	researched_at         TIMESTAMP NOT NULL,
	expires_at            TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS generated_emails (
	club_name       TEXT NOT NULL,
	email_type      TEXT NOT NULL,
	snippet         TEXT NOT NULL DEFAULT '',
	body            TEXT NOT NULL DEFAULT '',
	search_cost     REAL NOT NULL DEFAULT 0,
	content_cost    REAL NOT NULL DEFAULT 0,
	web_search_cost REAL NOT NULL DEFAULT 0,
	total_cost      REAL NOT NULL DEFAULT 0,
	sent            INTEGER NOT NULL DEFAULT 0,
	sent_at         TIMESTAMP,
	created_at      TIMESTAMP NOT NULL,
	PRIMARY KEY (club_name, email_type)
);

CREATE TABLE IF NOT EXISTS conversation_messages (
	id                   TEXT PRIMARY KEY,
	club_name            TEXT NOT NULL,
	contact_name         TEXT NOT NULL DEFAULT '',
	contact_email        TEXT NOT NULL DEFAULT '',
	direction            TEXT NOT NULL,
	subject              TEXT NOT NULL DEFAULT '',
	content              TEXT NOT NULL DEFAULT '',
	sender               TEXT NOT NULL DEFAULT '',
	transport_message_id TEXT NOT NULL DEFAULT '',
	timestamp            TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_club ON conversation_messages(club_name, timestamp);

CREATE TABLE IF NOT EXISTS response_records (
	response_id      TEXT PRIMARY KEY,
	club_name        TEXT NOT NULL,
	contact_name     TEXT NOT NULL DEFAULT '',
	contact_email    TEXT NOT NULL DEFAULT '',
	email_type       TEXT NOT NULL,
	response_type    TEXT NOT NULL,
	content          TEXT NOT NULL DEFAULT '',
	response_date    TIMESTAMP NOT NULL,
	detection_method TEXT NOT NULL,
	processed        INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_responses_club ON response_records(club_name, response_date);

CREATE TABLE IF NOT EXISTS watermarks (
	name  TEXT PRIMARY KEY,
	value TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	club_name  TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL,
	message    TEXT NOT NULL,
	is_read    INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(is_read, created_at);
`

// Migrate creates the schema. All statements are idempotent.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
