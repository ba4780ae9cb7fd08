package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) the sqlite database at path with WAL journal mode
// and foreign keys enabled.
func Open(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS meetings (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	app_bundle_id        TEXT NOT NULL,
	app_name             TEXT NOT NULL,
	start_time           TIMESTAMP NOT NULL,
	end_time             TIMESTAMP,
	duration_seconds     INTEGER,
	screenshot_count     INTEGER NOT NULL DEFAULT 0,
	transcript           TEXT NOT NULL DEFAULT '',
	ai_summary           TEXT NOT NULL DEFAULT '',
	notion_page_id       TEXT NOT NULL DEFAULT '',
	notion_page_url      TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL,
	transcription_status TEXT NOT NULL,
	audio_file_path      TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS transcript_segments (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	meeting_id INTEGER NOT NULL REFERENCES meetings(id),
	start_time REAL NOT NULL,
	end_time   REAL NOT NULL,
	text       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_segments_meeting ON transcript_segments(meeting_id, start_time);

CREATE TABLE IF NOT EXISTS meeting_minutes (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	meeting_id       INTEGER NOT NULL UNIQUE REFERENCES meetings(id),
	summary          TEXT NOT NULL DEFAULT '',
	key_points       TEXT NOT NULL DEFAULT '[]',
	action_items_raw TEXT NOT NULL DEFAULT '',
	decisions        TEXT NOT NULL DEFAULT '[]',
	version          INTEGER NOT NULL,
	is_finalized     INTEGER NOT NULL DEFAULT 0,
	generated_at     TIMESTAMP NOT NULL,
	model            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS action_items (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	meeting_id INTEGER NOT NULL REFERENCES meetings(id),
	minutes_id INTEGER,
	title      TEXT NOT NULL,
	assignee   TEXT NOT NULL DEFAULT '',
	due_date   TEXT NOT NULL DEFAULT '',
	priority   TEXT NOT NULL,
	status     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_meeting ON action_items(meeting_id);
`

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
