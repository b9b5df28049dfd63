// Package index provides the SQLite-backed song index with optional FTS5
// full-text search and a per-song chord inventory.
package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS songs (
	path       TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	artist     TEXT NOT NULL DEFAULT '',
	key_label  TEXT NOT NULL DEFAULT '',
	key_root   INTEGER NOT NULL DEFAULT -1,
	key_minor  INTEGER NOT NULL DEFAULT 0,
	declared   INTEGER NOT NULL DEFAULT 0,
	checksum   TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	chords     TEXT NOT NULL DEFAULT '[]',
	body       TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_songs_key_root ON songs(key_root);

CREATE TABLE IF NOT EXISTS song_chords (
	path    TEXT NOT NULL,
	chord   TEXT NOT NULL,
	root    INTEGER NOT NULL,
	quality TEXT NOT NULL DEFAULT '',
	bass    INTEGER NOT NULL DEFAULT -1,
	UNIQUE(path, chord)
);

CREATE INDEX IF NOT EXISTS idx_song_chords_path ON song_chords(path);
CREATE INDEX IF NOT EXISTS idx_song_chords_shape ON song_chords(root, quality, bass);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is still reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
