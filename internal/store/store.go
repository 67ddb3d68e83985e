// Package store persists the archive ledger: which messages have been
// processed and where their media landed. The ledger is what makes repeated
// runs idempotent.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"fabfetch/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS artists (
	id         INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	en_name    TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY,
	user_id    INTEGER NOT NULL,
	group_id   INTEGER NOT NULL DEFAULT 0,
	type       TEXT NOT NULL,
	text       TEXT NOT NULL DEFAULT '',
	result     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	saved_at   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS media (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id INTEGER NOT NULL REFERENCES messages(id),
	url        TEXT NOT NULL,
	path       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_media_message ON media(message_id);
CREATE TABLE IF NOT EXISTS profile_media (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	artist_id INTEGER NOT NULL,
	kind      TEXT NOT NULL,
	url       TEXT NOT NULL UNIQUE,
	path      TEXT NOT NULL,
	saved_at  INTEGER NOT NULL
);
`

// Store wraps the SQLite connection behind the archive's operations.
type Store struct {
	conn *sql.DB
}

// Open creates the database file (and its directory) if needed and applies
// the schema.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// HasMessage reports whether a message id is already in the ledger.
func (s *Store) HasMessage(id int64) (bool, error) {
	var n int
	err := s.conn.QueryRow(`SELECT COUNT(1) FROM messages WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SaveMessage records a processed message and its media rows in one
// transaction.
func (s *Store) SaveMessage(m domain.Message, result domain.ProcessResult, media []domain.SavedMedia) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT OR REPLACE INTO messages (id, user_id, group_id, type, text, result, created_at, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, strftime('%s','now'))`,
		m.ID, m.UserID, m.GroupID, string(m.Type), m.Text, string(result), m.CreatedAt.UnixMilli(),
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, asset := range media {
		if _, err := tx.Exec(
			`INSERT INTO media (message_id, url, path) VALUES (?, ?, ?)`,
			m.ID, asset.URL, asset.Path,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// UpsertArtist keeps the artist roster current with what messages carry.
func (s *Store) UpsertArtist(id int64, name, enName string) error {
	_, err := s.conn.Exec(
		`INSERT INTO artists (id, name, en_name, updated_at) VALUES (?, ?, ?, strftime('%s','now'))
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, en_name = excluded.en_name, updated_at = excluded.updated_at`,
		id, name, enName,
	)
	return err
}

// HasProfileMedia reports whether a profile asset URL was already archived.
// Profile pictures and banners change rarely, so the URL is the identity.
func (s *Store) HasProfileMedia(url string) (bool, error) {
	var n int
	err := s.conn.QueryRow(`SELECT COUNT(1) FROM profile_media WHERE url = ?`, url).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SaveProfileMedia records an archived profile picture or banner.
func (s *Store) SaveProfileMedia(artistID int64, kind domain.ProfileMediaKind, url, path string) error {
	_, err := s.conn.Exec(
		`INSERT OR IGNORE INTO profile_media (artist_id, kind, url, path, saved_at)
		 VALUES (?, ?, ?, ?, strftime('%s','now'))`,
		artistID, string(kind), url, path,
	)
	return err
}

// MediaCount returns how many media rows the ledger holds, for run summaries.
func (s *Store) MediaCount() (int64, error) {
	var n int64
	err := s.conn.QueryRow(`SELECT COUNT(1) FROM media`).Scan(&n)
	return n, err
}
