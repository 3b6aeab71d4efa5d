package database

import (
	"database/sql"
	"fmt"

	"github.com/bryan-buckman/frontpage/internal/model"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Ensure DB implements Store interface.
var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return "SQLite"
}

// SupportsHighConcurrency returns false for SQLite.
func (db *DB) SupportsHighConcurrency() bool {
	return false
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feeds (
		position INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		item_limit INTEGER
	);
	CREATE TABLE IF NOT EXISTS feed_status (
		feed_id TEXT PRIMARY KEY,
		ok INTEGER NOT NULL,
		item_count INTEGER NOT NULL DEFAULT 0,
		last_updated TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		checked_at DATETIME NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// --- Feed Methods ---

// ListFeeds returns all feeds in insertion order.
func (db *DB) ListFeeds() ([]model.FeedConfig, error) {
	rows, err := db.conn.Query("SELECT id, title, url, description, item_limit FROM feeds ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFeeds(rows)
}

// GetFeed returns a single feed by id.
func (db *DB) GetFeed(id string) (*model.FeedConfig, error) {
	row := db.conn.QueryRow("SELECT id, title, url, description, item_limit FROM feeds WHERE id = ?", id)
	return scanFeed(row)
}

// CreateFeed appends a feed. Returns ErrDuplicateFeed if the id is taken.
func (db *DB) CreateFeed(feed model.FeedConfig) error {
	if err := validateFeed(feed); err != nil {
		return err
	}
	res, err := db.conn.Exec(
		"INSERT INTO feeds (id, title, url, description, item_limit) VALUES (?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING",
		feed.ID, feed.Title, feed.URL, feed.Description, nullLimit(feed.Limit))
	if err != nil {
		return err
	}
	return duplicateIfUnchanged(res)
}

// UpdateFeedURL changes the url of a feed.
func (db *DB) UpdateFeedURL(id, url string) (*model.FeedConfig, error) {
	res, err := db.conn.Exec("UPDATE feeds SET url = ? WHERE id = ?", url, id)
	if err != nil {
		return nil, err
	}
	if err := notFoundIfUnchanged(res); err != nil {
		return nil, err
	}
	return db.GetFeed(id)
}

// DeleteFeed removes a feed and its status.
func (db *DB) DeleteFeed(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM feeds WHERE id = ?", id)
	if err != nil {
		return err
	}
	if err := notFoundIfUnchanged(res); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM feed_status WHERE feed_id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Status Methods ---

// RecordFetch upserts the latest status of a feed.
func (db *DB) RecordFetch(status model.SourceStatus) error {
	_, err := db.conn.Exec(`
		INSERT INTO feed_status (feed_id, ok, item_count, last_updated, message, checked_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(feed_id) DO UPDATE SET
			ok = excluded.ok,
			item_count = excluded.item_count,
			last_updated = excluded.last_updated,
			message = excluded.message,
			checked_at = excluded.checked_at`,
		status.Feed.ID, status.OK, status.ItemCount, status.LastUpdated, status.Message, status.CheckedAt.UTC())
	return err
}

// ListStatuses returns recorded statuses in feed order.
func (db *DB) ListStatuses() ([]model.SourceStatus, error) {
	rows, err := db.conn.Query(`
		SELECT f.id, f.title, f.url, f.description, f.item_limit,
			s.ok, s.item_count, s.last_updated, s.message, s.checked_at
		FROM feed_status s JOIN feeds f ON f.id = s.feed_id
		ORDER BY f.position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStatuses(rows)
}
