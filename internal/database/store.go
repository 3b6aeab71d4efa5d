// Package database provides storage backends for the feed configuration list.
package database

import (
	"errors"
	"fmt"

	"github.com/bryan-buckman/frontpage/internal/config"
	"github.com/bryan-buckman/frontpage/internal/model"
)

// Store errors.
var (
	ErrNotFound      = errors.New("feed not found")
	ErrDuplicateFeed = errors.New("feed id already exists")
)

// Store defines the interface for feed configuration storage.
// The file, SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	Close() error

	// DatabaseType returns the name of the backend ("File", "SQLite" or "PostgreSQL").
	DatabaseType() string

	// SupportsHighConcurrency returns true if the backend can handle
	// many concurrent writes (e.g., PostgreSQL).
	SupportsHighConcurrency() bool

	// Feed operations. ListFeeds returns feeds in insertion order, which
	// defines batch cursor positions.
	ListFeeds() ([]model.FeedConfig, error)
	GetFeed(id string) (*model.FeedConfig, error)
	CreateFeed(feed model.FeedConfig) error
	UpdateFeedURL(id, url string) (*model.FeedConfig, error)
	DeleteFeed(id string) error

	// Source health operations.
	RecordFetch(status model.SourceStatus) error
	ListStatuses() ([]model.SourceStatus, error)
}

// Open returns the store selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "file":
		return NewFileStore(cfg.Path), nil
	case "sqlite":
		return New(cfg.Path)
	case "postgres":
		return NewPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("open store: %w", config.ErrUnknownDriver)
	}
}

// withDefaultLimit fills in the item cap for feeds stored without one.
func withDefaultLimit(feed model.FeedConfig) model.FeedConfig {
	if feed.Limit <= 0 {
		feed.Limit = model.DefaultFeedLimit
	}
	return feed
}

func validateFeed(feed model.FeedConfig) error {
	if feed.ID == "" {
		return ErrMissingFeedID
	}
	if feed.URL == "" {
		return ErrMissingURL
	}
	return nil
}
