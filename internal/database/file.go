package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bryan-buckman/frontpage/internal/model"
)

// FileStore keeps the feed list in a JSON file. Source statuses are held
// in memory only.
type FileStore struct {
	path string

	mu       sync.Mutex
	statuses map[string]model.SourceStatus
}

// Ensure FileStore implements Store interface.
var _ Store = (*FileStore)(nil)

// NewFileStore returns a store backed by the JSON file at path. The file
// need not exist yet.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:     path,
		statuses: make(map[string]model.SourceStatus),
	}
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

// DatabaseType returns the backend name.
func (s *FileStore) DatabaseType() string {
	return "File"
}

// SupportsHighConcurrency returns false; writes rewrite the whole file.
func (s *FileStore) SupportsHighConcurrency() bool {
	return false
}

// readFeeds loads the raw records. A missing file is an empty list.
func (s *FileStore) readFeeds() ([]model.FeedConfig, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.FeedConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}
	var feeds []model.FeedConfig
	if err := json.Unmarshal(data, &feeds); err != nil {
		return nil, fmt.Errorf("decode feeds file: %w", err)
	}
	return feeds, nil
}

// writeFeeds replaces the file atomically.
func (s *FileStore) writeFeeds(feeds []model.FeedConfig) error {
	data, err := json.MarshalIndent(feeds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode feeds: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create feeds dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".feeds-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write feeds file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write feeds file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// ListFeeds returns all feeds in file order.
func (s *FileStore) ListFeeds() ([]model.FeedConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feeds, err := s.readFeeds()
	if err != nil {
		return nil, err
	}
	for i := range feeds {
		feeds[i] = withDefaultLimit(feeds[i])
	}
	return feeds, nil
}

// GetFeed returns the feed with id.
func (s *FileStore) GetFeed(id string) (*model.FeedConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feeds, err := s.readFeeds()
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(feeds, func(f model.FeedConfig) bool { return f.ID == id })
	if idx < 0 {
		return nil, ErrNotFound
	}
	feed := withDefaultLimit(feeds[idx])
	return &feed, nil
}

// CreateFeed appends a feed.
func (s *FileStore) CreateFeed(feed model.FeedConfig) error {
	if err := validateFeed(feed); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	feeds, err := s.readFeeds()
	if err != nil {
		return err
	}
	if slices.ContainsFunc(feeds, func(f model.FeedConfig) bool { return f.ID == feed.ID }) {
		return ErrDuplicateFeed
	}
	return s.writeFeeds(append(feeds, feed))
}

// UpdateFeedURL changes the url of feed id.
func (s *FileStore) UpdateFeedURL(id, url string) (*model.FeedConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feeds, err := s.readFeeds()
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(feeds, func(f model.FeedConfig) bool { return f.ID == id })
	if idx < 0 {
		return nil, ErrNotFound
	}
	feeds[idx].URL = url
	if err := s.writeFeeds(feeds); err != nil {
		return nil, err
	}
	feed := withDefaultLimit(feeds[idx])
	return &feed, nil
}

// DeleteFeed removes feed id and its status.
func (s *FileStore) DeleteFeed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	feeds, err := s.readFeeds()
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(feeds, func(f model.FeedConfig) bool { return f.ID == id })
	if idx < 0 {
		return ErrNotFound
	}
	delete(s.statuses, id)
	return s.writeFeeds(slices.Delete(feeds, idx, idx+1))
}

// RecordFetch stores the latest status of a feed.
func (s *FileStore) RecordFetch(status model.SourceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[status.Feed.ID] = status
	return nil
}

// ListStatuses returns the recorded statuses in feed order.
func (s *FileStore) ListStatuses() ([]model.SourceStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feeds, err := s.readFeeds()
	if err != nil {
		return nil, err
	}
	var out []model.SourceStatus
	for _, f := range feeds {
		if status, ok := s.statuses[f.ID]; ok {
			status.Feed = withDefaultLimit(f)
			out = append(out, status)
		}
	}
	return out, nil
}
