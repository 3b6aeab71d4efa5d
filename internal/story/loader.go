package story

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bryan-buckman/frontpage/internal/model"
	log "github.com/sirupsen/logrus"
)

// Loader input errors.
var (
	ErrInvalidCursor    = errors.New("cursor must be non-negative")
	ErrInvalidBatchSize = errors.New("feed batch size must be at least 1")
)

// FeedLister provides the ordered feed configuration list.
type FeedLister interface {
	ListFeeds() ([]model.FeedConfig, error)
}

// FeedFetcher fetches a slice of feeds. The result at index i belongs to
// feeds[i] and every feed resolves to exactly one result.
type FeedFetcher interface {
	FetchAll(ctx context.Context, feeds []model.FeedConfig) []model.FetchResult
}

// BatchRequest selects a slice of the feed list. Feeds is optional; when
// nil the list is read from the store.
type BatchRequest struct {
	Cursor        int
	FeedBatchSize int
	StoryLimit    int
	Feeds         []model.FeedConfig
}

// Loader serves ranked stories one feed slice at a time.
type Loader struct {
	feeds   FeedLister
	fetcher FeedFetcher
	ranker  *Ranker
	now     func() time.Time
}

// NewLoader creates a batch loader.
func NewLoader(feeds FeedLister, fetcher FeedFetcher, ranker *Ranker) *Loader {
	return &Loader{
		feeds:   feeds,
		fetcher: fetcher,
		ranker:  ranker,
		now:     time.Now,
	}
}

// WithClock overrides the ranking instant source.
func (l *Loader) WithClock(now func() time.Time) *Loader {
	l.now = now
	return l
}

// LoadBatch fetches feeds[cursor:cursor+size] and ranks their stories.
// Per-feed failures are reported in the result; only a failure to read
// the feed list is returned as an error. A cursor at or past the end of
// the list yields an empty terminal result with the cursor unchanged.
func (l *Loader) LoadBatch(ctx context.Context, req BatchRequest) (model.StoryBatchResult, error) {
	if req.Cursor < 0 {
		return model.StoryBatchResult{}, ErrInvalidCursor
	}
	if req.FeedBatchSize < 1 {
		return model.StoryBatchResult{}, ErrInvalidBatchSize
	}

	feeds := req.Feeds
	if feeds == nil {
		var err error
		feeds, err = l.feeds.ListFeeds()
		if err != nil {
			return model.StoryBatchResult{}, fmt.Errorf("list feeds: %w", err)
		}
	}

	if req.Cursor >= len(feeds) {
		return model.StoryBatchResult{
			Stories:      []model.StoryCardData{},
			NextCursor:   req.Cursor,
			HasMoreFeeds: false,
			Errors:       []model.FetchError{},
		}, nil
	}
	end := min(req.Cursor+req.FeedBatchSize, len(feeds))
	slice := feeds[req.Cursor:end]

	results := l.fetcher.FetchAll(ctx, slice)
	normalized, errs := Partition(results)

	loaded := make([]string, 0, len(normalized))
	for _, feed := range normalized {
		loaded = append(loaded, feed.Config.ID)
	}

	stories := l.ranker.Rank(normalized, Options{Limit: req.StoryLimit, Now: l.now()})
	next := req.Cursor + len(slice)

	log.WithFields(log.Fields{
		"cursor":      req.Cursor,
		"next_cursor": next,
		"stories":     len(stories),
		"errors":      len(errs),
	}).Debug("Loaded story batch")

	return model.StoryBatchResult{
		Stories:      stories,
		NextCursor:   next,
		HasMoreFeeds: next < len(feeds),
		Errors:       errs,
		LoadedFeeds:  loaded,
	}, nil
}

// Partition splits fetch results by variant, keeping input order.
func Partition(results []model.FetchResult) ([]model.NormalizedFeed, []model.FetchError) {
	normalized := make([]model.NormalizedFeed, 0, len(results))
	errs := make([]model.FetchError, 0)
	for _, r := range results {
		switch r.Kind {
		case model.FetchNormalized:
			normalized = append(normalized, r.Feed)
		case model.FetchFailed:
			errs = append(errs, r.Error)
		}
	}
	return normalized, errs
}
