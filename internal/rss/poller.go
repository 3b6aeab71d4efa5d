package rss

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bryan-buckman/frontpage/internal/model"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// StatusStore lists feeds and records their health.
type StatusStore interface {
	SupportsHighConcurrency() bool
	ListFeeds() ([]model.FeedConfig, error)
	RecordFetch(status model.SourceStatus) error
}

// checkConcurrency picks how many feeds a check fetches at once. Stores
// that serialize writes get one fetch at a time.
func checkConcurrency(fetcher *Fetcher, store StatusStore) int {
	if store.SupportsHighConcurrency() {
		return fetcher.Concurrency()
	}
	return 1
}

// CheckSources fetches every configured feed and records its status.
func CheckSources(ctx context.Context, fetcher *Fetcher, store StatusStore) ([]model.SourceStatus, error) {
	feeds, err := store.ListFeeds()
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}

	checkedAt := time.Now().UTC()
	results := fetcher.FetchAllLimit(ctx, feeds, checkConcurrency(fetcher, store))
	statuses := lo.Map(results, func(r model.FetchResult, _ int) model.SourceStatus {
		return model.StatusFromResult(r, checkedAt)
	})
	for _, status := range statuses {
		if err := store.RecordFetch(status); err != nil {
			log.Errorf("Error recording status for feed %s: %v", status.Feed.ID, err)
		}
	}
	return statuses, nil
}

// Poller periodically checks every source in the background.
type Poller struct {
	fetcher  *Fetcher
	store    StatusStore
	interval time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewPoller creates a background poller.
func NewPoller(fetcher *Fetcher, store StatusStore, interval time.Duration) *Poller {
	return &Poller{
		fetcher:  fetcher,
		store:    store,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the polling loop.
func (p *Poller) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			log.Infof("Poller: checking all sources (interval: %s)", p.interval)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			statuses, err := CheckSources(ctx, p.fetcher, p.store)
			cancel()

			if err != nil {
				log.Errorf("Poller error: %v", err)
			} else {
				healthy := lo.CountBy(statuses, func(s model.SourceStatus) bool { return s.OK })
				log.Infof("Poller: %d of %d sources healthy", healthy, len(statuses))
			}

			select {
			case <-p.stopChan:
				return
			case <-time.After(p.interval):
			}
		}
	}()
}

// Stop stops the poller gracefully.
func (p *Poller) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}
