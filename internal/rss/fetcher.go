// Package rss provides feed fetching and parsing.
package rss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bryan-buckman/frontpage/internal/config"
	"github.com/bryan-buckman/frontpage/internal/metrics"
	"github.com/bryan-buckman/frontpage/internal/model"
	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxConcurrencyPerDomain limits parallel requests to any single domain
	MaxConcurrencyPerDomain = 2
	// DelayBetweenDomainRequests is the minimum delay between requests to the same domain
	DelayBetweenDomainRequests = 500 * time.Millisecond

	acceptHeader = "application/rss+xml, application/atom+xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
	maxFeedBytes = 10 << 20
)

// domainLimiter controls rate limiting per domain to avoid overwhelming hosts.
type domainLimiter struct {
	mu          sync.Mutex
	delay       time.Duration
	semaphores  map[string]chan struct{}
	lastRequest map[string]time.Time
}

func newDomainLimiter(delay time.Duration) *domainLimiter {
	return &domainLimiter{
		delay:       delay,
		semaphores:  make(map[string]chan struct{}),
		lastRequest: make(map[string]time.Time),
	}
}

// acquire gets a slot for the domain, blocking if necessary.
// It also enforces the minimum delay between requests to the same domain.
func (dl *domainLimiter) acquire(ctx context.Context, domain string) error {
	dl.mu.Lock()
	sem, ok := dl.semaphores[domain]
	if !ok {
		sem = make(chan struct{}, MaxConcurrencyPerDomain)
		dl.semaphores[domain] = sem
	}
	dl.mu.Unlock()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	dl.mu.Lock()
	lastReq := dl.lastRequest[domain]
	dl.mu.Unlock()

	if !lastReq.IsZero() {
		if elapsed := time.Since(lastReq); elapsed < dl.delay {
			select {
			case <-time.After(dl.delay - elapsed):
			case <-ctx.Done():
				<-sem
				return ctx.Err()
			}
		}
	}
	return nil
}

// release returns a slot for the domain and records the request time.
func (dl *domainLimiter) release(domain string) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.lastRequest[domain] = time.Now()
	if sem, ok := dl.semaphores[domain]; ok {
		<-sem
	}
}

// extractDomain gets the host from a URL.
func extractDomain(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	return u.Host
}

// Options configures a Fetcher.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	DefaultLimit int
	Retries      int
	RetryWait    time.Duration
	Concurrency  int

	// DomainLimit caps in-flight requests per host and spaces them by
	// DomainDelay. Batch loads turn it off so one slow feed cannot hold
	// up others on the same host.
	DomainLimit bool
	DomainDelay time.Duration
}

// DefaultOptions returns the fetcher defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:      20 * time.Second,
		UserAgent:    "Frontpage RSS Reader",
		DefaultLimit: 15,
		Retries:      1,
		RetryWait:    250 * time.Millisecond,
		Concurrency:  8,
		DomainLimit:  true,
		DomainDelay:  DelayBetweenDomainRequests,
	}
}

// OptionsFromConfig maps the fetch section of the config file onto
// fetcher options.
func OptionsFromConfig(c config.FetchConfig) Options {
	opts := DefaultOptions()
	opts.Timeout = c.Timeout.Duration
	opts.UserAgent = c.UserAgent
	opts.DefaultLimit = c.DefaultLimit
	opts.Retries = c.Retries
	opts.Concurrency = c.Concurrency
	return opts
}

// BatchOptionsFromConfig is OptionsFromConfig for story batch loads,
// which skip the per-host limiter.
func BatchOptionsFromConfig(c config.FetchConfig) Options {
	opts := OptionsFromConfig(c)
	opts.DomainLimit = false
	return opts
}

// statusError is a non-2xx feed response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("Feed responded with HTTP %d", e.code)
}

// Fetcher loads and normalizes feeds. Fetch never returns a Go error:
// every failure is reported as a FetchFailed result.
type Fetcher struct {
	client        *http.Client
	opts          Options
	domainLimiter *domainLimiter
}

// NewFetcher creates a fetcher.
func NewFetcher(opts Options) *Fetcher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.DefaultLimit < 1 {
		opts.DefaultLimit = DefaultOptions().DefaultLimit
	}
	f := &Fetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
	if opts.DomainLimit {
		f.domainLimiter = newDomainLimiter(opts.DomainDelay)
	}
	return f
}

// Concurrency returns the configured fan-out width.
func (f *Fetcher) Concurrency() int {
	return f.opts.Concurrency
}

// Fetch downloads and parses a single feed.
func (f *Fetcher) Fetch(ctx context.Context, feed model.FeedConfig) model.FetchResult {
	start := time.Now()
	result := f.fetch(ctx, feed)
	metrics.ObserveFetch(result.Kind == model.FetchNormalized, time.Since(start))

	if result.Kind == model.FetchFailed {
		log.WithFields(log.Fields{
			"feed_id": feed.ID,
			"url":     feed.URL,
			"error":   result.Error.Message,
		}).Warn("Feed fetch failed")
	}
	return result
}

func (f *Fetcher) fetch(ctx context.Context, feed model.FeedConfig) model.FetchResult {
	if f.domainLimiter != nil {
		domain := extractDomain(feed.URL)
		if err := f.domainLimiter.acquire(ctx, domain); err != nil {
			return model.Failed(feed, fmt.Sprintf("rate limit cancelled: %v", err))
		}
		defer f.domainLimiter.release(domain)
	}

	body, err := f.download(ctx, feed.URL)
	if err != nil {
		return model.Failed(feed, err.Error())
	}

	// gofeed parsers hold per-parse state, so each fetch gets its own.
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return model.Failed(feed, fmt.Sprintf("parse feed: %v", err))
	}
	return model.Normalized(normalize(feed, parsed, f.opts.DefaultLimit))
}

// download GETs feedURL, retrying network errors and 5xx/429 responses.
func (f *Fetcher) download(ctx context.Context, feedURL string) ([]byte, error) {
	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", acceptHeader)
		req.Header.Set("User-Agent", f.opts.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := &statusError{code: resp.StatusCode}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.opts.RetryWait
	b.MaxInterval = 10 * f.opts.RetryWait
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(f.opts.Retries, 0))), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) {
			return nil, statusErr
		}
		return nil, err
	}
	return body, nil
}

// FetchAll fetches feeds concurrently, bounded by the configured
// concurrency. results[i] belongs to feeds[i]. It returns once every
// feed has resolved.
func (f *Fetcher) FetchAll(ctx context.Context, feeds []model.FeedConfig) []model.FetchResult {
	return f.FetchAllLimit(ctx, feeds, f.opts.Concurrency)
}

// FetchAllLimit is FetchAll with at most limit fetches in flight.
func (f *Fetcher) FetchAllLimit(ctx context.Context, feeds []model.FeedConfig, limit int) []model.FetchResult {
	results := make([]model.FetchResult, len(feeds))
	if len(feeds) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(max(limit, 1))
	for i, feed := range feeds {
		g.Go(func() error {
			results[i] = f.Fetch(ctx, feed)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
