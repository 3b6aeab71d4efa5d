// Package model defines shared data structures.
package model

import "time"

// DefaultFeedLimit is the item cap applied to a stored feed that has none.
const DefaultFeedLimit = 12

// FeedConfig is a configured feed source. Its at-rest shape is the JSON
// record {id, title, url, description?, limit?}.
type FeedConfig struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Limit       int    `json:"limit,omitempty"` // 0 means unset
}

// FeedItem represents a single entry from a feed.
type FeedItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	PublishedAt string `json:"publishedAt,omitempty"`
	Author      string `json:"author,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

// NormalizedFeed is the result of a successful fetch-and-parse.
type NormalizedFeed struct {
	Config      FeedConfig `json:"config"`
	Title       string     `json:"feedTitle"`
	Description string     `json:"feedDescription,omitempty"`
	LastUpdated string     `json:"lastUpdated,omitempty"`
	Items       []FeedItem `json:"items"`
}

// FetchError describes why a feed could not be loaded.
type FetchError struct {
	Config  FeedConfig `json:"config"`
	Message string     `json:"error"`
}

func (e FetchError) Error() string {
	return e.Config.ID + ": " + e.Message
}

// FetchKind tags a FetchResult.
type FetchKind int

const (
	FetchNormalized FetchKind = iota
	FetchFailed
)

// FetchResult is exactly one of a NormalizedFeed or a FetchError,
// selected by Kind.
type FetchResult struct {
	Kind  FetchKind
	Feed  NormalizedFeed
	Error FetchError
}

// Normalized wraps a successfully parsed feed.
func Normalized(feed NormalizedFeed) FetchResult {
	return FetchResult{Kind: FetchNormalized, Feed: feed}
}

// Failed wraps a fetch failure for cfg.
func Failed(cfg FeedConfig, message string) FetchResult {
	return FetchResult{Kind: FetchFailed, Error: FetchError{Config: cfg, Message: message}}
}

// Config returns the feed configuration of either variant.
func (r FetchResult) Config() FeedConfig {
	if r.Kind == FetchFailed {
		return r.Error.Config
	}
	return r.Feed.Config
}

// StoryCardData is a FeedItem decorated with its owning feed's identity.
type StoryCardData struct {
	FeedItem
	FeedID    string `json:"feedId"`
	FeedTitle string `json:"feedTitle"`
	FeedURL   string `json:"feedUrl"`
}

// StoryKey identifies a story across repeated fetches.
type StoryKey struct {
	FeedID string
	ItemID string
}

// Key returns the merge key of the story.
func (s StoryCardData) Key() StoryKey {
	return StoryKey{FeedID: s.FeedID, ItemID: s.ID}
}

// StoryBatchResult is one page of ranked stories plus loader progress.
type StoryBatchResult struct {
	Stories      []StoryCardData `json:"stories"`
	NextCursor   int             `json:"nextCursor"`
	HasMoreFeeds bool            `json:"hasMoreFeeds"`
	Errors       []FetchError    `json:"errors"`
	// LoadedFeeds lists the ids of feeds in the slice that fetched cleanly.
	LoadedFeeds []string `json:"loadedFeeds,omitempty"`
}

// SourceStatus is the health of one configured feed at CheckedAt.
type SourceStatus struct {
	Feed        FeedConfig `json:"feed"`
	OK          bool       `json:"ok"`
	ItemCount   int        `json:"itemCount"`
	LastUpdated string     `json:"lastUpdated,omitempty"`
	Message     string     `json:"message,omitempty"`
	CheckedAt   time.Time  `json:"checkedAt"`
}

// StatusFromResult converts a fetch result into a SourceStatus.
func StatusFromResult(r FetchResult, checkedAt time.Time) SourceStatus {
	if r.Kind == FetchFailed {
		return SourceStatus{
			Feed:      r.Error.Config,
			Message:   r.Error.Message,
			CheckedAt: checkedAt,
		}
	}
	return SourceStatus{
		Feed:        r.Feed.Config,
		OK:          true,
		ItemCount:   len(r.Feed.Items),
		LastUpdated: r.Feed.LastUpdated,
		CheckedAt:   checkedAt,
	}
}
