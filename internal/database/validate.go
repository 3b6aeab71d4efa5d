package database

import (
	"errors"
	"net/url"
	"strings"

	"github.com/bryan-buckman/frontpage/internal/model"
)

// URL update errors.
var (
	ErrMissingFeedID = errors.New("feed id is required")
	ErrMissingURL    = errors.New("feed url is required")
	ErrInvalidURL    = errors.New("feed url must be an absolute http or https url")
)

// NormalizeFeedURL trims raw and checks it is an absolute http(s) url.
func NormalizeFeedURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidURL
	}
	return u.String(), nil
}

// ChangeFeedURL validates the new url and stores it on feed id.
func ChangeFeedURL(store Store, id, rawURL string) (*model.FeedConfig, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrMissingFeedID
	}
	normalized, err := NormalizeFeedURL(rawURL)
	if err != nil {
		return nil, err
	}
	return store.UpdateFeedURL(id, normalized)
}
