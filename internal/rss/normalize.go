package rss

import (
	"fmt"
	"strings"
	"time"

	"github.com/bryan-buckman/frontpage/internal/model"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

const (
	untitledStory = "Untitled story"
	missingLink   = "#"
)

// normalize converts a parsed feed into the reader's item shape, capped
// to the feed's limit (or defaultLimit when the feed has none).
func normalize(cfg model.FeedConfig, parsed *gofeed.Feed, defaultLimit int) model.NormalizedFeed {
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	items := make([]model.FeedItem, 0, min(len(parsed.Items), limit))
	for i, it := range parsed.Items {
		if len(items) >= limit {
			break
		}
		if it == nil {
			continue
		}
		items = append(items, model.FeedItem{
			ID:          itemID(cfg.ID, it, i),
			Title:       firstNonEmpty(strings.TrimSpace(it.Title), untitledStory),
			Link:        firstNonEmpty(it.Link, missingLink),
			PublishedAt: publishedAt(it),
			Author:      author(it),
			Summary:     firstNonEmpty(plainText(it.Description), plainText(it.Content)),
		})
	}

	return model.NormalizedFeed{
		Config:      cfg,
		Title:       firstNonEmpty(strings.TrimSpace(parsed.Title), cfg.Title),
		Description: firstNonEmpty(plainText(parsed.Description), cfg.Description),
		LastUpdated: firstNonEmpty(parsed.Updated, parsed.Published),
		Items:       items,
	}
}

// itemID prefers the guid, then the link, then a title- or
// position-derived id scoped to the feed.
func itemID(feedID string, it *gofeed.Item, index int) string {
	if it.GUID != "" {
		return it.GUID
	}
	if it.Link != "" {
		return it.Link
	}
	if it.Title != "" {
		return feedID + "-" + it.Title
	}
	return fmt.Sprintf("%s-%d", feedID, index)
}

func publishedAt(it *gofeed.Item) string {
	switch {
	case it.PublishedParsed != nil:
		return it.PublishedParsed.UTC().Format(time.RFC3339)
	case it.UpdatedParsed != nil:
		return it.UpdatedParsed.UTC().Format(time.RFC3339)
	default:
		return firstNonEmpty(strings.TrimSpace(it.Published), strings.TrimSpace(it.Updated))
	}
}

func author(it *gofeed.Item) string {
	if it.Author != nil && it.Author.Name != "" {
		return it.Author.Name
	}
	for _, a := range it.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}

// plainText strips markup from s and collapses whitespace.
func plainText(s string) string {
	if s == "" {
		return ""
	}
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); isHidden(string(name)) {
				skip++
			}
			sb.WriteByte(' ')
		case html.EndTagToken:
			if name, _ := z.TagName(); isHidden(string(name)) && skip > 0 {
				skip--
			}
			sb.WriteByte(' ')
		case html.SelfClosingTagToken:
			sb.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

func isHidden(tag string) bool {
	return tag == "script" || tag == "style"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
