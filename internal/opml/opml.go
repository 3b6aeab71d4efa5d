// Package opml handles importing and exporting OPML subscription lists.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bryan-buckman/frontpage/internal/model"
	"github.com/google/uuid"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a single outline element (folder or feed).
type Outline struct {
	Text        string    `xml:"text,attr"`
	Title       string    `xml:"title,attr,omitempty"`
	Type        string    `xml:"type,attr,omitempty"`
	XMLURL      string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL     string    `xml:"htmlUrl,attr,omitempty"`
	Description string    `xml:"description,attr,omitempty"`
	Outlines    []Outline `xml:"outline,omitempty"`
}

// Entry is a feed found in an OPML document.
type Entry struct {
	Title       string
	URL         string
	Description string
}

// FeedStore is the subset of the store needed for import.
type FeedStore interface {
	ListFeeds() ([]model.FeedConfig, error)
	CreateFeed(feed model.FeedConfig) error
}

// Parse reads an OPML document and returns a flat list of feeds.
// Folder outlines are walked but not kept.
func Parse(r io.Reader) ([]Entry, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode opml: %w", err)
	}
	var entries []Entry
	var walk func(outlines []Outline)
	walk = func(outlines []Outline) {
		for _, o := range outlines {
			if url := strings.TrimSpace(o.XMLURL); url != "" {
				title := o.Title
				if title == "" {
					title = o.Text
				}
				if title == "" {
					title = url
				}
				entries = append(entries, Entry{Title: title, URL: url, Description: o.Description})
			}
			walk(o.Outlines)
		}
	}
	walk(doc.Body.Outlines)
	return entries, nil
}

// Export generates a flat OPML document listing feeds in order.
func Export(title string, feeds []model.FeedConfig) ([]byte, error) {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: time.Now().Format(time.RFC1123Z),
		},
	}
	doc.Body.Outlines = lo.Map(feeds, func(f model.FeedConfig, _ int) Outline {
		return Outline{
			Text:        f.Title,
			Title:       f.Title,
			Type:        "rss",
			XMLURL:      f.URL,
			Description: f.Description,
		}
	})

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}

// Import adds every feed in the document whose url is not already
// subscribed. New feeds get a random id.
func Import(store FeedStore, r io.Reader) (imported, total int, err error) {
	entries, err := Parse(r)
	if err != nil {
		return 0, 0, err
	}
	existing, err := store.ListFeeds()
	if err != nil {
		return 0, 0, fmt.Errorf("list feeds: %w", err)
	}
	seen := lo.Associate(existing, func(f model.FeedConfig) (string, struct{}) {
		return f.URL, struct{}{}
	})

	for _, e := range entries {
		if _, ok := seen[e.URL]; ok {
			continue
		}
		feed := model.FeedConfig{
			ID:          uuid.NewString(),
			Title:       e.Title,
			URL:         e.URL,
			Description: e.Description,
		}
		if err := store.CreateFeed(feed); err != nil {
			log.WithField("url", e.URL).WithError(err).Warn("Error importing feed")
			continue
		}
		seen[e.URL] = struct{}{}
		imported++
	}
	return imported, len(entries), nil
}
