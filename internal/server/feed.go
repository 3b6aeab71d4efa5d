package server

import (
	"net/http"
	"time"

	"github.com/bryan-buckman/frontpage/internal/model"
	"github.com/bryan-buckman/frontpage/internal/story"
	"github.com/gorilla/feeds"
)

// handleFeedXML republishes the first page of ranked stories as RSS.
func (s *Server) handleFeedXML(w http.ResponseWriter, r *http.Request) {
	batch, err := s.loader.LoadBatch(r.Context(), s.batchRequest(0))
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := buildFeed(s.cfg.Server.SiteTitle, s.cfg.Server.SiteURL, batch.Stories, s.now()).ToRss()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write([]byte(out))
}

func buildFeed(title, link string, stories []model.StoryCardData, now time.Time) *feeds.Feed {
	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: link},
		Description: "Top stories from " + title,
		Created:     now,
	}
	for _, st := range stories {
		item := &feeds.Item{
			Id:          st.FeedID + ":" + st.ID,
			Title:       st.Title,
			Link:        &feeds.Link{Href: st.Link},
			Description: st.Summary,
			Source:      &feeds.Link{Href: st.FeedURL},
		}
		if st.Author != "" {
			item.Author = &feeds.Author{Name: st.Author}
		}
		if t, ok := story.ParseTimestamp(st.PublishedAt); ok {
			item.Created = t
		}
		feed.Items = append(feed.Items, item)
	}
	return feed
}
