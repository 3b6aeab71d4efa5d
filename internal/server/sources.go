package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bryan-buckman/frontpage/internal/database"
	"github.com/bryan-buckman/frontpage/internal/model"
	"github.com/bryan-buckman/frontpage/internal/opml"
	"github.com/bryan-buckman/frontpage/internal/rss"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

type sourcesResponse struct {
	Sources []model.SourceStatus `json:"sources"`
	Healthy int                  `json:"healthy"`
	Total   int                  `json:"total"`
}

// handleListSources serves the statuses recorded by the poller. With
// ?refresh=1 every source is checked live first.
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	var (
		statuses []model.SourceStatus
		err      error
	)
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
		defer cancel()
		statuses, err = rss.CheckSources(ctx, s.fetcher, s.store)
	} else {
		statuses, err = s.store.ListStatuses()
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if statuses == nil {
		statuses = []model.SourceStatus{}
	}
	writeJSON(w, http.StatusOK, sourcesResponse{
		Sources: statuses,
		Healthy: lo.CountBy(statuses, func(st model.SourceStatus) bool { return st.OK }),
		Total:   len(statuses),
	})
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var feed model.FeedConfig
	if err := json.NewDecoder(r.Body).Decode(&feed); err != nil {
		writeError(w, badRequest("Invalid request"))
		return
	}
	normalized, err := database.NormalizeFeedURL(feed.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	feed.URL = normalized
	feed.ID = strings.TrimSpace(feed.ID)
	if feed.ID == "" {
		feed.ID = uuid.NewString()
	}
	if strings.TrimSpace(feed.Title) == "" {
		feed.Title = feed.URL
	}

	if err := s.store.CreateFeed(feed); err != nil {
		writeError(w, err)
		return
	}
	log.WithFields(log.Fields{"feed_id": feed.ID, "url": feed.URL}).Info("Source added")
	writeJSON(w, http.StatusCreated, feed)
}

func (s *Server) handleUpdateSourceURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest("Invalid request"))
		return
	}
	feed, err := database.ChangeFeedURL(s.store, chi.URLParam(r, "id"), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	log.WithFields(log.Fields{"feed_id": feed.ID, "url": feed.URL}).Info("Source url updated")
	writeJSON(w, http.StatusOK, feed)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteFeed(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportOPML(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("opml")
	if err != nil {
		writeError(w, badRequest("No file provided"))
		return
	}
	defer file.Close()

	imported, total, err := opml.Import(s.store, file)
	if err != nil {
		writeError(w, badRequest(fmt.Sprintf("Failed to parse OPML: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"imported": imported,
		"total":    total,
	})
}

func (s *Server) handleExportOPML(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.store.ListFeeds()
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := opml.Export(s.cfg.Server.SiteTitle+" Feeds", feeds)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", "attachment; filename=frontpage-feeds.opml")
	w.Write(data)
}
