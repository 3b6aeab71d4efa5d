// Package server provides the HTTP server and handlers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/bryan-buckman/frontpage/internal/config"
	"github.com/bryan-buckman/frontpage/internal/database"
	"github.com/bryan-buckman/frontpage/internal/metrics"
	"github.com/bryan-buckman/frontpage/internal/model"
	"github.com/bryan-buckman/frontpage/internal/rss"
	"github.com/bryan-buckman/frontpage/internal/story"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server is the main HTTP server.
type Server struct {
	cfg         *config.Config
	store       database.Store
	fetcher     *rss.Fetcher
	poller      *rss.Poller
	ranker      *story.Ranker
	loader      *story.Loader
	accumulator *story.Accumulator
	now         func() time.Time
	router      chi.Router
	http        *http.Server
}

// New creates a new server.
func New(cfg *config.Config, store database.Store, ranker *story.Ranker) *Server {
	fetcher := rss.NewFetcher(rss.OptionsFromConfig(cfg.Fetch))
	s := &Server{
		cfg:         cfg,
		store:       store,
		fetcher:     fetcher,
		poller:      rss.NewPoller(fetcher, store, cfg.Fetch.PollInterval.Duration),
		ranker:      ranker,
		loader:      story.NewLoader(store, rss.NewFetcher(rss.BatchOptionsFromConfig(cfg.Fetch)), ranker),
		accumulator: story.NewAccumulator(ranker),
		now:         time.Now,
	}
	s.setupRoutes()
	return s
}

// WithClock overrides the ranking instant used by every handler.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	s.loader.WithClock(now)
	s.accumulator.WithClock(now)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/feed.xml", s.handleFeedXML)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/stories", s.handleStories)
		r.Post("/stories/merge", s.handleMerge)
		r.Post("/rerank", s.handleRerank)
		r.Get("/score", s.handleScore)

		r.Get("/sources", s.handleListSources)
		r.Post("/sources", s.handleCreateSource)
		r.Put("/sources/{id}/url", s.handleUpdateSourceURL)
		r.Delete("/sources/{id}", s.handleDeleteSource)

		r.Post("/import-opml", s.handleImportOPML)
		r.Get("/export-opml", s.handleExportOPML)
	})

	s.router = r
}

// Start binds addr, starts the poller and serves until Stop is called.
// The poller is not started when the address cannot be bound.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.poller.Start()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("Server starting on %s (store: %s)", ln.Addr(), s.store.DatabaseType())
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts down the listener and the poller.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.poller.Stop()
	return err
}

// --- Story Handlers ---

// batchRequest picks the page sizes for a cursor: the first page uses
// the initial sizes.
func (s *Server) batchRequest(cursor int) story.BatchRequest {
	st := s.cfg.Stories
	if cursor == 0 {
		return story.BatchRequest{Cursor: 0, FeedBatchSize: st.InitialFeedBatchSize, StoryLimit: st.InitialStoryLimit}
	}
	return story.BatchRequest{Cursor: cursor, FeedBatchSize: st.FeedBatchSize, StoryLimit: st.StoryLimit}
}

func (s *Server) handleStories(w http.ResponseWriter, r *http.Request) {
	cursor := 0
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, story.ErrInvalidCursor)
			return
		}
		cursor = n
	}

	batch, err := s.loader.LoadBatch(r.Context(), s.batchRequest(cursor))
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.ObserveBatch(len(batch.Stories), len(batch.Errors))
	writeJSON(w, http.StatusOK, batch)
}

type mergeRequest struct {
	State story.FeedState        `json:"state"`
	Batch model.StoryBatchResult `json:"batch"`
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest("Invalid request"))
		return
	}
	writeJSON(w, http.StatusOK, s.accumulator.Merge(req.State, req.Batch))
}

func (s *Server) handleRerank(w http.ResponseWriter, r *http.Request) {
	var stories []model.StoryCardData
	if err := json.NewDecoder(r.Body).Decode(&stories); err != nil {
		writeError(w, badRequest("Invalid request"))
		return
	}
	writeJSON(w, http.StatusOK, s.ranker.Rerank(stories, s.now()))
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	score := s.ranker.Scorer().StoryScore(q.Get("title"), q.Get("summary"), q.Get("feed_title"))
	writeJSON(w, http.StatusOK, map[string]int{"score": score})
}
