package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bryan-buckman/frontpage/internal/config"
	"github.com/bryan-buckman/frontpage/internal/database"
	"github.com/bryan-buckman/frontpage/internal/model"
	"github.com/bryan-buckman/frontpage/internal/priority"
	"github.com/bryan-buckman/frontpage/internal/rss"
	"github.com/bryan-buckman/frontpage/internal/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

const wireFixture = `<?xml version="1.0"?>
<rss version="2.0">
<channel>
  <title>Industry Wire</title>
  <item>
    <guid>a</guid>
    <title>Funding news</title>
    <link>https://wire.example.com/a</link>
    <pubDate>Mon, 10 Mar 2025 10:00:00 +0000</pubDate>
  </item>
  <item>
    <guid>b</guid>
    <title>Other news</title>
    <link>https://wire.example.com/b</link>
    <pubDate>Mon, 10 Mar 2025 12:00:00 +0000</pubDate>
  </item>
  <item>
    <guid>c</guid>
    <title>Old funding story</title>
    <link>https://wire.example.com/c</link>
    <pubDate>Sun, 09 Mar 2025 09:00:00 +0000</pubDate>
  </item>
</channel>
</rss>`

type fixture struct {
	srv      *Server
	store    database.Store
	upstream *httptest.Server
	hits     *atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hits := new(atomic.Int32)
	mux := http.NewServeMux()
	mux.HandleFunc("/wire", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(wireFixture)) })
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.Server.SiteURL = "https://frontpage.example.com"
	cfg.Fetch.Timeout = config.Duration{Duration: 2 * time.Second}
	cfg.Fetch.Retries = 0
	cfg.Stories = config.StoriesConfig{
		InitialFeedBatchSize: 1,
		InitialStoryLimit:    40,
		FeedBatchSize:        1,
		StoryLimit:           30,
	}

	store := database.NewFileStore(filepath.Join(t.TempDir(), "feeds.json"))
	require.NoError(t, store.CreateFeed(model.FeedConfig{ID: "wire", Title: "Wire", URL: upstream.URL + "/wire"}))
	require.NoError(t, store.CreateFeed(model.FeedConfig{ID: "broken", Title: "Broken", URL: upstream.URL + "/broken"}))

	ranker := story.NewRanker(priority.NewScorer([]string{"funding"}, nil, priority.DefaultSupportingBonus))
	srv := New(cfg, store, ranker).WithClock(func() time.Time { return now })
	return &fixture{srv: srv, store: store, upstream: upstream, hits: hits}
}

func (f *fixture) do(t *testing.T, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func storyIDs(stories []model.StoryCardData) []string {
	out := make([]string, len(stories))
	for i, s := range stories {
		out[i] = s.ID
	}
	return out
}

func TestStoriesPaging(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/stories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[model.StoryBatchResult](t, rec)
	assert.Equal(t, []string{"a", "b"}, storyIDs(first.Stories), "latest day only, keyword match first")
	assert.Equal(t, 1, first.NextCursor)
	assert.True(t, first.HasMoreFeeds)
	assert.Empty(t, first.Errors)
	assert.Equal(t, "Industry Wire", first.Stories[0].FeedTitle)

	rec = f.do(t, http.MethodGet, "/api/stories?cursor=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[model.StoryBatchResult](t, rec)
	assert.Empty(t, second.Stories)
	assert.Equal(t, 2, second.NextCursor)
	assert.False(t, second.HasMoreFeeds)
	require.Len(t, second.Errors, 1)
	assert.Equal(t, "broken", second.Errors[0].Config.ID)
	assert.Equal(t, "Feed responded with HTTP 404", second.Errors[0].Message)

	rec = f.do(t, http.MethodGet, "/api/stories?cursor=9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	past := decode[model.StoryBatchResult](t, rec)
	assert.Equal(t, 9, past.NextCursor)
	assert.False(t, past.HasMoreFeeds)
}

func TestStoriesBadCursor(t *testing.T) {
	f := newFixture(t)
	for _, cursor := range []string{"abc", "-1"} {
		rec := f.do(t, http.MethodGet, "/api/stories?cursor="+cursor, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, cursor)
	}
}

func TestMergeAndRerank(t *testing.T) {
	f := newFixture(t)

	first := decode[model.StoryBatchResult](t, f.do(t, http.MethodGet, "/api/stories", nil))
	second := decode[model.StoryBatchResult](t, f.do(t, http.MethodGet, "/api/stories?cursor=1", nil))

	rec := f.do(t, http.MethodPost, "/api/stories/merge", jsonBody(t, mergeRequest{Batch: first}))
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[story.FeedState](t, rec)

	rec = f.do(t, http.MethodPost, "/api/stories/merge", jsonBody(t, mergeRequest{State: state, Batch: second}))
	require.Equal(t, http.StatusOK, rec.Code)
	state = decode[story.FeedState](t, rec)
	assert.Equal(t, []string{"a", "b"}, storyIDs(state.Stories))
	assert.Equal(t, 2, state.Cursor)
	assert.False(t, state.HasMore)
	require.Len(t, state.Errors, 1)

	reversed := []model.StoryCardData{state.Stories[1], state.Stories[0]}
	rec = f.do(t, http.MethodPost, "/api/rerank", jsonBody(t, reversed))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "b"}, storyIDs(decode[[]model.StoryCardData](t, rec)))

	rec = f.do(t, http.MethodPost, "/api/rerank", strings.NewReader("{"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScore(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/score?title=Funding+round&summary=funding&feed_title=Wire", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]int](t, rec)
	assert.Equal(t, priority.TitleWeight+priority.SummaryWeight, got["score"])
}

func TestSourceCRUD(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/sources", jsonBody(t, map[string]string{"url": " https://new.example.com/rss "}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.FeedConfig](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "https://new.example.com/rss", created.URL)
	assert.Equal(t, created.URL, created.Title)

	rec = f.do(t, http.MethodPost, "/api/sources", jsonBody(t, map[string]string{"id": "wire", "url": "https://dup.example.com"}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/sources", jsonBody(t, map[string]string{"url": "not a url"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/sources/"+created.ID+"/url", jsonBody(t, map[string]string{"url": "https://moved.example.com/rss"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://moved.example.com/rss", decode[model.FeedConfig](t, rec).URL)

	rec = f.do(t, http.MethodPut, "/api/sources/missing/url", jsonBody(t, map[string]string{"url": "https://x.example.com"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodPut, "/api/sources/wire/url", jsonBody(t, map[string]string{"url": ""}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPut, "/api/sources/wire/url", jsonBody(t, map[string]string{"url": "mailto:me@example.com"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/sources/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/sources/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSources(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cached := decode[sourcesResponse](t, rec)
	assert.Equal(t, 0, cached.Total, "nothing recorded before the first check")
	assert.NotNil(t, cached.Sources)
	assert.Equal(t, int32(0), f.hits.Load())

	rec = f.do(t, http.MethodGet, "/api/sources?refresh=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[sourcesResponse](t, rec)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.Healthy)
	require.Len(t, got.Sources, 2)
	assert.Equal(t, 3, got.Sources[0].ItemCount)
	assert.Equal(t, "Feed responded with HTTP 404", got.Sources[1].Message)

	statuses, err := f.store.ListStatuses()
	require.NoError(t, err)
	assert.Len(t, statuses, 2)
}

func TestListSourcesServesPolledStatuses(t *testing.T) {
	f := newFixture(t)

	poller := rss.NewPoller(rss.NewFetcher(rss.OptionsFromConfig(f.srv.cfg.Fetch)), f.store, time.Hour)
	poller.Start()
	poller.Stop()
	polled := f.hits.Load()
	require.Equal(t, int32(2), polled)

	rec := f.do(t, http.MethodGet, "/api/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[sourcesResponse](t, rec)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.Healthy)
	require.Len(t, got.Sources, 2)
	assert.Equal(t, "wire", got.Sources[0].Feed.ID)
	assert.True(t, got.Sources[0].OK)
	assert.Equal(t, 3, got.Sources[0].ItemCount)
	assert.Equal(t, "Feed responded with HTTP 404", got.Sources[1].Message)
	assert.Equal(t, polled, f.hits.Load(), "cached listing does not refetch")
}

func TestStartBindFailureLeavesPollerStopped(t *testing.T) {
	f := newFixture(t)

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { busy.Close() })

	err = f.srv.Start(busy.Addr().String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on")

	assert.Never(t, func() bool { return f.hits.Load() > 0 }, 200*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, f.srv.Stop(context.Background()))
}

func TestOPMLExportImport(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/export-opml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `xmlUrl="`+f.upstream.URL+`/wire"`)

	doc := `<?xml version="1.0"?><opml version="2.0"><body>
		<outline text="Wire" xmlUrl="` + f.upstream.URL + `/wire"/>
		<outline text="Fresh" xmlUrl="https://fresh.example.com/rss"/>
	</body></opml>`

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("opml", "subs.opml")
	require.NoError(t, err)
	part.Write([]byte(doc))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import-opml", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, got["imported"])
	assert.EqualValues(t, 2, got["total"])

	feeds, err := f.store.ListFeeds()
	require.NoError(t, err)
	assert.Len(t, feeds, 3)

	rec = f.do(t, http.MethodPost, "/api/import-opml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedXML(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/feed.xml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/rss+xml")
	body := rec.Body.String()
	assert.Contains(t, body, "<rss")
	assert.Contains(t, body, "<title>Frontpage</title>")
	assert.Contains(t, body, "Funding news")
	assert.Less(t, strings.Index(body, "Funding news"), strings.Index(body, "Other news"))
	assert.NotContains(t, body, "Old funding story")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/stories", nil)

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "frontpage_story_batches_total")
	assert.Contains(t, rec.Body.String(), "frontpage_feed_fetches_total")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{database.ErrNotFound, http.StatusNotFound},
		{database.ErrDuplicateFeed, http.StatusConflict},
		{database.ErrInvalidURL, http.StatusBadRequest},
		{story.ErrInvalidCursor, http.StatusBadRequest},
		{badRequest("nope"), http.StatusBadRequest},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
