package cmd

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bryan-buckman/frontpage/internal/config"
	"github.com/bryan-buckman/frontpage/internal/database"
	"github.com/bryan-buckman/frontpage/internal/model"
	"github.com/bryan-buckman/frontpage/internal/priority"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func feedXML(title string, items ...string) string {
	return fmt.Sprintf(`<?xml version="1.0"?><rss version="2.0"><channel><title>%s</title>%s</channel></rss>`,
		title, strings.Join(items, ""))
}

func itemXML(guid, title string, published time.Time) string {
	return fmt.Sprintf(`<item><guid>%s</guid><title>%s</title><link>https://example.com/%s</link><pubDate>%s</pubDate></item>`,
		guid, title, guid, published.Format(time.RFC1123Z))
}

type harness struct {
	hits       atomic.Int32
	configPath string
	storePath  string
}

// newHarness writes a config pointing at a file store with two upstream
// feeds and one broken one.
func newHarness(t *testing.T) *harness {
	t.Helper()
	return newDriverHarness(t, "file", "feeds.json")
}

func newDriverHarness(t *testing.T, driver, storeFile string) *harness {
	t.Helper()
	published := time.Now().UTC().Add(-time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/trade", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML("Trade Desk",
			itemXML("t1", "Weather update", published),
			itemXML("t2", "Games industry report lands", published))))
	})
	mux.HandleFunc("/local", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML("Local", itemXML("l1", "Town fair", published))))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	dir := t.TempDir()
	h := &harness{
		configPath: filepath.Join(dir, "frontpage.yaml"),
		storePath:  filepath.Join(dir, storeFile),
	}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.hits.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(upstream.Close)

	store, err := database.Open(config.DatabaseConfig{Driver: driver, Path: h.storePath})
	require.NoError(t, err)
	require.NoError(t, store.CreateFeed(model.FeedConfig{ID: "trade", Title: "Trade", URL: upstream.URL + "/trade"}))
	require.NoError(t, store.CreateFeed(model.FeedConfig{ID: "broken", Title: "Broken", URL: upstream.URL + "/broken"}))
	require.NoError(t, store.CreateFeed(model.FeedConfig{ID: "local", Title: "Local", URL: upstream.URL + "/local"}))
	require.NoError(t, store.Close())

	cfg := fmt.Sprintf(`
database:
  driver: %s
  path: %s
fetch:
  timeout: 2s
  retries: 0
stories:
  initial_feed_batch_size: 1
  feed_batch_size: 1
logging:
  level: error
`, driver, h.storePath)
	require.NoError(t, os.WriteFile(h.configPath, []byte(cfg), 0o644))
	return h
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := RootApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"frontpage", "--config", h.configPath}, args...))
	return out.String(), err
}

func TestRankFirstPage(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "rank")
	require.NoError(t, err)

	assert.Contains(t, out, "Games industry report lands")
	assert.Less(t, strings.Index(out, "Games industry report lands"), strings.Index(out, "Weather update"))
	assert.NotContains(t, out, "Town fair")
	assert.Contains(t, out, "rerun with --all")
}

func TestRankAll(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "rank", "--all")
	require.NoError(t, err)

	assert.Contains(t, out, "Town fair")
	assert.Contains(t, out, "1 feed(s) failed")
	assert.Contains(t, out, "broken: Feed responded with HTTP 410")
	assert.NotContains(t, out, "rerun with --all")
}

func TestSourcesCommand(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "2 of 3 sources healthy")
	assert.Contains(t, out, "2 items")
}

func TestSourcesCommandCached(t *testing.T) {
	h := newDriverHarness(t, "sqlite", "feeds.db")

	out, err := h.run(t, "sources", "--cached")
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 0 sources healthy")
	assert.Equal(t, int32(0), h.hits.Load())

	_, err = h.run(t, "sources")
	require.NoError(t, err)
	checked := h.hits.Load()
	require.Equal(t, int32(3), checked)

	out, err = h.run(t, "sources", "--cached")
	require.NoError(t, err)
	assert.Contains(t, out, "2 of 3 sources healthy")
	assert.Contains(t, out, "Feed responded with HTTP 410")
	assert.Equal(t, checked, h.hits.Load(), "cached listing does not refetch")
}

func TestUpdateURLCommand(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "update-url", "local", " https://local.example.com/rss ")
	require.NoError(t, err)
	assert.Contains(t, out, "local now reads from https://local.example.com/rss")

	feed, err := database.NewFileStore(h.storePath).GetFeed("local")
	require.NoError(t, err)
	assert.Equal(t, "https://local.example.com/rss", feed.URL)

	_, err = h.run(t, "update-url", "local", "nope")
	assert.ErrorIs(t, err, database.ErrInvalidURL)
	_, err = h.run(t, "update-url", "local")
	assert.Error(t, err)
}

func TestOPMLCommands(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "export-opml")
	require.NoError(t, err)
	assert.Contains(t, out, `<opml version="2.0">`)
	assert.Contains(t, out, `text="Trade"`)

	file := filepath.Join(t.TempDir(), "subs.opml")
	require.NoError(t, os.WriteFile(file, []byte(`<opml version="2.0"><body>
		<outline text="New" xmlUrl="https://new.example.com/rss"/>
	</body></opml>`), 0o644))

	out, err = h.run(t, "import-opml", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 of 1 feeds")

	feeds, err := database.NewFileStore(h.storePath).ListFeeds()
	require.NoError(t, err)
	assert.Len(t, feeds, 4)
}

func TestNewScorer(t *testing.T) {
	def := newScorer(config.KeywordsConfig{})
	assert.Equal(t, len(priority.PrimaryKeywords), def.PrimaryCount())

	zero := 0
	custom := newScorer(config.KeywordsConfig{
		Primary:         []string{"alpha", "beta"},
		Supporting:      []string{"gamma"},
		SupportingBonus: &zero,
	})
	assert.Equal(t, 2, custom.PrimaryCount())
	assert.Equal(t, 2, custom.Score("alpha"))
	assert.Equal(t, 0, custom.Score("gamma"))
}
