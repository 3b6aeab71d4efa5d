// Package metrics exposes Prometheus collectors for feed fetching and
// story batch loading.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frontpage_feed_fetches_total",
		Help: "Feed fetch attempts by result",
	}, []string{"result"})

	feedFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "frontpage_feed_fetch_duration_seconds",
		Help:    "Time to fetch and parse a single feed",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms up to ~25s
	})

	batchLoads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frontpage_story_batches_total",
		Help: "Story batches served",
	})

	batchStories = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "frontpage_story_batch_size",
		Help:    "Stories returned per batch",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	batchFeedErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frontpage_story_batch_feed_errors_total",
		Help: "Feeds that failed inside served batches",
	})
)

// ObserveFetch records one feed fetch.
func ObserveFetch(ok bool, took time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	feedFetches.WithLabelValues(result).Inc()
	feedFetchDuration.Observe(took.Seconds())
}

// ObserveBatch records one served story batch.
func ObserveBatch(stories, feedErrors int) {
	batchLoads.Inc()
	batchStories.Observe(float64(stories))
	batchFeedErrors.Add(float64(feedErrors))
}
