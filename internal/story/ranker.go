// Package story ranks feed items and pages through the feed list.
package story

import (
	"cmp"
	"slices"
	"time"

	"github.com/bryan-buckman/frontpage/internal/model"
	"github.com/bryan-buckman/frontpage/internal/priority"
	"github.com/samber/lo"
)

// DefaultLimit caps Rank output when Options.Limit is unset.
const DefaultLimit = 100

// Options controls a Rank call.
type Options struct {
	Limit int
	Now   time.Time
}

// Ranker orders stories by keyword priority and recency.
type Ranker struct {
	scorer *priority.Scorer
}

// NewRanker creates a ranker backed by scorer.
func NewRanker(scorer *priority.Scorer) *Ranker {
	return &Ranker{scorer: scorer}
}

// Scorer returns the keyword scorer used by the ranker.
func (r *Ranker) Scorer() *priority.Scorer {
	return r.scorer
}

// decorated carries the sort keys of one story for a single ranking call.
type decorated struct {
	story     model.StoryCardData
	timestamp int64 // unix millis; 0 when undated
	dated     bool
	score     int
	order     int
	dayKey    string
}

// Rank flattens feeds into stories, keeps only the latest publication day
// and returns them best first, at most opts.Limit long. When no story is
// dated the undated ones are ranked instead.
func (r *Ranker) Rank(feeds []model.NormalizedFeed, opts Options) []model.StoryCardData {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	all := r.decorateFeeds(feeds, now)
	dated := lo.Filter(all, func(d decorated, _ int) bool { return d.dated })
	undated := lo.Filter(all, func(d decorated, _ int) bool { return !d.dated })

	candidates := latestDay(dated)
	if len(candidates) == 0 {
		candidates = dated
	}
	if len(candidates) == 0 {
		candidates = undated
	}

	ranked := order(candidates)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Rerank orders an already flattened collection the same way Rank does,
// without the latest-day window.
func (r *Ranker) Rerank(stories []model.StoryCardData, now time.Time) []model.StoryCardData {
	if now.IsZero() {
		now = time.Now()
	}
	all := make([]decorated, 0, len(stories))
	for i, s := range stories {
		all = append(all, r.decorate(s, i, now))
	}
	return order(all)
}

func (r *Ranker) decorateFeeds(feeds []model.NormalizedFeed, now time.Time) []decorated {
	var out []decorated
	next := 0
	for _, feed := range feeds {
		for _, item := range feed.Items {
			s := model.StoryCardData{
				FeedItem:  item,
				FeedID:    feed.Config.ID,
				FeedTitle: feed.Title,
				FeedURL:   feed.Config.URL,
			}
			out = append(out, r.decorate(s, next, now))
			next++
		}
	}
	return out
}

// decorate scores s and parses its timestamp. Unparseable and future
// timestamps leave the story undated.
func (r *Ranker) decorate(s model.StoryCardData, idx int, now time.Time) decorated {
	d := decorated{
		story: s,
		score: r.scorer.StoryScore(s.Title, s.Summary, s.FeedTitle),
		order: idx,
	}
	if t, ok := ParseTimestamp(s.PublishedAt); ok && !t.After(now) {
		d.timestamp = t.UnixMilli()
		d.dated = true
		d.dayKey = DayKey(t)
	}
	return d
}

// latestDay keeps the stories that share the day of the newest one.
func latestDay(dated []decorated) []decorated {
	if len(dated) == 0 {
		return nil
	}
	newest := lo.MaxBy(dated, func(a, b decorated) bool { return a.timestamp > b.timestamp })
	return lo.Filter(dated, func(d decorated, _ int) bool { return d.dayKey == newest.dayKey })
}

// order sorts by score desc, timestamp desc, insertion asc, then moves
// keyword matches ahead of the rest without disturbing either group.
func order(items []decorated) []model.StoryCardData {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, compare)

	matched := lo.Filter(sorted, func(d decorated, _ int) bool { return d.score > 0 })
	rest := lo.Filter(sorted, func(d decorated, _ int) bool { return d.score <= 0 })

	return lo.Map(append(matched, rest...), func(d decorated, _ int) model.StoryCardData {
		return d.story
	})
}

func compare(a, b decorated) int {
	if c := cmp.Compare(b.score, a.score); c != 0 {
		return c
	}
	if c := cmp.Compare(b.timestamp, a.timestamp); c != 0 {
		return c
	}
	return cmp.Compare(a.order, b.order)
}
