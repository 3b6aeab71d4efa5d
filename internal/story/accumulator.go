package story

import (
	"time"

	"github.com/bryan-buckman/frontpage/internal/model"
	"github.com/samber/lo"
)

// FeedState is the running view a reader builds from successive batches.
type FeedState struct {
	Stories []model.StoryCardData `json:"stories"`
	Cursor  int                   `json:"cursor"`
	HasMore bool                  `json:"hasMore"`
	Errors  []model.FetchError    `json:"errors"`
}

// Accumulator folds batch results into a FeedState.
type Accumulator struct {
	ranker *Ranker
	now    func() time.Time
}

// NewAccumulator creates an accumulator that reranks with ranker.
func NewAccumulator(ranker *Ranker) *Accumulator {
	return &Accumulator{ranker: ranker, now: time.Now}
}

// WithClock overrides the ranking instant source.
func (a *Accumulator) WithClock(now func() time.Time) *Accumulator {
	a.now = now
	return a
}

// Start builds the initial state from the first batch.
func (a *Accumulator) Start(batch model.StoryBatchResult) FeedState {
	return a.Merge(FeedState{}, batch)
}

// Merge returns state with batch folded in. Stories and errors are keyed
// by (feed id, item id) and feed id respectively, with batch entries
// replacing existing ones. A feed that loaded cleanly drops its stale
// error. Cursor and HasMore are taken from batch. Merging the same batch
// again leaves the state unchanged.
func (a *Accumulator) Merge(state FeedState, batch model.StoryBatchResult) FeedState {
	stories := mergeByKey(state.Stories, batch.Stories, model.StoryCardData.Key)

	recovered := lo.Associate(batch.LoadedFeeds, func(id string) (string, struct{}) {
		return id, struct{}{}
	})
	kept := lo.Reject(state.Errors, func(e model.FetchError, _ int) bool {
		_, ok := recovered[e.Config.ID]
		return ok
	})
	errs := mergeByKey(kept, batch.Errors, func(e model.FetchError) string {
		return e.Config.ID
	})

	return FeedState{
		Stories: a.ranker.Rerank(stories, a.now()),
		Cursor:  batch.NextCursor,
		HasMore: batch.HasMoreFeeds,
		Errors:  errs,
	}
}

// mergeByKey overwrites existing entries in place and appends unseen ones.
func mergeByKey[T any, K comparable](existing, incoming []T, key func(T) K) []T {
	out := make([]T, 0, len(existing)+len(incoming))
	index := make(map[K]int, len(existing)+len(incoming))
	for _, item := range existing {
		k := key(item)
		if i, ok := index[k]; ok {
			out[i] = item
			continue
		}
		index[k] = len(out)
		out = append(out, item)
	}
	for _, item := range incoming {
		k := key(item)
		if i, ok := index[k]; ok {
			out[i] = item
			continue
		}
		index[k] = len(out)
		out = append(out, item)
	}
	return out
}
