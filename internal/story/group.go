package story

import (
	"slices"
	"time"

	"github.com/bryan-buckman/frontpage/internal/model"
)

// DayGroup is the set of stories published on one UTC day. Undated
// stories share a group with a zero Date.
type DayGroup struct {
	Date    time.Time             `json:"date"`
	Undated bool                  `json:"undated"`
	Stories []model.StoryCardData `json:"stories"`
}

// GroupByDate buckets stories by UTC publication day, newest day first
// and undated last. Story order within a day is preserved.
func GroupByDate(stories []model.StoryCardData) []DayGroup {
	var groups []DayGroup
	index := make(map[string]int)
	for _, s := range stories {
		key := "undated"
		var day time.Time
		if t, ok := ParseTimestamp(s.PublishedAt); ok {
			key = DayKey(t)
			day, _ = time.Parse(dayKeyLayout, key)
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DayGroup{Date: day, Undated: key == "undated"})
		}
		groups[i].Stories = append(groups[i].Stories, s)
	}

	slices.SortStableFunc(groups, func(a, b DayGroup) int {
		switch {
		case a.Undated != b.Undated:
			if a.Undated {
				return 1
			}
			return -1
		default:
			return b.Date.Compare(a.Date)
		}
	})
	return groups
}
