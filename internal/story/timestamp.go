package story

import (
	"strings"
	"time"
)

// dayKeyLayout formats the UTC calendar day used for windowing and grouping.
const dayKeyLayout = "2006-01-02"

// Layouts seen in RSS and Atom publishedAt values. Zone-less layouts are
// read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.ANSIC,
}

// zoneOffsets resolves the abbreviations feeds commonly carry that
// time.Parse cannot place, in seconds east of UTC.
var zoneOffsets = map[string]int{
	"UTC": 0, "UT": 0, "GMT": 0, "Z": 0,
	"EST": -5 * 3600, "EDT": -4 * 3600,
	"CST": -6 * 3600, "CDT": -5 * 3600,
	"MST": -7 * 3600, "MDT": -6 * 3600,
	"PST": -8 * 3600, "PDT": -7 * 3600,
	"AKST": -9 * 3600, "AKDT": -8 * 3600,
	"HST": -10 * 3600,
}

// ParseTimestamp parses a feed timestamp. ok is false when no known
// layout matches or the zone abbreviation is unknown.
func ParseTimestamp(raw string) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if strings.Contains(layout, "MST") {
			return resolveZone(parsed)
		}
		return parsed, true
	}
	return time.Time{}, false
}

// resolveZone fixes up a time parsed from a zone abbreviation. time.Parse
// gives unknown abbreviations a zero offset.
func resolveZone(t time.Time) (time.Time, bool) {
	name, offset := t.Zone()
	if offset != 0 {
		return t, true
	}
	known, ok := zoneOffsets[strings.ToUpper(name)]
	if !ok {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
		time.FixedZone(name, known)), true
}

// DayKey returns the UTC calendar day of t.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayKeyLayout)
}
