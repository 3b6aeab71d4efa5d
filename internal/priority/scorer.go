// Package priority scores story text against ranked keyword lists.
package priority

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultSupportingBonus is the flat score added per supporting keyword match.
const DefaultSupportingBonus = 5

// Field weights for StoryScore.
const (
	TitleWeight   = 3
	SummaryWeight = 2
	FeedWeight    = 1
)

// Scorer maps text to a relevance score. It is immutable after
// construction and safe for concurrent use.
type Scorer struct {
	primary    []string
	supporting []string
	bonus      int
}

// NewScorer builds a scorer from an ordered primary list (earlier entries
// are worth more) and a flat-weight supporting list. Blank entries are
// dropped before ranks are assigned.
func NewScorer(primary, supporting []string, bonus int) *Scorer {
	return &Scorer{
		primary:    normalize(primary),
		supporting: normalize(supporting),
		bonus:      bonus,
	}
}

// Default returns a scorer over the built-in keyword lists.
func Default() *Scorer {
	return NewScorer(PrimaryKeywords, SupportingKeywords, DefaultSupportingBonus)
}

// PrimaryCount returns the number of primary keywords.
func (s *Scorer) PrimaryCount() int {
	return len(s.primary)
}

// Score returns the keyword score of text. Every matching keyword
// contributes; a primary keyword at rank i adds N-i, a supporting
// keyword adds the flat bonus.
func (s *Scorer) Score(text string) int {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	score := 0
	n := len(s.primary)
	for i, keyword := range s.primary {
		if matchesKeyword(lower, keyword) {
			score += n - i
		}
	}
	for _, keyword := range s.supporting {
		if matchesKeyword(lower, keyword) {
			score += s.bonus
		}
	}
	return score
}

// StoryScore weights title, summary and feed title matches 3:2:1.
func (s *Scorer) StoryScore(title, summary, feedTitle string) int {
	return TitleWeight*s.Score(title) +
		SummaryWeight*s.Score(summary) +
		FeedWeight*s.Score(feedTitle)
}

// matchesKeyword reports whether keyword occurs in text. Phrases match
// anywhere; single words must not touch a letter or digit on either side.
func matchesKeyword(text, keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(text, keyword)
	}
	for offset := 0; offset <= len(text); {
		idx := strings.Index(text[offset:], keyword)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(keyword)
		if isBoundary(text, start, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

func isBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func normalize(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		out = append(out, k)
	}
	return out
}
