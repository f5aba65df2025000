package rule

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Strob0t/TaskPilot/internal/domain/task"
)

func (r *Rule) validateKeyword() error {
	if len(r.Keywords) == 0 {
		return &ConfigError{RuleID: r.ID, Reason: "keyword rule requires at least one keyword"}
	}
	for i, kw := range r.Keywords {
		if kw.Text == "" {
			return &ConfigError{RuleID: r.ID, Reason: fmt.Sprintf("keyword[%d]: text is required", i)}
		}
		if kw.Weight < 0 || kw.Weight > MaxWeight {
			return &ConfigError{RuleID: r.ID, Reason: fmt.Sprintf("keyword[%d] %q: weight %.2f out of range [0,%.0f]", i, kw.Text, kw.Weight, MaxWeight)}
		}
	}
	switch r.Mode {
	case ModeExact, ModeWord, ModeFuzzy:
		return nil
	}
	return &ConfigError{RuleID: r.ID, Reason: fmt.Sprintf("invalid match mode %q", r.Mode)}
}

// evaluateKeyword scores the task's title and description against the rule's
// keywords. Score is the weight sum of matched keywords over the weight sum
// of all configured keywords.
func (r *Rule) evaluateKeyword(t *task.Task) MatchResult {
	text := t.Title + "\n" + t.Description

	var words []string
	if r.Mode != ModeExact {
		words = tokenize(text)
	}

	var total, matched float64
	var hits []string
	for _, kw := range r.Keywords {
		total += kw.Weight
		if keywordMatches(kw.Text, r.Mode, text, words) {
			matched += kw.Weight
			hits = append(hits, kw.Text)
		}
	}
	if total == 0 || len(hits) == 0 {
		return MatchResult{Explanation: fmt.Sprintf("no keywords of rule %s found", r.ID)}
	}
	return MatchResult{
		Matched:     true,
		Score:       clamp01(matched / total),
		Explanation: fmt.Sprintf("keywords matched: %s", strings.Join(hits, ", ")),
	}
}

func keywordMatches(keyword string, mode MatchMode, text string, words []string) bool {
	switch mode {
	case ModeExact:
		return strings.Contains(text, keyword)
	case ModeWord:
		lower := strings.ToLower(keyword)
		for _, w := range words {
			if w == lower {
				return true
			}
		}
	case ModeFuzzy:
		lower := strings.ToLower(keyword)
		maxDist := fuzzyDistanceFor(lower)
		for _, w := range words {
			if withinEditDistance(w, lower, maxDist) {
				return true
			}
		}
	}
	return false
}

// tokenize splits text into lowercase words on non-letter, non-digit runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// fuzzyDistanceFor returns the edit-distance cutoff for a keyword: 2 for
// keywords of five or more runes, 1 for three or four, 0 (exact) below that.
func fuzzyDistanceFor(keyword string) int {
	switch n := len([]rune(keyword)); {
	case n >= 5:
		return 2
	case n >= 3:
		return 1
	default:
		return 0
	}
}

// withinEditDistance reports whether the Levenshtein distance between a and b
// is at most maxDist. Bails out early once every cell of a row exceeds the
// bound.
func withinEditDistance(a, b string, maxDist int) bool {
	if a == b {
		return true
	}
	if maxDist == 0 {
		return false
	}
	ra, rb := []rune(a), []rune(b)
	if diff := len(ra) - len(rb); diff > maxDist || -diff > maxDist {
		return false
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		if rowMin > maxDist {
			return false
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)] <= maxDist
}
