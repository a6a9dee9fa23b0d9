package domain

import (
	"math"
	"net/url"
	"sort"
	"strings"
)

const (
	// Scoring weights
	ScoreExactMatch     = 100.0
	ScorePrefixMatch    = 75.0
	ScoreSubstringMatch = 50.0
	ScoreFuzzyMatch     = 25.0

	// Position bonus (earlier is better)
	ScorePositionBonus = 10.0

	// Tags are picked by the user, they outrank titles and hosts
	ScoreTagBonus = 50.0

	// Usage weight (click counter contributes to final score)
	ScoreUsageWeight = 0.1
)

// Match is a bookmark with its search score.
type Match struct {
	Bookmark     *Bk     `json:"bookmark"`
	LexicalScore float64 `json:"lexicalScore"`
	UsageScore   float64 `json:"usageScore"`
	Score        float64 `json:"score"`
}

// ScoreBk scores bk against query using its tags, title and host.
// Zero means no match.
func ScoreBk(query string, bk *Bk) float64 {
	query = strings.ToLower(strings.TrimSpace(query))
	if bk == nil || query == "" {
		return 0.0
	}

	best := 0.0
	for _, tag := range bk.Tags {
		if s := scoreText(query, strings.ToLower(tag)); s > 0 {
			best = math.Max(best, s+ScoreTagBonus)
		}
	}
	best = math.Max(best, scoreText(query, strings.ToLower(bk.Title)))
	best = math.Max(best, scoreText(query, hostOf(bk.URL)))
	return best
}

// scoreText matches query against one field
func scoreText(query, text string) float64 {
	if text == "" {
		return 0.0
	}

	if query == text {
		return ScoreExactMatch
	}

	if strings.HasPrefix(text, query) {
		return ScorePrefixMatch
	}

	// Earlier substring matches get higher score
	if index := strings.Index(text, query); index >= 0 {
		return ScoreSubstringMatch + ScorePositionBonus*(1.0-float64(index)/float64(len(text)))
	}

	// Every query word appears somewhere
	if words := strings.Fields(query); len(words) > 1 {
		allMatch := true
		for _, word := range words {
			if !strings.Contains(text, word) {
				allMatch = false
				break
			}
		}
		if allMatch {
			return ScoreFuzzyMatch
		}
	}

	if similarity := calculateSimilarity(query, text); similarity > 0.5 {
		return ScoreFuzzyMatch * similarity
	}
	return 0.0
}

// calculateSimilarity is the share of query runes present in text
func calculateSimilarity(query, text string) float64 {
	if query == "" || text == "" {
		return 0.0
	}

	total, matches := 0, 0
	for _, c := range query {
		total++
		if strings.ContainsRune(text, c) {
			matches++
		}
	}
	return float64(matches) / float64(total)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Rank scores every bookmark, drops non-matches and sorts by score
// (descending), then by URL. limit <= 0 keeps everything.
func Rank(query string, bks []*Bk, limit int) []Match {
	matches := make([]Match, 0, len(bks))

	for _, bk := range bks {
		lexical := ScoreBk(query, bk)
		if lexical == 0.0 {
			continue
		}

		// Logarithmic so heavy use does not dominate
		usage := 0.0
		if bk.ClickedCount > 0 {
			usage = math.Log10(float64(bk.ClickedCount)+1) * ScoreUsageWeight * 100
		}

		matches = append(matches, Match{
			Bookmark:     bk,
			LexicalScore: lexical,
			UsageScore:   usage,
			Score:        lexical + usage,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Bookmark.URL < matches[j].Bookmark.URL
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
