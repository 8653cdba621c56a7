package matching

import (
	"strings"
	"unicode/utf8"
)

const (
	// tokenMatchRatio is the minimum edit ratio for two tokens to count as the same word.
	tokenMatchRatio = 0.8
	// editRatioFloor keeps whole-string edit ratio for near-identical names only;
	// below it, shared prefixes like "manchester" dominate the ratio.
	editRatioFloor = 0.85
)

// Similarity scores two normalized names in [0, 1].
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	score := TokenSetRatio(a, b)
	if edit := EditRatio(a, b); edit >= editRatioFloor && edit > score {
		score = edit
	}
	return score
}

// TokenSetRatio is a Dice coefficient over word sets where near-identical words
// count as partial matches weighted by their edit ratio.
func TokenSetRatio(a, b string) float64 {
	left := uniqueTokens(a)
	right := uniqueTokens(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	used := make([]bool, len(right))
	matched := 0.0
	for _, l := range left {
		best, bestIdx := 0.0, -1
		for i, r := range right {
			if used[i] {
				continue
			}
			ratio := tokenRatio(l, r)
			if ratio > best {
				best, bestIdx = ratio, i
			}
		}
		if bestIdx >= 0 && best >= tokenMatchRatio {
			used[bestIdx] = true
			matched += best
		}
	}
	return 2 * matched / float64(len(left)+len(right))
}

// EditRatio is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes.
func EditRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// tokenRatio demands exact equality for short tokens, where one edit changes meaning.
func tokenRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	if utf8.RuneCountInString(a) < 4 || utf8.RuneCountInString(b) < 4 {
		return 0
	}
	return EditRatio(a, b)
}

func uniqueTokens(s string) []string {
	fields := strings.Fields(s)
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
