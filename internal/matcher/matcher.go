// Package matcher recovers an account from a typed name when no
// language-independent identifier is available. Candidates are fetched by
// pairing code elsewhere; this package only scores and ranks them.
package matcher

import (
	"sort"
	"strings"
	"unicode"
)

const (
	// matchThreshold is the minimum score for a candidate to be kept.
	matchThreshold = 0.7
	// maxRanked caps the ambiguous candidate list shown to the user.
	maxRanked = 5
)

// honorifics are kinship suffixes commonly appended to or stored with a
// name ("김말자 할머니"). Stored names may carry them parenthesized.
var honorifics = []string{
	"할머니", "할아버지", "어머니", "아버지", "엄마", "아빠", "이모", "고모", "삼촌",
}

// wildcards are placeholder runes treated as matching any character.
var wildcards = map[rune]bool{'○': true, '*': true, '?': true}

// Candidate is a stored profile considered for recovery.
type Candidate struct {
	ProfileID string
	Name      string
}

// Scored is a candidate with its match confidence.
type Scored struct {
	Candidate
	Score float64
}

// ResultKind classifies a match outcome.
type ResultKind int

const (
	// ResultNone means no candidate cleared the threshold.
	ResultNone ResultKind = iota
	// ResultUnique means exactly one candidate cleared the threshold.
	ResultUnique
	// ResultAmbiguous means several candidates cleared the threshold.
	ResultAmbiguous
)

// Result is the outcome of a recovery match attempt.
type Result struct {
	Kind ResultKind
	// Match is set for ResultUnique.
	Match *Scored
	// Ranked holds the kept candidates for ResultAmbiguous, best first.
	Ranked []Scored
}

// Match scores every candidate against the typed name and applies the
// decision policy: zero kept candidates is no match, one is a unique match,
// several are ambiguous and returned ranked by descending confidence.
func Match(inputName string, candidates []Candidate) Result {
	var kept []Scored
	for _, c := range candidates {
		if s := Score(inputName, c.Name); s >= matchThreshold {
			kept = append(kept, Scored{Candidate: c, Score: s})
		}
	}

	switch len(kept) {
	case 0:
		return Result{Kind: ResultNone}
	case 1:
		return Result{Kind: ResultUnique, Match: &kept[0]}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].Name < kept[j].Name
	})
	if len(kept) > maxRanked {
		kept = kept[:maxRanked]
	}
	return Result{Kind: ResultAmbiguous, Ranked: kept}
}

// Score returns the match confidence between a typed name and a stored
// name, the highest of several heuristics. Both names are normalized first
// (whitespace stripped, case folded).
func Score(input, stored string) float64 {
	a := []rune(normalize(input))
	b := []rune(normalize(stored))
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if string(a) == string(b) {
		return 1.0
	}

	best := levenshteinSimilarity(a, b)

	if strings.Contains(string(a), string(b)) || strings.Contains(string(b), string(a)) {
		best = max(best, float64(min(len(a), len(b)))/float64(max(len(a), len(b))))
	}

	// A leading (surname) rune agreement plus a wildcard marker anywhere is
	// a strong hint the caller only remembers part of the name.
	if a[0] == b[0] && (hasWildcard(a) || hasWildcard(b)) {
		best = max(best, 0.8)
	}

	if baseA, okA := stripHonorific(string(a)); okA {
		if baseB, okB := stripHonorific(string(b)); okB {
			if baseA == baseB {
				best = max(best, 0.9)
			} else {
				best = max(best, 0.8*levenshteinSimilarity([]rune(baseA), []rune(baseB)))
			}
		}
	}

	if len(a) == len(b) {
		matched := 0
		for i := range a {
			if a[i] == b[i] || wildcards[a[i]] || wildcards[b[i]] {
				matched++
			}
		}
		best = max(best, float64(matched)/float64(len(a)))
	}

	return best
}

// normalize strips all whitespace and case-folds.
func normalize(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

func hasWildcard(runes []rune) bool {
	for _, r := range runes {
		if wildcards[r] {
			return true
		}
	}
	return false
}

// stripHonorific removes a trailing kinship suffix, parenthesized or not,
// and reports whether one was found.
func stripHonorific(s string) (string, bool) {
	for _, h := range honorifics {
		if base, ok := strings.CutSuffix(s, "("+h+")"); ok && base != "" {
			return base, true
		}
		if base, ok := strings.CutSuffix(s, h); ok && base != "" {
			return base, true
		}
	}
	return s, false
}

// levenshteinSimilarity is 1 - editDistance/maxLen.
func levenshteinSimilarity(a, b []rune) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes the edit distance with a rolling single-row table.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur := make([]int, len(b)+1)
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev = cur
	}
	return prev[len(b)]
}
