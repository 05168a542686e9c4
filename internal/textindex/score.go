package textindex

import "strings"

// Score ladder constants (spec §4.1).
const (
	ScoreExact       = 1000
	ScorePrefix      = 900
	ScoreContains    = 800
	ScoreAbbrev      = 700
	fuzzyPerChar     = 100
	fuzzyConsecutive = 50
	fuzzyWordBoundary = 25
	fuzzyLenPenalty  = 5
)

// Score ranks a candidate name n against query q, folding case iff
// caseSensitive is false. Returns 0 if q does not match n at all.
func Score(q, n string, caseSensitive bool) int {
	if q == "" || n == "" {
		return 0
	}

	qc, nc := q, n
	if !caseSensitive {
		qc = strings.ToLower(q)
		nc = strings.ToLower(n)
	}

	if qc == nc {
		return ScoreExact
	}
	if strings.HasPrefix(nc, qc) {
		return ScorePrefix
	}
	if strings.Contains(nc, qc) {
		return ScoreContains
	}
	if AbbreviationMatches(q, n) {
		return ScoreAbbrev
	}
	return fuzzyScore(qc, nc, q, n)
}

// fuzzyScore implements the §4.1 fuzzy walk: 100 per matched character in
// order, +50 per consecutive match, +25 at a word boundary, minus 5 times
// the length difference. Returns 0 if not all of q is matched.
func fuzzyScore(qc, nc, qOrig, nOrig string) int {
	qr := []rune(qc)
	nr := []rune(nc)
	nOrigRunes := []rune(nOrig)

	score := 0
	ni := 0
	lastMatched := -2
	matchedAll := true

	for qi, c := range qr {
		found := -1
		for j := ni; j < len(nr); j++ {
			if nr[j] == c {
				found = j
				break
			}
		}
		if found == -1 {
			matchedAll = false
			break
		}

		score += fuzzyPerChar
		if found == lastMatched+1 {
			score += fuzzyConsecutive
		}
		if found == 0 || isWordBoundaryBefore(nOrigRunes, found) {
			score += fuzzyWordBoundary
		}

		lastMatched = found
		ni = found + 1
		_ = qi
	}

	if !matchedAll {
		return 0
	}

	score -= fuzzyLenPenalty * absInt(len(nr)-len(qr))
	if score < 0 {
		score = 0
	}
	return score
}

func isWordBoundaryBefore(runes []rune, i int) bool {
	if i <= 0 || i >= len(runes) {
		return i == 0
	}
	prev := runes[i-1]
	return !isAlnum(prev)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
