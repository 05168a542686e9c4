// Package textindex implements the pure text-processing operations the
// search engine builds on: normalization, trigram and word-token emission,
// the abbreviation-match predicate, and name scoring.
package textindex

import "strings"

// Normalize replaces every rune outside [A-Za-z0-9_- ] with a space,
// collapses runs of whitespace, and trims the result.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false
	for _, r := range text {
		if isNormalizeKeep(r) {
			if r == ' ' && lastSpace {
				continue
			}
			b.WriteRune(r)
			lastSpace = r == ' '
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func isNormalizeKeep(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-' || r == ' ':
		return true
	default:
		return false
	}
}

func isAlnum(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// Fold case-folds text iff caseSensitive is false.
func Fold(text string, caseSensitive bool) string {
	if caseSensitive {
		return text
	}
	return strings.ToLower(text)
}
