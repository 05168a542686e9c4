package textindex

import "strings"

// Trigram is one 3-rune window over normalized text, with its start
// position in that normalized text.
type Trigram struct {
	Text     string
	Position int
}

// Trigrams emits every 3-rune window of Normalize(text) (optionally
// case-folded), filtering out windows with no alphanumeric rune.
func Trigrams(text string, caseSensitive bool) []Trigram {
	normalized := Fold(Normalize(text), caseSensitive)
	runes := []rune(normalized)
	if len(runes) < 3 {
		return nil
	}

	out := make([]Trigram, 0, len(runes)-2)
	for i := 0; i <= len(runes)-3; i++ {
		window := runes[i : i+3]
		if !hasAlnum(window) {
			continue
		}
		out = append(out, Trigram{Text: string(window), Position: i})
	}
	return out
}

func hasAlnum(runes []rune) bool {
	for _, r := range runes {
		if isAlnum(r) {
			return true
		}
	}
	return false
}

// Token is one CamelCase / snake / kebab word segment of a name, with its
// start offset in the original (not normalized) text.
type Token struct {
	Text     string
	Position int
}

// Tokens splits text on runs of '_', '-', or whitespace, then splits each
// resulting part at CamelCase boundaries.
func Tokens(text string) []Token {
	var out []Token
	runes := []rune(text)
	n := len(runes)

	i := 0
	for i < n {
		for i < n && isWordSeparator(runes[i]) {
			i++
		}
		start := i
		for i < n && !isWordSeparator(runes[i]) {
			i++
		}
		if i > start {
			out = append(out, splitCamel(runes[start:i], start)...)
		}
	}
	return out
}

func isWordSeparator(r rune) bool {
	return r == '_' || r == '-' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// splitCamel applies the two CamelCase-boundary rules in order:
//  1. lowercase followed by uppercase: aB -> a|B
//  2. a run of uppercase followed by an uppercase-then-lowercase: ABCd -> AB|Cd
func splitCamel(part []rune, base int) []Token {
	if len(part) == 0 {
		return nil
	}

	var breaks []int
	for i := 1; i < len(part); i++ {
		prev, cur := part[i-1], part[i]
		if isLower(prev) && isUpper(cur) {
			breaks = append(breaks, i)
			continue
		}
		if isUpper(prev) && isUpper(cur) && i+1 < len(part) && isLower(part[i+1]) {
			breaks = append(breaks, i)
		}
	}

	if len(breaks) == 0 {
		return []Token{{Text: string(part), Position: base}}
	}

	out := make([]Token, 0, len(breaks)+1)
	start := 0
	for _, b := range breaks {
		out = append(out, Token{Text: string(part[start:b]), Position: base + start})
		start = b
	}
	out = append(out, Token{Text: string(part[start:]), Position: base + start})
	return out
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }

// TokenTexts returns just the token text values, in order, optionally
// case-folded for index storage.
func TokenTexts(text string, caseSensitive bool) []string {
	tokens := Tokens(text)
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = Fold(t.Text, caseSensitive)
	}
	return out
}

// AbbreviationMatches implements the abbreviation-match predicate: q
// (case-folded) is checked against the tokens of n via three sub-rules
// tried in order.
func AbbreviationMatches(q, n string) bool {
	if q == "" {
		return false
	}
	qFold := strings.ToLower(q)
	tokens := Tokens(n)
	if len(tokens) == 0 {
		return false
	}

	concat := strings.ToLower(joinTokenTexts(tokens))
	if strings.HasPrefix(concat, qFold) {
		return true
	}

	initials := strings.ToLower(tokenInitials(tokens))
	if strings.HasPrefix(initials, qFold) {
		return true
	}

	return looseWalk(qFold, tokens)
}

func joinTokenTexts(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

func tokenInitials(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		if t.Text == "" {
			continue
		}
		r := []rune(t.Text)
		b.WriteRune(r[0])
	}
	return b.String()
}

// looseWalk scans q left-to-right against tokens in order: for each
// character it first tries the next unconsumed token's first letter; if
// that fails it consumes the nearest upcoming token whose body contains
// the character. Each token is consumed at most once, in order.
func looseWalk(qFold string, tokens []Token) bool {
	cursor := 0
	qr := []rune(qFold)

	for _, qc := range qr {
		if cursor < len(tokens) {
			body := strings.ToLower(tokens[cursor].Text)
			if len(body) > 0 && rune(body[0]) == qc {
				cursor++
				continue
			}
		}

		found := -1
		for i := cursor; i < len(tokens); i++ {
			if strings.ContainsRune(strings.ToLower(tokens[i].Text), qc) {
				found = i
				break
			}
		}
		if found == -1 {
			return false
		}
		cursor = found + 1
	}
	return true
}
