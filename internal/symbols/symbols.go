// Package symbols provides the default, regex-based symbol provider used
// when no language-server integration is configured.
package symbols

import (
	"regexp"
	"strings"
)

// Kind classifies a discovered symbol.
type Kind string

const (
	KindFunction  Kind = "function"
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
	KindEnum      Kind = "enum"
	KindConst     Kind = "const"
	KindVar       Kind = "var"
	KindMacro     Kind = "macro"
	KindModule    Kind = "module"
	KindTrait     Kind = "trait"
	KindType      Kind = "type"
)

// Symbol is one declaration found in a file, per the symbol provider
// contract: (name, kind, container, uri, range).
type Symbol struct {
	Name      string
	Kind      Kind
	Container string
	Path      string
	RangeLo   int
	RangeHi   int
}

type pattern struct {
	re   *regexp.Regexp
	kind Kind
}

var languagePatterns = map[string][]pattern{
	"go": {
		{regexp.MustCompile(`func\s+(\w+)`), KindFunction},
		{regexp.MustCompile(`type\s+(\w+)\s+(?:struct|interface)`), KindClass},
		{regexp.MustCompile(`const\s+(\w+)`), KindConst},
		{regexp.MustCompile(`var\s+(\w+)`), KindVar},
	},
	"py": {
		{regexp.MustCompile(`(?m)^\s*def\s+(\w+)`), KindFunction},
		{regexp.MustCompile(`(?m)^\s*class\s+(\w+)`), KindClass},
	},
	"python": {
		{regexp.MustCompile(`(?m)^\s*def\s+(\w+)`), KindFunction},
		{regexp.MustCompile(`(?m)^\s*class\s+(\w+)`), KindClass},
	},
	"java": {
		{regexp.MustCompile(`class\s+(\w+)`), KindClass},
		{regexp.MustCompile(`interface\s+(\w+)`), KindInterface},
		{regexp.MustCompile(`enum\s+(\w+)`), KindEnum},
		{regexp.MustCompile(`(?:public|protected|private|static|\s) +[\w\<\>\[\]]+\s+(\w+) *\(`), KindFunction},
	},
	"js": {
		{regexp.MustCompile(`function\s+(\w+)`), KindFunction},
		{regexp.MustCompile(`class\s+(\w+)`), KindClass},
		{regexp.MustCompile(`const\s+(\w+)\s*=`), KindVar},
		{regexp.MustCompile(`let\s+(\w+)\s*=`), KindVar},
		{regexp.MustCompile(`var\s+(\w+)\s*=`), KindVar},
	},
	"ts": {
		{regexp.MustCompile(`function\s+(\w+)`), KindFunction},
		{regexp.MustCompile(`class\s+(\w+)`), KindClass},
		{regexp.MustCompile(`interface\s+(\w+)`), KindInterface},
		{regexp.MustCompile(`type\s+(\w+)\s*=`), KindType},
		{regexp.MustCompile(`const\s+(\w+)\s*=`), KindVar},
		{regexp.MustCompile(`let\s+(\w+)\s*=`), KindVar},
	},
	"rs": {
		{regexp.MustCompile(`fn\s+(\w+)`), KindFunction},
		{regexp.MustCompile(`struct\s+(\w+)`), KindClass},
		{regexp.MustCompile(`enum\s+(\w+)`), KindEnum},
		{regexp.MustCompile(`trait\s+(\w+)`), KindTrait},
		{regexp.MustCompile(`mod\s+(\w+)`), KindModule},
		{regexp.MustCompile(`type\s+(\w+)`), KindType},
	},
	"c": {
		{regexp.MustCompile(`(?m)^\s*\w+\s+(\w+)\s*\(.*\)\s*\{`), KindFunction},
		{regexp.MustCompile(`struct\s+(\w+)`), KindClass},
		{regexp.MustCompile(`enum\s+(\w+)`), KindEnum},
		{regexp.MustCompile(`#define\s+(\w+)`), KindMacro},
	},
	"cpp": {
		{regexp.MustCompile(`class\s+(\w+)`), KindClass},
		{regexp.MustCompile(`struct\s+(\w+)`), KindClass},
		{regexp.MustCompile(`enum\s+(\w+)`), KindEnum},
		{regexp.MustCompile(`(?m)^\s*\w+\s+(\w+)\s*\(.*\)\s*\{`), KindFunction},
	},
}

func patternsFor(ext string) []pattern {
	normalized := strings.ToLower(strings.TrimPrefix(ext, "."))
	if p, ok := languagePatterns[normalized]; ok {
		return p
	}
	switch normalized {
	case "javascript", "jsx":
		return languagePatterns["js"]
	case "typescript", "tsx":
		return languagePatterns["ts"]
	case "golang":
		return languagePatterns["go"]
	case "rust":
		return languagePatterns["rs"]
	case "h":
		return languagePatterns["c"]
	case "hpp", "cc", "cxx":
		return languagePatterns["cpp"]
	default:
		return nil
	}
}

// ExtractFromFile extracts symbols from content, attributing each to path
// with container left empty (the regex provider has no notion of nesting
// beyond the declaration itself).
func ExtractFromFile(path, ext, content string) []Symbol {
	patterns := patternsFor(ext)
	if len(patterns) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var out []Symbol
	for _, p := range patterns {
		locs := p.re.FindAllStringSubmatchIndex(content, -1)
		for _, loc := range locs {
			if len(loc) < 4 {
				continue
			}
			name := strings.TrimSpace(content[loc[2]:loc[3]])
			if name == "" || len(name) >= 100 {
				continue
			}
			key := string(p.kind) + "\x00" + name
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, Symbol{
				Name:    name,
				Kind:    p.kind,
				Path:    path,
				RangeLo: loc[0],
				RangeHi: loc[1],
			})
		}
	}
	return out
}

// Provider returns the flat symbol list for a workspace, as consumed by the
// index builder: a flat list of (name, kind, container, uri, range); may be
// empty if unavailable.
type Provider interface {
	Symbols(files map[string]string) ([]Symbol, error)
}

// RegexProvider is the default Provider, grounded on per-language regular
// expressions rather than a language server.
type RegexProvider struct{}

// NewRegexProvider returns the default regex-based symbol provider.
func NewRegexProvider() *RegexProvider {
	return &RegexProvider{}
}

// Symbols extracts symbols from the given path->extension content map.
// files keys are workspace-relative paths, values are file contents; the
// extension is derived from the path itself.
func (p *RegexProvider) Symbols(files map[string]string) ([]Symbol, error) {
	var out []Symbol
	for path, content := range files {
		ext := ""
		if i := strings.LastIndex(path, "."); i >= 0 {
			ext = path[i+1:]
		}
		out = append(out, ExtractFromFile(path, ext, content)...)
	}
	return out, nil
}
