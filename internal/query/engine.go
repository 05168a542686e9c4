// Package query translates a raw search string into trigram and token
// probes against a store.Adapter, merges the candidate sets, scores and
// ranks them.
package query

import (
	"context"
	"sort"
	"strings"

	"github.com/sha1n/wsearch/internal/store"
	"github.com/sha1n/wsearch/internal/textindex"
)

// tokenBoost is added to a candidate's score for every query it matches
// via the token index (spec §4.6 step 3).
const tokenBoost = 100

// abbreviationScore is the flat score assigned to candidates found only
// via the abbreviation-predicate fallback scan (spec §4.6 step 4).
const abbreviationScore = 600

// Options configures query-time behavior; these mirror the façade's
// build-time configuration (spec §6) but are read-only here.
type Options struct {
	MinTrigramLength int
	EnableCamelCase  bool
	CaseSensitive    bool
}

// Result is one ranked candidate.
type Result struct {
	Item  store.Item
	Score int
}

// Engine runs the query pipeline against a storage adapter.
type Engine struct {
	adapter store.Adapter
	opts    Options
}

// New constructs a query Engine over adapter.
func New(adapter store.Adapter, opts Options) *Engine {
	if opts.MinTrigramLength <= 0 {
		opts.MinTrigramLength = 3
	}
	return &Engine{adapter: adapter, opts: opts}
}

// Search runs the five-step pipeline of spec §4.6 and returns at most
// limit results, ranked by descending score, ties broken by shorter name.
func (e *Engine) Search(ctx context.Context, q string, limit int) ([]Result, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}

	found := make(map[int64]Result)

	if err := e.probeTrigrams(ctx, q, found); err != nil {
		return nil, err
	}
	if e.opts.EnableCamelCase {
		if err := e.probeTokens(ctx, q, found); err != nil {
			return nil, err
		}
	}
	if err := e.probeAbbreviations(ctx, q, found); err != nil {
		return nil, err
	}

	return rank(found, limit), nil
}

func (e *Engine) probeTrigrams(ctx context.Context, q string, found map[int64]Result) error {
	if len([]rune(q)) < e.opts.MinTrigramLength {
		return nil
	}

	trigrams := textindex.Trigrams(q, e.opts.CaseSensitive)
	if len(trigrams) == 0 {
		return nil
	}
	terms := make([]string, len(trigrams))
	for i, tg := range trigrams {
		terms[i] = tg.Text
	}

	counts, err := e.adapter.SearchTrigrams(ctx, terms)
	if err != nil {
		return err
	}

	for id := range counts {
		item, err := e.adapter.GetItem(ctx, id)
		if err != nil || item == nil {
			continue
		}
		if s := textindex.Score(q, item.Name, e.opts.CaseSensitive); s > 0 {
			found[id] = Result{Item: *item, Score: s}
		}
	}
	return nil
}

func (e *Engine) probeTokens(ctx context.Context, q string, found map[int64]Result) error {
	tokens := textindex.Tokens(q)
	if len(tokens) == 0 {
		return nil
	}
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = textindex.Fold(tok.Text, e.opts.CaseSensitive)
	}

	counts, err := e.adapter.SearchTokens(ctx, terms)
	if err != nil {
		return err
	}

	for id := range counts {
		if existing, ok := found[id]; ok {
			existing.Score += tokenBoost
			found[id] = existing
			continue
		}

		item, err := e.adapter.GetItem(ctx, id)
		if err != nil || item == nil {
			continue
		}
		if s := textindex.Score(q, item.Name, e.opts.CaseSensitive); s > 0 {
			found[id] = Result{Item: *item, Score: s + tokenBoost}
		}
	}
	return nil
}

func (e *Engine) probeAbbreviations(ctx context.Context, q string, found map[int64]Result) error {
	items, err := e.adapter.AllItems(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if _, ok := found[item.ID]; ok {
			continue
		}
		if textindex.AbbreviationMatches(q, item.Name) {
			found[item.ID] = Result{Item: item, Score: abbreviationScore}
		}
	}
	return nil
}

func rank(found map[int64]Result, limit int) []Result {
	out := make([]Result, 0, len(found))
	for _, r := range found {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return len(out[i].Item.Name) < len(out[j].Item.Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
