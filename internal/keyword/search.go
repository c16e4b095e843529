package keyword

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/docindex/internal/models"
)

// Defaults for SearchOptions fields left at zero.
const (
	DefaultLimit     = 10
	DefaultFuzziness = 1
	DefaultURIBoost  = 2.0
	maxFuzziness     = 2
)

// SearchOptions tunes a keyword search.
type SearchOptions struct {
	Limit int `json:"limit,omitempty"`
	// Fuzzy matches each term within Fuzziness edits.
	Fuzzy     bool    `json:"fuzzy,omitempty"`
	Fuzziness int     `json:"fuzziness,omitempty"`
	URIBoost  float64 `json:"uri_boost,omitempty"`
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Fuzziness <= 0 {
		o.Fuzziness = DefaultFuzziness
	}
	if o.Fuzziness > maxFuzziness {
		o.Fuzziness = maxFuzziness
	}
	if o.URIBoost <= 0 {
		o.URIBoost = DefaultURIBoost
	}
	return o
}

// Hit is one matching document.
type Hit struct {
	URI   string  `json:"uri"`
	Score float64 `json:"score"`
}

// Result is the answer to Find.
type Result struct {
	Query string `json:"query"`
	Hits  []Hit  `json:"hits"`
	// Suggestion is a respelled query, set only when nothing matched.
	Suggestion string `json:"suggestion,omitempty"`
}

// Find searches for query and, when nothing matches, suggests a respelling built
// from the indexed vocabulary.
func (x *Index) Find(ctx context.Context, query string, opts SearchOptions) (*Result, error) {
	hits, err := x.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	res := &Result{Query: query, Hits: hits}
	if len(hits) == 0 {
		if s, ok, err := x.Suggest(query); err == nil && ok {
			res.Suggestion = s
		}
	}
	return res, nil
}

// Search returns up to opts.Limit documents matching query, best first. URI matches are
// boosted, and for multi-term queries documents matching fewer terms are penalized by
// the square of the fraction of terms they contain.
func (x *Index) Search(ctx context.Context, query string, opts SearchOptions) ([]Hit, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: query is empty", models.ErrInvalidInput)
	}
	opts = opts.withDefaults()
	reqSize := max(opts.Limit*2, 50)

	x.mu.RLock()
	defer x.mu.RUnlock()

	req := bleve.NewSearchRequest(x.buildQuery(query, terms, opts))
	req.Size = reqSize
	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: keyword search: %w", models.ErrStorage, err)
	}

	coverage := map[string]int{}
	if len(terms) > 1 {
		coverage, err = x.termCoverage(ctx, terms, reqSize, opts)
		if err != nil {
			return nil, err
		}
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		score := h.Score
		if len(terms) > 1 {
			matched := max(coverage[h.ID], 1)
			frac := float64(matched) / float64(len(terms))
			score *= frac * frac
		}
		hits = append(hits, Hit{URI: h.ID, Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].URI < hits[j].URI
	})
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

// buildQuery matches the query against uri (boosted) and content.
func (x *Index) buildQuery(query string, terms []string, opts SearchOptions) blevequery.Query {
	if opts.Fuzzy {
		return bleve.NewDisjunctionQuery(
			fuzzyQuery(terms, opts.Fuzziness, fieldURI, opts.URIBoost),
			fuzzyQuery(terms, opts.Fuzziness, fieldContent, 1),
		)
	}
	uq := bleve.NewMatchQuery(query)
	uq.SetField(fieldURI)
	uq.SetBoost(opts.URIBoost)
	cq := bleve.NewMatchQuery(query)
	cq.SetField(fieldContent)
	return bleve.NewDisjunctionQuery(uq, cq)
}

func fuzzyQuery(terms []string, fuzziness int, field string, boost float64) blevequery.Query {
	qs := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		fq.SetBoost(boost)
		qs = append(qs, fq)
	}
	if len(qs) == 1 {
		return qs[0]
	}
	return bleve.NewDisjunctionQuery(qs...)
}

// termCoverage counts, per document, how many of terms it contains in either field.
func (x *Index) termCoverage(ctx context.Context, terms []string, size int, opts SearchOptions) (map[string]int, error) {
	coverage := make(map[string]int)
	for _, term := range terms {
		var q blevequery.Query
		if opts.Fuzzy {
			q = bleve.NewDisjunctionQuery(
				fuzzyQuery([]string{term}, opts.Fuzziness, fieldURI, 1),
				fuzzyQuery([]string{term}, opts.Fuzziness, fieldContent, 1),
			)
		} else {
			q = bleve.NewMatchQuery(term)
		}
		req := bleve.NewSearchRequest(q)
		req.Size = size
		res, err := x.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: keyword term search: %w", models.ErrStorage, err)
		}
		for _, h := range res.Hits {
			coverage[h.ID]++
		}
	}
	return coverage, nil
}

// tokenize lowercases query and splits it into words, dropping surrounding punctuation.
func tokenize(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if w != "" {
			terms = append(terms, w)
		}
	}
	return terms
}
