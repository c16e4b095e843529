// Package search renders query results into token-bounded sections and prompt context.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docindex/internal/indexer"
	"github.com/hyperjump/docindex/internal/models"
	"github.com/hyperjump/docindex/internal/tokenizer"
)

// Querier finds the documents closest to a query.
type Querier interface {
	QueryDocuments(ctx context.Context, query string, opts indexer.QueryOptions) ([]*indexer.DocumentResult, error)
}

// Option configures an Engine or a ContextBuilder.
type Option func(*settings)

type settings struct {
	logger *zap.Logger
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

func newSettings(opts []Option) settings {
	s := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Engine runs queries and renders each matched document into sections.
type Engine struct {
	index     Querier
	assembler *Assembler
	logger    *zap.Logger
}

// NewEngine creates a search engine over index.
func NewEngine(index Querier, tok tokenizer.Tokenizer, opts ...Option) *Engine {
	s := newSettings(opts)
	return &Engine{
		index:     index,
		assembler: NewAssembler(tok),
		logger:    s.logger,
	}
}

// Search runs the query and returns ranked document results.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	docs, err := e.index.QueryDocuments(ctx, query.Query, indexer.QueryOptions{
		MaxDocuments: query.Offset + query.MaxDocuments,
		MaxChunks:    query.MaxChunks,
		Filter:       query.Filter,
	})
	if err != nil {
		return nil, err
	}

	if query.MinScore > 0 {
		filtered := docs[:0]
		for _, d := range docs {
			if d.Score >= query.MinScore {
				filtered = append(filtered, d)
			}
		}
		docs = filtered
	}

	start := min(query.Offset, len(docs))
	end := min(query.Offset+query.MaxDocuments, len(docs))
	paged := docs[start:end]

	response := &models.SearchResponse{
		Results: make([]*models.SearchResult, 0, len(paged)),
		Total:   len(docs),
		Query:   query.Query,
	}
	for i, doc := range paged {
		sections, err := e.render(doc, query)
		if err != nil {
			return nil, fmt.Errorf("render %q: %w", doc.URI, err)
		}
		response.Results = append(response.Results, &models.SearchResult{
			URI:        doc.URI,
			DocumentID: doc.ID,
			Score:      doc.Score,
			Chunks:     len(doc.Chunks),
			Sections:   sections,
			Rank:       start + i + 1,
		})
	}
	response.QueryTime = time.Since(startTime).Milliseconds()
	e.logger.Debug("search completed",
		zap.String("query", query.Query),
		zap.Int("results", len(response.Results)),
		zap.Int64("query_time_ms", response.QueryTime))
	return response, nil
}

func (e *Engine) render(doc *indexer.DocumentResult, query *models.SearchQuery) ([]models.Section, error) {
	if query.MaxSections == 0 {
		return e.assembler.RenderAllSections(doc, query.MaxTokens)
	}
	return e.assembler.RenderSections(doc, query.MaxTokens, query.MaxSections, query.Overlap)
}
