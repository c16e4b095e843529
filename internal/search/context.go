package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/docindex/internal/indexer"
	"github.com/hyperjump/docindex/internal/models"
	"github.com/hyperjump/docindex/internal/tokenizer"
)

// ContextHeader opens every rendered context.
const ContextHeader = "Here are some snippets of code and text that might help:"

// Section sizing for context rendering.
const (
	sectionTokens     = 2000
	multiSectionLimit = 6000
)

// ContextConfig bounds the query behind a context.
type ContextConfig struct {
	MaxDocuments int `yaml:"max_documents" json:"max_documents"`
	MaxChunks    int `yaml:"max_chunks" json:"max_chunks"`
}

// DefaultContextConfig returns the query bounds used for context building.
func DefaultContextConfig() ContextConfig {
	return ContextConfig{MaxDocuments: 100, MaxChunks: 2000}
}

// Snippet is one section placed into a context.
type Snippet struct {
	URI     string         `json:"uri"`
	Section models.Section `json:"section"`
}

// Context is query-relevant document text rendered for a prompt.
type Context struct {
	Text     string    `json:"text"`
	Length   int       `json:"length"`
	TooLong  bool      `json:"too_long"`
	Snippets []Snippet `json:"snippets"`
}

// ContextBuilder renders the best matching sections of the index into a token budget.
type ContextBuilder struct {
	index     Querier
	tok       tokenizer.Tokenizer
	assembler *Assembler
	cfg       ContextConfig
	logger    *zap.Logger
}

// NewContextBuilder returns a builder over index. Zero fields of cfg take their defaults.
func NewContextBuilder(index Querier, tok tokenizer.Tokenizer, cfg ContextConfig, opts ...Option) *ContextBuilder {
	def := DefaultContextConfig()
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = def.MaxDocuments
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = def.MaxChunks
	}
	s := newSettings(opts)
	return &ContextBuilder{
		index:     index,
		tok:       tok,
		assembler: NewAssembler(tok),
		cfg:       cfg,
		logger:    s.logger,
	}
}

// Build queries the index and appends sections, best documents first, while they fit in maxTokens.
func (b *ContextBuilder) Build(ctx context.Context, query string, maxTokens int) (*Context, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", models.ErrInvalidInput)
	}
	if maxTokens < 1 {
		return nil, fmt.Errorf("%w: max tokens must be >= 1, got %d", models.ErrInvalidInput, maxTokens)
	}
	docs, err := b.index.QueryDocuments(ctx, query, indexer.QueryOptions{
		MaxDocuments: b.cfg.MaxDocuments,
		MaxChunks:    b.cfg.MaxChunks,
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	text.WriteString(ContextHeader)
	remaining := maxTokens - tokenizer.Count(b.tok, ContextHeader)
	out := &Context{}

	for _, doc := range docs {
		title := "\n\npath: " + doc.URI + "\nsnippet:\n"
		titleLen := tokenizer.Count(b.tok, title)
		available := remaining - titleLen
		if available < 1 {
			break
		}
		maxSections, tokens := sectionPlan(available)
		sections, err := b.assembler.RenderSections(doc, min(available, tokens), maxSections, true)
		if err != nil {
			return nil, fmt.Errorf("render %q: %w", doc.URI, err)
		}
		for _, sec := range sections {
			length := sec.TokenCount + titleLen
			if remaining-length < 0 {
				break
			}
			text.WriteString(title)
			text.WriteString(sec.Text)
			remaining -= length
			out.Snippets = append(out.Snippets, Snippet{URI: doc.URI, Section: sec})
		}
	}

	out.Text = text.String()
	out.Length = maxTokens - remaining
	out.TooLong = remaining < 0
	b.logger.Debug("context built",
		zap.String("query", query),
		zap.Int("documents", len(docs)),
		zap.Int("snippets", len(out.Snippets)),
		zap.Int("length", out.Length))
	return out, nil
}

// sectionPlan picks how many sections to render, and how large, for the tokens left.
func sectionPlan(available int) (maxSections, tokens int) {
	switch {
	case available < sectionTokens:
		return 1, available
	case available <= multiSectionLimit:
		return 1, sectionTokens
	default:
		return 2, sectionTokens
	}
}
