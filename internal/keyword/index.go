// Package keyword keeps a Bleve full-text index of document URIs and text alongside
// the embedding index, for exact and typo-tolerant lookups.
package keyword

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.uber.org/zap"

	"github.com/hyperjump/docindex/internal/models"
)

const (
	fieldURI     = "uri"
	fieldContent = "content"

	// lockTimeout bounds the wait for another process holding the index.
	lockTimeout = "2s"
)

type document struct {
	URI     string `json:"uri"`
	Content string `json:"content"`
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(x *Index) {
		x.logger = l
	}
}

// Index is a Bleve index of documents keyed by URI.
type Index struct {
	path   string
	logger *zap.Logger

	mu    sync.RWMutex
	index bleve.Index
}

// Open opens the index at path, creating it when it does not exist.
// Changing the mapping requires removing the directory so the index is rebuilt.
func Open(path string, opts ...Option) (*Index, error) {
	x := &Index{path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(x)
	}
	if x.logger == nil {
		x.logger = zap.NewNop()
	}
	idx, err := open(path)
	if err != nil {
		return nil, err
	}
	x.index = idx
	return x, nil
}

func open(path string) (bleve.Index, error) {
	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.OpenUsing(path, map[string]interface{}{"bolt_timeout": lockTimeout})
		if err != nil {
			return nil, fmt.Errorf("%w: open keyword index: %w", models.ErrStorage, err)
		}
		return idx, nil
	}
	idx, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("%w: create keyword index: %w", models.ErrStorage, err)
	}
	return idx, nil
}

// newMapping indexes uri and content with the standard analyzer: lowercased words,
// no stemming, so "bayes" matches "Bayes" but not "Bayesian".
func newMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(fieldURI, text)
	doc.AddFieldMappingsAt(fieldContent, text)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

// Upsert indexes text under uri, replacing any previous version.
func (x *Index) Upsert(ctx context.Context, uri, text string) error {
	if uri == "" {
		return fmt.Errorf("%w: uri is required", models.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if err := x.index.Index(uri, document{URI: uri, Content: text}); err != nil {
		return fmt.Errorf("%w: keyword index %s: %w", models.ErrStorage, uri, err)
	}
	return nil
}

// Delete removes uri. Deleting an unknown uri is not an error.
func (x *Index) Delete(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if err := x.index.Delete(uri); err != nil {
		return fmt.Errorf("%w: keyword delete %s: %w", models.ErrStorage, uri, err)
	}
	return nil
}

// Reset drops every document by recreating the index directory.
func (x *Index) Reset() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.index.Close(); err != nil {
		x.logger.Warn("failed to close keyword index", zap.Error(err))
	}
	if err := os.RemoveAll(x.path); err != nil {
		return fmt.Errorf("%w: remove keyword index: %w", models.ErrStorage, err)
	}
	idx, err := bleve.New(x.path, newMapping())
	if err != nil {
		return fmt.Errorf("%w: create keyword index: %w", models.ErrStorage, err)
	}
	x.index = idx
	x.logger.Debug("keyword index reset", zap.String("path", x.path))
	return nil
}

// DocCount returns the number of indexed documents.
func (x *Index) DocCount() (uint64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.index.DocCount()
}

// Close releases the index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.index.Close()
}

// terms returns the document frequency of every term in the uri and content fields.
func (x *Index) terms() (map[string]uint64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[string]uint64)
	for _, field := range []string{fieldURI, fieldContent} {
		dict, err := x.index.FieldDict(field)
		if err != nil {
			return nil, fmt.Errorf("%w: field dictionary %s: %w", models.ErrStorage, field, err)
		}
		for {
			entry, err := dict.Next()
			if err != nil || entry == nil {
				break
			}
			out[entry.Term] += entry.Count
		}
		_ = dict.Close()
	}
	return out, nil
}
