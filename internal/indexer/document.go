package indexer

import (
	"fmt"
	"sync"

	"github.com/hyperjump/docindex/internal/models"
	"github.com/hyperjump/docindex/internal/storage"
	"github.com/hyperjump/docindex/internal/tokenizer"
)

// Document is an indexed document. Text and metadata are read from disk on first use.
type Document struct {
	ID  string `json:"id"`
	URI string `json:"uri"`

	blobs *storage.Blobs
	tok   tokenizer.Tokenizer

	mu       sync.Mutex
	text     *string
	metadata models.Metadata
	mdLoaded bool
}

func (x *Index) newDocument(id, uri string) *Document {
	return &Document{ID: id, URI: uri, blobs: x.blobs, tok: x.tok}
}

// LoadText returns the document text.
func (d *Document) LoadText() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.text == nil {
		text, err := d.blobs.ReadText(d.ID)
		if err != nil {
			return "", fmt.Errorf("%w: text of %q: %w", models.ErrStorage, d.URI, err)
		}
		d.text = &text
	}
	return *d.text, nil
}

// LoadMetadata returns the caller metadata stored with the document, or nil when none was given.
func (d *Document) LoadMetadata() (models.Metadata, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.mdLoaded {
		md, err := d.blobs.ReadMetadata(d.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata of %q: %w", models.ErrStorage, d.URI, err)
		}
		d.metadata = md
		d.mdLoaded = true
	}
	return d.metadata, nil
}

// HasMetadata reports whether caller metadata was stored with the document.
func (d *Document) HasMetadata() bool {
	return d.blobs.HasMetadata(d.ID)
}

// Length returns the estimated token length of the document text.
func (d *Document) Length() (int, error) {
	text, err := d.LoadText()
	if err != nil {
		return 0, err
	}
	return tokenizer.Estimate(d.tok, text), nil
}

// DocumentResult is a document matched by a query with its matching chunks.
type DocumentResult struct {
	*Document
	Chunks []models.ChunkHit `json:"chunks"`
	Score  float64           `json:"score"`
}

func newDocumentResult(doc *Document, hits []models.ChunkHit) *DocumentResult {
	var sum float64
	for _, h := range hits {
		sum += h.Score
	}
	r := &DocumentResult{Document: doc, Chunks: hits}
	if len(hits) > 0 {
		r.Score = sum / float64(len(hits))
	}
	return r
}

// ChunkHits returns the matching chunks in query order.
func (r *DocumentResult) ChunkHits() []models.ChunkHit {
	return r.Chunks
}
