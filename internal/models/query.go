package models

import "fmt"

// Query limits.
const (
	DefaultMaxDocuments = 10
	DefaultMaxChunks    = 50
	DefaultMaxTokens    = 500
	MaxQueryDocuments   = 100
)

// SearchQuery is a search request against the document index.
type SearchQuery struct {
	Query        string   `json:"query"`
	MaxDocuments int      `json:"max_documents,omitempty"`
	MaxChunks    int      `json:"max_chunks,omitempty"`
	Offset       int      `json:"offset,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"`   // per rendered section
	MaxSections  int      `json:"max_sections,omitempty"` // 0 renders every matched chunk in document order
	Overlap      bool     `json:"overlap,omitempty"`      // join chunks with a connector and grow into surrounding text
	MinScore     float64  `json:"min_score,omitempty"`
	Filter       Metadata `json:"filter,omitempty"`
}

// Validate ensures the query is usable and applies defaults.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidInput)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0, got %d", ErrInvalidInput, q.Offset)
	}
	if q.MaxSections < 0 {
		return fmt.Errorf("%w: max_sections must be >= 0, got %d", ErrInvalidInput, q.MaxSections)
	}
	if q.MaxDocuments <= 0 {
		q.MaxDocuments = DefaultMaxDocuments
	}
	if q.MaxDocuments > MaxQueryDocuments {
		q.MaxDocuments = MaxQueryDocuments
	}
	if q.MaxChunks <= 0 {
		q.MaxChunks = DefaultMaxChunks
	}
	if q.MaxTokens <= 0 {
		q.MaxTokens = DefaultMaxTokens
	}
	return nil
}

// SearchResult is one matched document with its rendered sections.
type SearchResult struct {
	URI        string    `json:"uri"`
	DocumentID string    `json:"document_id"`
	Score      float64   `json:"score"`
	Chunks     int       `json:"chunks"`
	Sections   []Section `json:"sections"`
	Rank       int       `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
}
