package models

import "errors"

// Error taxonomy. Callers match with errors.Is; wrapped errors carry the URI or operation.
var (
	// ErrStorage indicates an I/O or parse failure against persisted state.
	ErrStorage = errors.New("storage error")

	// ErrDuplicateID indicates an insert collided with an existing item id.
	ErrDuplicateID = errors.New("duplicate item id")

	// ErrEmbedding indicates the embedding provider returned a non-success response.
	ErrEmbedding = errors.New("embedding error")

	// ErrIngest wraps any failure during an upsert transaction. The transaction was rolled back.
	ErrIngest = errors.New("ingest error")

	// ErrConfig indicates invalid chunking or index configuration.
	ErrConfig = errors.New("config error")

	// ErrNotFound indicates an unknown document.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a malformed query or request.
	ErrInvalidInput = errors.New("invalid input")
)
