// Package embedding provides embedding providers: an OpenAI-compatible HTTP client,
// a deterministic mock and an LRU-cached wrapper.
package embedding

import (
	"context"
	"fmt"
	"sort"
)

// Status is the outcome of an embeddings request.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusRateLimited Status = "rate_limited"
	StatusError       Status = "error"
)

// Embedding is one output vector and the index of the input it belongs to.
type Embedding struct {
	Index  int       `json:"index"`
	Vector []float32 `json:"embedding"`
}

// Response is the result of CreateEmbeddings. Output is set only on success.
type Response struct {
	Status  Status
	Output  []Embedding
	Message string
}

// Provider turns texts into vectors.
// A non-success Response is returned with a nil error; error is reserved for
// failures to reach the provider at all.
type Provider interface {
	CreateEmbeddings(ctx context.Context, inputs []string) (*Response, error)
	// MaxTokens is the token budget of a single request.
	MaxTokens() int
}

// Vectors returns the output ordered by input index. It fails unless there is exactly
// one embedding per input.
func (r *Response) Vectors(n int) ([][]float32, error) {
	if len(r.Output) != n {
		return nil, fmt.Errorf("expected %d embeddings, got %d", n, len(r.Output))
	}
	out := make([]Embedding, len(r.Output))
	copy(out, r.Output)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	vectors := make([][]float32, n)
	for i, e := range out {
		if e.Index != i {
			return nil, fmt.Errorf("embedding index %d out of sequence", e.Index)
		}
		vectors[i] = e.Vector
	}
	return vectors, nil
}

// Success wraps vectors as a successful response.
func Success(vectors [][]float32) *Response {
	out := make([]Embedding, len(vectors))
	for i, v := range vectors {
		out[i] = Embedding{Index: i, Vector: v}
	}
	return &Response{Status: StatusSuccess, Output: out}
}
