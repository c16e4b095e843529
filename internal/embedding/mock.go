package embedding

import (
	"context"
	"math"
	"strings"
	"sync"
	"unicode"
)

// Mock is a deterministic offline provider for tests and local runs. Each word is hashed into
// a bucket of a fixed-size vector, so texts sharing words have a higher cosine similarity.
type Mock struct {
	dimensions int
	maxTokens  int

	mu      sync.Mutex
	calls   int
	inputs  int
	failure *Response
}

// NewMock returns a mock provider. Non-positive arguments fall back to 64 dimensions
// and a 8000 token request budget.
func NewMock(dimensions, maxTokens int) *Mock {
	if dimensions <= 0 {
		dimensions = 64
	}
	if maxTokens <= 0 {
		maxTokens = 8000
	}
	return &Mock{dimensions: dimensions, maxTokens: maxTokens}
}

// MaxTokens returns the per-request token budget.
func (m *Mock) MaxTokens() int {
	return m.maxTokens
}

// Fail makes every following call return a response with status and message.
// StatusSuccess clears the failure.
func (m *Mock) Fail(status Status, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == StatusSuccess {
		m.failure = nil
		return
	}
	m.failure = &Response{Status: status, Message: message}
}

// Calls returns the number of CreateEmbeddings calls and the total number of inputs embedded.
func (m *Mock) Calls() (calls, inputs int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, m.inputs
}

// CreateEmbeddings embeds every input. Outputs are returned in reverse order to exercise
// index-based reordering by callers.
func (m *Mock) CreateEmbeddings(ctx context.Context, inputs []string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls++
	m.inputs += len(inputs)
	failure := m.failure
	m.mu.Unlock()
	if failure != nil {
		return &Response{Status: failure.Status, Message: failure.Message}, nil
	}
	out := make([]Embedding, 0, len(inputs))
	for i := len(inputs) - 1; i >= 0; i-- {
		out = append(out, Embedding{Index: i, Vector: m.Embed(inputs[i])})
	}
	return &Response{Status: StatusSuccess, Output: out}, nil
}

// Embed returns the unit-length bag-of-words vector for text.
func (m *Mock) Embed(text string) []float32 {
	vec := make([]float32, m.dimensions)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		vec[bucket(w, m.dimensions)]++
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		norm := float32(1 / math.Sqrt(sum))
		for i := range vec {
			vec[i] *= norm
		}
	}
	return vec
}

// HashString returns a deterministic hash of s.
func HashString(s string) uint32 {
	var h uint32
	for _, c := range s {
		h = 31*h + uint32(c)
	}
	return h
}

// bucket maps s onto [0, n) without passing through a signed int.
func bucket(s string, n int) int {
	return int(HashString(s) % uint32(n))
}
