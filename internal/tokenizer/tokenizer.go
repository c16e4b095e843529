// Package tokenizer provides lossless text tokenizers used for chunking and token budgeting.
package tokenizer

import (
	"fmt"
	"strings"
)

// Tokenizer encodes text into token ids and back. Decode(Encode(s)) must equal s.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Kind names a tokenizer implementation in configuration.
type Kind string

const (
	// KindBPE uses a tiktoken byte-pair encoding (matches the embedding model's tokenizer).
	KindBPE Kind = "bpe"
	// KindWord uses the whitespace word tokenizer (deterministic, no external data).
	KindWord Kind = "word"
)

// New creates a tokenizer of the given kind. encoding is only used by KindBPE.
func New(kind string, encoding string) (Tokenizer, error) {
	switch Kind(strings.ToLower(kind)) {
	case KindBPE, "":
		return NewBPE(encoding)
	case KindWord:
		return NewWord(), nil
	default:
		return nil, fmt.Errorf("unknown tokenizer type: %s (supported: bpe, word)", kind)
	}
}

// Count returns the number of tokens in text.
func Count(t Tokenizer, text string) int {
	if text == "" {
		return 0
	}
	return len(t.Encode(text))
}

// exactEstimateLimit is the largest text (in bytes) Estimate tokenizes exactly.
const exactEstimateLimit = 40000

// Estimate returns the token length of text: exact up to 40,000 bytes, ceil(bytes/4) beyond.
func Estimate(t Tokenizer, text string) int {
	if len(text) <= exactEstimateLimit {
		return Count(t, text)
	}
	return (len(text) + 3) / 4
}
