package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tiktoken encoding used by the OpenAI embedding models.
const DefaultEncoding = "cl100k_base"

// BPE wraps a tiktoken byte-pair encoding.
// The encoding's ranks are fetched on first use and cached (see TIKTOKEN_CACHE_DIR).
type BPE struct {
	enc *tiktoken.Tiktoken
}

// NewBPE loads the named encoding (e.g. "cl100k_base", "o200k_base").
func NewBPE(encoding string) (*BPE, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &BPE{enc: enc}, nil
}

// Encode returns the BPE token ids for text. Special tokens are encoded as plain text.
func (b *BPE) Encode(text string) []int {
	return b.enc.Encode(text, nil, nil)
}

// Decode returns the text for tokens.
func (b *BPE) Decode(tokens []int) string {
	return b.enc.Decode(tokens)
}
