package tokenizer

import (
	"sync"
	"unicode"
)

// Word is a lossless tokenizer that emits one token per word, with any preceding
// whitespace attached to the word (" beta"). Trailing whitespace becomes its own token.
// Token ids come from an interning vocabulary shared by every Encode call on the same Word.
type Word struct {
	mu     sync.Mutex
	ids    map[string]int
	pieces []string
}

// NewWord returns an empty word tokenizer.
func NewWord() *Word {
	return &Word{ids: make(map[string]int)}
}

// Encode splits text into word pieces and returns their ids.
func (w *Word) Encode(text string) []int {
	pieces := SplitPieces(text)
	if len(pieces) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]int, len(pieces))
	for i, p := range pieces {
		id, ok := w.ids[p]
		if !ok {
			id = len(w.pieces)
			w.ids[p] = id
			w.pieces = append(w.pieces, p)
		}
		out[i] = id
	}
	return out
}

// Decode concatenates the pieces for tokens. Unknown ids are skipped.
func (w *Word) Decode(tokens []int) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, id := range tokens {
		if id >= 0 && id < len(w.pieces) {
			n += len(w.pieces[id])
		}
	}
	buf := make([]byte, 0, n)
	for _, id := range tokens {
		if id >= 0 && id < len(w.pieces) {
			buf = append(buf, w.pieces[id]...)
		}
	}
	return string(buf)
}

// SplitPieces splits text into word pieces whose concatenation is exactly text.
func SplitPieces(text string) []string {
	var pieces []string
	start := 0
	inWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			if inWord {
				pieces = append(pieces, text[start:i])
				start = i
				inWord = false
			}
			continue
		}
		inWord = true
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}
