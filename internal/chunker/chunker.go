// Package chunker splits text into token-bounded chunks along a hierarchy of separators.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/docindex/internal/models"
	"github.com/hyperjump/docindex/internal/tokenizer"
)

// Config controls chunking.
type Config struct {
	ChunkSize      int      `yaml:"chunk_size"`
	ChunkOverlap   int      `yaml:"chunk_overlap"`
	KeepSeparators bool     `yaml:"keep_separators"`
	Separators     []string `yaml:"separators,omitempty"`
	DocType        string   `yaml:"doc_type,omitempty"`
}

// DefaultConfig returns the standalone chunker defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    400,
		ChunkOverlap: 40,
	}
}

// Validate reports invalid size/overlap settings as models.ErrConfig.
func (c Config) Validate() error {
	switch {
	case c.ChunkSize < 1:
		return fmt.Errorf("%w: chunk size must be >= 1, got %d", models.ErrConfig, c.ChunkSize)
	case c.ChunkOverlap < 0:
		return fmt.Errorf("%w: chunk overlap must be >= 0, got %d", models.ErrConfig, c.ChunkOverlap)
	case c.ChunkOverlap > c.ChunkSize:
		return fmt.Errorf("%w: chunk overlap (%d) must be <= chunk size (%d)", models.ErrConfig, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Chunker splits text. It holds no mutable state and is safe for concurrent use
// when its tokenizer is.
type Chunker struct {
	cfg        Config
	tok        tokenizer.Tokenizer
	separators []string
}

// New validates cfg and returns a chunker. When cfg.Separators is empty the
// hierarchy for cfg.DocType is used.
func New(cfg Config, tok tokenizer.Tokenizer) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, fmt.Errorf("%w: tokenizer is required", models.ErrConfig)
	}
	seps := cfg.Separators
	if len(seps) == 0 {
		seps = Separators(cfg.DocType)
	}
	return &Chunker{cfg: cfg, tok: tok, separators: seps}, nil
}

// Config returns the chunker configuration.
func (c *Chunker) Config() Config {
	return c.cfg
}

// Split chunks text. Positions are inclusive byte offsets into text.
func (c *Chunker) Split(text string) []models.Chunk {
	chunks := c.split(text, c.separators, 0)
	if c.cfg.ChunkOverlap > 0 {
		for i := range chunks {
			if i > 0 {
				prev := chunks[i-1].Tokens
				n := min(c.cfg.ChunkOverlap, len(prev))
				chunks[i].StartOverlap = append([]int(nil), prev[len(prev)-n:]...)
			}
			if i < len(chunks)-1 {
				next := chunks[i+1].Tokens
				n := min(c.cfg.ChunkOverlap, len(next))
				chunks[i].EndOverlap = append([]int(nil), next[:n]...)
			}
		}
	}
	return chunks
}

// split cuts text on the first separator and recurses into oversized parts with the rest.
// offset is the byte position of text within the original document.
func (c *Chunker) split(text string, separators []string, offset int) []models.Chunk {
	if text == "" {
		return nil
	}

	var (
		parts []string
		sep   string
		rest  []string
	)
	switch {
	case len(separators) == 0:
		parts = halve(text)
	case separators[0] == " ":
		// token runs concatenate back to text, so no separator bytes sit between them
		parts = c.splitBySpaces(text)
		rest = separators[1:]
	default:
		sep = separators[0]
		rest = separators[1:]
		if sep == "" {
			parts = splitRunes(text)
		} else {
			parts = strings.Split(text, sep)
		}
	}

	var chunks []models.Chunk
	start := offset
	for i, part := range parts {
		last := i == len(parts)-1
		span := len(part)
		if !last {
			span += len(sep)
		}
		end := start + span - 1

		chunkText := part
		if c.cfg.KeepSeparators && !last {
			chunkText += sep
		}
		if containsAlphanumeric(chunkText) {
			chunks = append(chunks, c.fit(chunkText, rest, start, end, len(separators) == 0)...)
		}
		start = end + 1
	}
	return c.combine(chunks, c.cfg.KeepSeparators || sep == "")
}

// fit returns text as one chunk when it is within the token budget, otherwise splits it further.
func (c *Chunker) fit(text string, rest []string, start, end int, exhausted bool) []models.Chunk {
	indivisible := exhausted && utf8.RuneCountInString(text) <= 1
	if float64(len(text))/6 > float64(c.cfg.ChunkSize) && !indivisible {
		return c.split(text, rest, start)
	}
	tokens := c.tok.Encode(text)
	if len(tokens) > c.cfg.ChunkSize && !indivisible {
		return c.split(text, rest, start)
	}
	return []models.Chunk{{
		Text:     text,
		Tokens:   tokens,
		StartPos: start,
		EndPos:   end,
	}}
}

// splitBySpaces re-encodes text and cuts it every ChunkSize tokens.
func (c *Chunker) splitBySpaces(text string) []string {
	tokens := c.tok.Encode(text)
	if len(tokens) <= c.cfg.ChunkSize {
		return []string{text}
	}
	parts := make([]string, 0, len(tokens)/c.cfg.ChunkSize+1)
	for len(tokens) > 0 {
		n := min(c.cfg.ChunkSize, len(tokens))
		parts = append(parts, c.tok.Decode(tokens[:n]))
		tokens = tokens[n:]
	}
	return parts
}

// combine packs neighbouring chunks while their total stays within ChunkSize.
func (c *Chunker) combine(chunks []models.Chunk, tight bool) []models.Chunk {
	if len(chunks) < 2 {
		return chunks
	}
	joiner := " "
	if tight {
		joiner = ""
	}
	out := make([]models.Chunk, 0, len(chunks))
	cur := chunks[0]
	for _, next := range chunks[1:] {
		if len(cur.Tokens)+len(next.Tokens) > c.cfg.ChunkSize {
			out = append(out, cur)
			cur = next
			continue
		}
		tokens := make([]int, 0, len(cur.Tokens)+len(next.Tokens))
		tokens = append(tokens, cur.Tokens...)
		tokens = append(tokens, next.Tokens...)
		cur.Text += joiner + next.Text
		cur.Tokens = tokens
		cur.EndPos = next.EndPos
	}
	return append(out, cur)
}

// halve splits text at its rune midpoint. Single-rune text is returned whole.
func halve(text string) []string {
	n := utf8.RuneCountInString(text)
	if n <= 1 {
		return []string{text}
	}
	mid := 0
	for i := 0; i < n/2; i++ {
		_, size := utf8.DecodeRuneInString(text[mid:])
		mid += size
	}
	return []string{text[:mid], text[mid:]}
}

func splitRunes(text string) []string {
	parts := make([]string, 0, len(text))
	for i := 0; i < len(text); {
		_, size := utf8.DecodeRuneInString(text[i:])
		parts = append(parts, text[i:i+size])
		i += size
	}
	return parts
}

func containsAlphanumeric(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
