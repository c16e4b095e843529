package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode"

	"github.com/hyperjump/docindex/internal/models"
	"github.com/hyperjump/docindex/internal/tokenizer"
)

func newChunker(t *testing.T, cfg Config) *Chunker {
	t.Helper()
	c, err := New(cfg, tokenizer.NewWord())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero size", Config{ChunkSize: 0}},
		{"negative overlap", Config{ChunkSize: 10, ChunkOverlap: -1}},
		{"overlap above size", Config{ChunkSize: 10, ChunkOverlap: 11}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, tokenizer.NewWord()); !errors.Is(err, models.ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
	if _, err := New(DefaultConfig(), tokenizer.NewWord()); err != nil {
		t.Errorf("defaults should be valid: %v", err)
	}
}

func TestSplit_WordsBySpaces(t *testing.T) {
	c := newChunker(t, Config{ChunkSize: 5})
	text := "alpha beta gamma delta epsilon zeta"
	chunks := c.Split(text)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "alpha beta gamma delta epsilon" || chunks[0].StartPos != 0 || chunks[0].EndPos != 29 {
		t.Errorf("chunk 0 = %q [%d,%d]", chunks[0].Text, chunks[0].StartPos, chunks[0].EndPos)
	}
	if chunks[1].Text != " zeta" || chunks[1].StartPos != 30 || chunks[1].EndPos != 34 {
		t.Errorf("chunk 1 = %q [%d,%d]", chunks[1].Text, chunks[1].StartPos, chunks[1].EndPos)
	}
	if chunks[0].Text+chunks[1].Text != text {
		t.Error("chunks should concatenate back to the text")
	}
	for i, ch := range chunks {
		if len(ch.Tokens) > 5 {
			t.Errorf("chunk %d has %d tokens", i, len(ch.Tokens))
		}
	}
}

func TestSplit_PositionsIndexOriginalText(t *testing.T) {
	text := "First paragraph has several words in it.\n\nSecond paragraph is here too.\n\n\n\nThird one, after blank lines, with more words than fit."
	for _, keep := range []bool{false, true} {
		c := newChunker(t, Config{ChunkSize: 6, KeepSeparators: keep})
		chunks := c.Split(text)
		if len(chunks) < 3 {
			t.Fatalf("keep=%v: expected several chunks, got %d", keep, len(chunks))
		}
		prevEnd := -1
		for i, ch := range chunks {
			if ch.StartPos <= prevEnd || ch.EndPos < ch.StartPos || ch.EndPos >= len(text) {
				t.Fatalf("keep=%v: chunk %d has bad range [%d,%d] after %d", keep, i, ch.StartPos, ch.EndPos, prevEnd)
			}
			span := text[ch.StartPos : ch.EndPos+1]
			for _, w := range strings.Fields(ch.Text) {
				if !strings.Contains(span, w) {
					t.Errorf("keep=%v: chunk %d word %q not in span %q", keep, i, w, span)
				}
			}
			if len(ch.Tokens) > 6 {
				t.Errorf("keep=%v: chunk %d has %d tokens", keep, i, len(ch.Tokens))
			}
			prevEnd = ch.EndPos
		}
	}
}

func TestSplit_KeepsAlphanumericContent(t *testing.T) {
	text := "func a() {\n\treturn 1\n}\n\n// ----\n\nfunc b() int {\n\treturn 2\n}\n"
	c := newChunker(t, Config{ChunkSize: 3, DocType: "go", KeepSeparators: true})
	var got strings.Builder
	for _, ch := range c.Split(text) {
		got.WriteString(text[ch.StartPos : ch.EndPos+1])
	}
	if alnum(got.String()) != alnum(text) {
		t.Errorf("alphanumeric content lost:\n got %q\nwant %q", alnum(got.String()), alnum(text))
	}
}

func TestSplit_DropsNonAlphanumericParts(t *testing.T) {
	c := newChunker(t, Config{ChunkSize: 50})
	chunks := c.Split("hello\n\n----\n\n!!!\n\nworld")
	for _, ch := range chunks {
		if !containsAlphanumeric(ch.Text) {
			t.Errorf("chunk without alphanumerics: %q", ch.Text)
		}
	}
	if len(chunks) != 1 || !strings.Contains(chunks[0].Text, "hello") || !strings.Contains(chunks[0].Text, "world") {
		t.Errorf("expected one combined chunk, got %+v", chunks)
	}
	if c.Split("") != nil {
		t.Error("empty text should produce no chunks")
	}
}

func TestSplit_LongWordFallsBackToCharacters(t *testing.T) {
	long := strings.Repeat("x", 120)
	c := newChunker(t, Config{ChunkSize: 4})
	chunks := c.Split(long)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	total := 0
	for _, ch := range chunks {
		total += ch.EndPos - ch.StartPos + 1
	}
	if total != len(long) {
		t.Errorf("chunks cover %d bytes, want %d", total, len(long))
	}
}

func TestSplit_BinaryFallback(t *testing.T) {
	c := newChunker(t, Config{ChunkSize: 1, Separators: []string{"\n"}})
	text := "abcdefghijklmnopqrstuvwxyz0123456789abcdefghij"
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected the midpoint fallback to split, got %d chunks", len(chunks))
	}
	var got strings.Builder
	for _, ch := range chunks {
		got.WriteString(text[ch.StartPos : ch.EndPos+1])
	}
	if got.String() != text {
		t.Errorf("coverage mismatch: %q", got.String())
	}
}

func TestSplit_Overlap(t *testing.T) {
	c := newChunker(t, Config{ChunkSize: 3, ChunkOverlap: 2})
	chunks := c.Split("one two three four five six seven eight nine")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0].StartOverlap) != 0 {
		t.Error("first chunk must have empty start overlap")
	}
	if len(chunks[2].EndOverlap) != 0 {
		t.Error("last chunk must have empty end overlap")
	}
	for i, ch := range chunks {
		if len(ch.StartOverlap) > 2 || len(ch.EndOverlap) > 2 {
			t.Errorf("chunk %d overlap too long", i)
		}
	}
	if got := c.tok.Decode(chunks[1].StartOverlap); got != " two three" {
		t.Errorf("start overlap = %q", got)
	}
	if got := c.tok.Decode(chunks[0].EndOverlap); got != " four five" {
		t.Errorf("end overlap = %q", got)
	}
	if got := c.tok.Decode(chunks[0].Tokens); got != "one two three" {
		t.Errorf("overlap must not modify chunk tokens, got %q", got)
	}
}

func TestSeparators(t *testing.T) {
	if got := Separators(""); len(got) != 4 || got[3] != "" {
		t.Errorf("default separators = %q", got)
	}
	if got := Separators(".go"); got[0] != "\nfunc " {
		t.Errorf("go separators = %q", got)
	}
	if got := Separators("TSX"); got[0] != "// LLM-REGION" {
		t.Errorf("tsx separators = %q", got)
	}
	if got := Separators("latex"); got[0] != "\n\\chapter{" {
		t.Errorf("latex separators = %q", got)
	}
	got := Separators("md")
	got[0] = "mutated"
	if Separators("md")[0] == "mutated" {
		t.Error("Separators must return a copy")
	}
}

func alnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func TestContainsAlphanumeric(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"hello", true},
		{"42", true},
		{"日本語", true},
		{"ç", true},
		{"----", false},
		{" \n\t!?", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := containsAlphanumeric(tt.text); got != tt.want {
			t.Errorf("containsAlphanumeric(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSplit_KeepsCJKParts(t *testing.T) {
	c := newChunker(t, Config{ChunkSize: 50})
	chunks := c.Split("東京の天気\n\n----\n\n晴れ")
	var got strings.Builder
	for _, ch := range chunks {
		got.WriteString(ch.Text)
	}
	if !strings.Contains(got.String(), "東京の天気") || !strings.Contains(got.String(), "晴れ") {
		t.Errorf("CJK text dropped: %+v", chunks)
	}
	if strings.Contains(got.String(), "----") {
		t.Errorf("punctuation-only part kept: %+v", chunks)
	}
}
