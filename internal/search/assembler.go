package search

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/docindex/internal/models"
	"github.com/hyperjump/docindex/internal/tokenizer"
)

// Connector is placed between non-adjacent chunks of one section.
const Connector = "\n\n...\n\n"

// minGrowBudget is the spare budget a section needs before it is grown into surrounding text.
const minGrowBudget = 40

// growScanFactor bounds how many bytes per budget token are tokenized when growing a section.
const growScanFactor = 8

// SectionSource is a document with the chunks a query matched.
type SectionSource interface {
	LoadText() (string, error)
	ChunkHits() []models.ChunkHit
}

// Assembler renders matched chunks of a document into token-bounded sections.
type Assembler struct {
	tok             tokenizer.Tokenizer
	connectorTokens int
}

// NewAssembler returns an assembler counting tokens with tok.
func NewAssembler(tok tokenizer.Tokenizer) *Assembler {
	return &Assembler{tok: tok, connectorTokens: tokenizer.Count(tok, Connector)}
}

// span is a piece of document text. start and end are inclusive byte offsets; connectors have -1.
type span struct {
	text   string
	start  int
	end    int
	tokens int
	score  float64
}

type section struct {
	spans  []span
	score  float64
	tokens int
}

func (s *section) render() models.Section {
	var b strings.Builder
	for _, sp := range s.spans {
		b.WriteString(sp.text)
	}
	return models.Section{Text: b.String(), TokenCount: s.tokens, Score: s.score}
}

// RenderSections returns up to maxSections sections of at most about maxTokens tokens each.
// A document that fits the budget is returned whole with score 1. With overlapping set,
// non-adjacent chunks are joined by Connector and sections are grown into the surrounding text.
func (a *Assembler) RenderSections(doc SectionSource, maxTokens, maxSections int, overlapping bool) ([]models.Section, error) {
	if maxTokens < 1 {
		return nil, fmt.Errorf("%w: max tokens must be >= 1, got %d", models.ErrConfig, maxTokens)
	}
	text, err := doc.LoadText()
	if err != nil {
		return nil, err
	}
	if length := tokenizer.Estimate(a.tok, text); length <= maxTokens {
		return []models.Section{{Text: text, TokenCount: length, Score: 1}}, nil
	}

	hits := a.spans(text, doc.ChunkHits())
	if len(hits) == 0 {
		return nil, nil
	}
	fitting := make([]span, 0, len(hits))
	for _, h := range hits {
		if h.tokens <= maxTokens {
			fitting = append(fitting, h)
		}
	}
	if len(fitting) == 0 {
		return []models.Section{a.truncate(hits, maxTokens)}, nil
	}

	sort.SliceStable(fitting, func(i, j int) bool { return fitting[i].start < fitting[j].start })
	sections := pack(fitting, maxTokens)
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].score > sections[j].score })
	if maxSections > 0 && len(sections) > maxSections {
		sections = sections[:maxSections]
	}

	for _, s := range sections {
		mergeAdjacent(s)
		if overlapping {
			a.connect(s)
			a.grow(s, text, maxTokens)
		}
	}

	out := make([]models.Section, len(sections))
	for i, s := range sections {
		out[i] = s.render()
	}
	return out, nil
}

// RenderAllSections renders every matched chunk in document order. Chunks longer than
// maxTokens are cut into maxTokens pieces.
func (a *Assembler) RenderAllSections(doc SectionSource, maxTokens int) ([]models.Section, error) {
	if maxTokens < 1 {
		return nil, fmt.Errorf("%w: max tokens must be >= 1, got %d", models.ErrConfig, maxTokens)
	}
	text, err := doc.LoadText()
	if err != nil {
		return nil, err
	}
	var pieces []span
	for _, h := range a.spans(text, doc.ChunkHits()) {
		tokens := a.tok.Encode(h.text)
		pos := h.start
		for off := 0; off < len(tokens); off += maxTokens {
			n := min(maxTokens, len(tokens)-off)
			piece := a.tok.Decode(tokens[off : off+n])
			pieces = append(pieces, span{
				text:   piece,
				start:  pos,
				end:    pos + len(piece) - 1,
				tokens: n,
				score:  h.score,
			})
			pos += len(piece)
		}
	}
	sort.SliceStable(pieces, func(i, j int) bool { return pieces[i].start < pieces[j].start })
	sections := pack(pieces, maxTokens)
	out := make([]models.Section, len(sections))
	for i, s := range sections {
		out[i] = s.render()
	}
	return out, nil
}

// spans resolves chunk hits to their text. Hits without usable positions are skipped.
func (a *Assembler) spans(text string, hits []models.ChunkHit) []span {
	out := make([]span, 0, len(hits))
	for _, h := range hits {
		start, ok1 := h.Item.Metadata.Int(models.MetaStartPos)
		end, ok2 := h.Item.Metadata.Int(models.MetaEndPos)
		if !ok1 || !ok2 {
			continue
		}
		start = max(start, 0)
		end = min(end, len(text)-1)
		if start > end {
			continue
		}
		chunkText := text[start : end+1]
		out = append(out, span{
			text:   chunkText,
			start:  start,
			end:    end,
			tokens: tokenizer.Count(a.tok, chunkText),
			score:  h.Score,
		})
	}
	return out
}

// truncate cuts the highest-scored hit to maxTokens tokens.
func (a *Assembler) truncate(hits []span, maxTokens int) models.Section {
	top := hits[0]
	for _, h := range hits[1:] {
		if h.score > top.score {
			top = h
		}
	}
	tokens := a.tok.Encode(top.text)
	n := min(maxTokens, len(tokens))
	return models.Section{Text: a.tok.Decode(tokens[:n]), TokenCount: n, Score: top.score}
}

// pack groups position-ordered spans greedily into sections of at most maxTokens.
// A section's score is the mean of its spans' scores.
func pack(spans []span, maxTokens int) []*section {
	var sections []*section
	for _, sp := range spans {
		var cur *section
		if len(sections) > 0 {
			cur = sections[len(sections)-1]
		}
		if cur == nil || cur.tokens+sp.tokens > maxTokens {
			cur = &section{}
			sections = append(sections, cur)
		}
		cur.spans = append(cur.spans, sp)
		cur.score += sp.score
		cur.tokens += sp.tokens
	}
	for _, s := range sections {
		s.score /= float64(len(s.spans))
	}
	return sections
}

// mergeAdjacent joins spans that touch in the document into one span.
func mergeAdjacent(s *section) {
	merged := s.spans[:1]
	for _, sp := range s.spans[1:] {
		last := &merged[len(merged)-1]
		if last.end+1 == sp.start {
			last.text += sp.text
			last.end = sp.end
			last.tokens += sp.tokens
			continue
		}
		merged = append(merged, sp)
	}
	s.spans = merged
}

func (a *Assembler) connect(s *section) {
	if len(s.spans) < 2 {
		return
	}
	joined := make([]span, 0, 2*len(s.spans)-1)
	for i, sp := range s.spans {
		if i > 0 {
			joined = append(joined, span{text: Connector, start: -1, end: -1, tokens: a.connectorTokens})
			s.tokens += a.connectorTokens
		}
		joined = append(joined, sp)
	}
	s.spans = joined
}

// grow spends the section's spare budget on text before and after it. Each side gets half
// the budget, or all of it when the other side is at the document edge.
func (a *Assembler) grow(s *section, text string, maxTokens int) {
	budget := maxTokens - s.tokens
	if budget <= minGrowBudget {
		return
	}
	start := s.spans[0].start
	end := s.spans[len(s.spans)-1].end
	canGrowAfter := end < len(text)-1

	if start > 0 {
		limit := budget
		if canGrowAfter {
			limit = (budget + 1) / 2
		}
		tokens := a.tok.Encode(tail(text[:start], limit*growScanFactor))
		n := min(len(tokens), limit)
		if n > 0 {
			before := a.tok.Decode(tokens[len(tokens)-n:])
			s.spans = append([]span{{text: before, start: start - len(before), end: start - 1, tokens: n}}, s.spans...)
			s.tokens += n
			budget -= n
		}
	}
	if canGrowAfter && budget > 0 {
		tokens := a.tok.Encode(head(text[end+1:], budget*growScanFactor))
		n := min(len(tokens), budget)
		if n > 0 {
			after := a.tok.Decode(tokens[:n])
			s.spans = append(s.spans, span{text: after, start: end + 1, end: end + len(after), tokens: n})
			s.tokens += n
		}
	}
}

// head returns at most limit bytes from the start of text, cut on a rune boundary.
func head(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// tail returns at most limit bytes from the end of text, cut on a rune boundary.
func tail(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := len(text) - limit
	for cut < len(text) && !utf8.RuneStart(text[cut]) {
		cut++
	}
	return text[cut:]
}
