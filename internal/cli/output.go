// Package cli writes command results as styled text or JSON.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/hyperjump/docindex/internal/indexer"
	"github.com/hyperjump/docindex/internal/ingest"
	"github.com/hyperjump/docindex/internal/keyword"
	"github.com/hyperjump/docindex/internal/models"
	"github.com/hyperjump/docindex/internal/search"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat returns the format named by s.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	uriStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	ruleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

const rule = "─────────────────────────────────────────────────────────"

// WriteSearchResults writes query results. preview > 0 shortens each section to that many bytes.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat, preview int) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\n%s\n\n", headerStyle.Render(
		fmt.Sprintf("Found %d documents in %dms", response.Total, response.QueryTime)))
	for _, result := range response.Results {
		writeOneResult(w, result, preview)
	}
	return nil
}

func writeOneResult(w io.Writer, result *models.SearchResult, preview int) {
	fmt.Fprintln(w, ruleStyle.Render(rule))
	fmt.Fprintf(w, "%s %s\n", mutedStyle.Render(fmt.Sprintf("#%d", result.Rank)), uriStyle.Render(result.URI))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("score %.4f | %d chunks | id %s", result.Score, result.Chunks, result.DocumentID)))
	for i, s := range result.Sections {
		text := s.Text
		if preview > 0 {
			text = search.Highlight(text, preview)
		}
		fmt.Fprintf(w, "\n%s\n%s\n",
			mutedStyle.Render(fmt.Sprintf("[section %d: %d tokens, score %.4f]", i+1, s.TokenCount, s.Score)),
			text)
	}
	fmt.Fprintln(w)
}

// WriteContext writes a rendered context. Text output is the raw context so it can be piped into a prompt.
func WriteContext(w io.Writer, c *search.Context, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, c)
	}
	_, err := fmt.Fprintln(w, c.Text)
	return err
}

// WriteFindResults writes keyword matches, or the suggested respelling when nothing matched.
func WriteFindResults(w io.Writer, res *keyword.Result, format OutputFormat) error {
	if format == OutputJSON {
		if res.Hits == nil {
			res.Hits = []keyword.Hit{}
		}
		return writeJSON(w, res)
	}
	if len(res.Hits) == 0 {
		fmt.Fprintf(w, "No documents match %q.\n", res.Query)
		if res.Suggestion != "" {
			fmt.Fprintf(w, "Did you mean %s?\n", headerStyle.Render(res.Suggestion))
		}
		return nil
	}
	for _, h := range res.Hits {
		fmt.Fprintf(w, "%s %s\n", uriStyle.Render(h.URI), mutedStyle.Render(fmt.Sprintf("(score %.4f)", h.Score)))
	}
	return nil
}

type documentLine struct {
	URI    string `json:"uri"`
	ID     string `json:"id"`
	Chunks int    `json:"chunks"`
}

// WriteDocuments writes the documents of an index.
func WriteDocuments(w io.Writer, docs []*indexer.DocumentResult, format OutputFormat) error {
	lines := make([]documentLine, 0, len(docs))
	for _, d := range docs {
		lines = append(lines, documentLine{URI: d.URI, ID: d.ID, Chunks: len(d.Chunks)})
	}
	if format == OutputJSON {
		return writeJSON(w, lines)
	}
	if len(lines) == 0 {
		fmt.Fprintln(w, "No documents indexed.")
		return nil
	}
	for _, l := range lines {
		fmt.Fprintf(w, "%s %s\n", uriStyle.Render(l.URI), mutedStyle.Render(fmt.Sprintf("(%d chunks, id %s)", l.Chunks, l.ID)))
	}
	fmt.Fprintf(w, "\n%d documents\n", len(lines))
	return nil
}

// WriteStats writes index statistics.
func WriteStats(w io.Writer, stats indexer.CatalogStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintln(w, headerStyle.Render("Index"))
	fmt.Fprintf(w, "  Version:   %d\n", stats.Version)
	fmt.Fprintf(w, "  Documents: %d\n", stats.Documents)
	fmt.Fprintf(w, "  Chunks:    %d\n", stats.Chunks)
	fmt.Fprintf(w, "  Size:      %s\n", humanize.IBytes(uint64(stats.IndexSize)))
	return nil
}

// WriteSyncReport writes the outcome of a sync or rebuild.
func WriteSyncReport(w io.Writer, report *ingest.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Indexed %d, unchanged %d, removed %d, failed %d in %s\n",
		report.Indexed, report.Unchanged, report.Removed, report.Failed, report.Duration.Round(1e6))
	return nil
}

// WritePruned writes the ids removed by a prune.
func WritePruned(w io.Writer, ids []string, format OutputFormat) error {
	if format == OutputJSON {
		if ids == nil {
			ids = []string{}
		}
		return writeJSON(w, map[string][]string{"pruned": ids})
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No orphaned documents.")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintf(w, "pruned %s\n", id)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
