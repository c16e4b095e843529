package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/docindex/internal/cli"
	"github.com/hyperjump/docindex/internal/keyword"
	"github.com/hyperjump/docindex/internal/models"
	"github.com/hyperjump/docindex/internal/search"
)

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		q         models.SearchQuery
		filter    []string
		noOverlap bool
		preview   int
		serverURL string
	)
	cmd := &cobra.Command{
		Use:   "query <text>...",
		Short: "Find the documents closest to a query and render their best sections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			q.Query = strings.Join(args, " ")
			if q.Filter, err = parseMetadata(filter); err != nil {
				return err
			}

			var response *models.SearchResponse
			if serverURL != "" {
				q.Overlap = !noOverlap
				if err := postJSON(cmd.Context(), serverURL+"/api/v1/query", &q, &response); err != nil {
					return err
				}
				return cli.WriteSearchResults(cmd.OutOrStdout(), response, format, preview)
			}

			a, err := newApp(opts, withEmbeddings)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireIndex(); err != nil {
				return err
			}
			applyQueryDefaults(cmd, &q, a)
			q.Overlap = a.cfg.Query.OverlapOrDefault() && !noOverlap
			response, err = a.engine.Search(cmd.Context(), &q)
			if err != nil {
				return err
			}
			return cli.WriteSearchResults(cmd.OutOrStdout(), response, format, preview)
		},
	}
	f := cmd.Flags()
	f.IntVarP(&q.MaxDocuments, "max-documents", "n", 0, "maximum documents returned (default from config)")
	f.IntVar(&q.MaxChunks, "max-chunks", 0, "maximum chunks considered (default from config)")
	f.IntVar(&q.MaxTokens, "max-tokens", 0, "token budget of each section (default from config)")
	f.IntVar(&q.MaxSections, "max-sections", 0, "sections rendered per document, 0 renders every match (default from config)")
	f.IntVar(&q.Offset, "offset", 0, "skip this many documents")
	f.Float64Var(&q.MinScore, "min-score", 0, "drop documents scoring below this")
	f.StringSliceVarP(&filter, "filter", "f", nil, "metadata filter key=value (repeatable)")
	f.BoolVar(&noOverlap, "no-overlap", false, "do not grow sections into surrounding text")
	f.IntVar(&preview, "preview", 0, "shorten each section to this many bytes in text output")
	f.StringVar(&serverURL, "server", "", "query a running docindex server instead of the local index, e.g. http://localhost:8080")
	return cmd
}

// applyQueryDefaults fills flags the user did not set from the config.
func applyQueryDefaults(cmd *cobra.Command, q *models.SearchQuery, a *app) {
	f := cmd.Flags()
	if !f.Changed("max-documents") {
		q.MaxDocuments = a.cfg.Query.MaxDocuments
	}
	if !f.Changed("max-chunks") {
		q.MaxChunks = a.cfg.Query.MaxChunks
	}
	if !f.Changed("max-tokens") {
		q.MaxTokens = a.cfg.Query.MaxTokens
	}
	if !f.Changed("max-sections") {
		q.MaxSections = a.cfg.Query.MaxSections
	}
}

func newContextCmd(opts *rootOptions) *cobra.Command {
	var (
		maxTokens int
		serverURL string
	)
	cmd := &cobra.Command{
		Use:   "context <text>...",
		Short: "Render the best matching sections into a prompt context",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")

			if serverURL != "" {
				var out search.Context
				req := map[string]interface{}{"query": query, "max_tokens": maxTokens}
				if err := postJSON(cmd.Context(), serverURL+"/api/v1/context", req, &out); err != nil {
					return err
				}
				return cli.WriteContext(cmd.OutOrStdout(), &out, format)
			}

			a, err := newApp(opts, withEmbeddings)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireIndex(); err != nil {
				return err
			}
			if maxTokens == 0 {
				maxTokens = a.cfg.Context.MaxTokens
			}
			out, err := a.builder.Build(cmd.Context(), query, maxTokens)
			if err != nil {
				return err
			}
			return cli.WriteContext(cmd.OutOrStdout(), out, format)
		},
	}
	cmd.Flags().IntVarP(&maxTokens, "max-tokens", "t", 0, "token budget of the context (default from config)")
	cmd.Flags().StringVar(&serverURL, "server", "", "use a running docindex server instead of the local index")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			a, err := newApp(opts, 0)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireIndex(); err != nil {
				return err
			}
			docs, err := a.index.ListDocuments()
			if err != nil {
				return err
			}
			return cli.WriteDocuments(cmd.OutOrStdout(), docs, format)
		},
	}
}

func newFindCmd(opts *rootOptions) *cobra.Command {
	var (
		find      keyword.SearchOptions
		serverURL string
	)
	cmd := &cobra.Command{
		Use:   "find <words>...",
		Short: "Find documents containing words, without embedding the query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")

			var res *keyword.Result
			if serverURL != "" {
				v := url.Values{}
				v.Set("q", query)
				v.Set("limit", strconv.Itoa(find.Limit))
				v.Set("fuzzy", strconv.FormatBool(find.Fuzzy))
				v.Set("fuzziness", strconv.Itoa(find.Fuzziness))
				if err := getJSON(cmd.Context(), serverURL+"/api/v1/find?"+v.Encode(), &res); err != nil {
					return err
				}
				return cli.WriteFindResults(cmd.OutOrStdout(), res, format)
			}

			a, err := newApp(opts, withKeywords)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireKeywords(); err != nil {
				return err
			}
			res, err = a.keywords.Find(cmd.Context(), query, find)
			if err != nil {
				return err
			}
			return cli.WriteFindResults(cmd.OutOrStdout(), res, format)
		},
	}
	cmd.Flags().IntVarP(&find.Limit, "limit", "n", keyword.DefaultLimit, "maximum number of documents")
	cmd.Flags().BoolVar(&find.Fuzzy, "fuzzy", false, "tolerate typos in each word")
	cmd.Flags().IntVar(&find.Fuzziness, "fuzziness", keyword.DefaultFuzziness, "edits allowed per word with --fuzzy (max 2)")
	cmd.Flags().StringVar(&serverURL, "server", "", "query a running server instead of opening the index, e.g. http://localhost:8080")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			a, err := newApp(opts, 0)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireIndex(); err != nil {
				return err
			}
			stats, err := a.index.Stats()
			if err != nil {
				return err
			}
			return cli.WriteStats(cmd.OutOrStdout(), stats, format)
		},
	}
}

// parseMetadata turns key=value pairs into metadata. true and false become bools,
// numbers become numbers and anything else a string.
func parseMetadata(pairs []string) (models.Metadata, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	md := make(models.Metadata, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q; want key=value", p)
		}
		switch {
		case v == "true" || v == "false":
			md[k] = models.Bool(v == "true")
		default:
			if n, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
				md[k] = models.Number(n)
			} else {
				md[k] = models.String(v)
			}
		}
	}
	return md, nil
}

func postJSON(ctx context.Context, endpoint string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return send(req, out)
}

func getJSON(ctx context.Context, endpoint string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return send(req, out)
}

func send(req *http.Request, out interface{}) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
