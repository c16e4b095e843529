package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperjump/docindex/internal/cli"
	"github.com/hyperjump/docindex/internal/config"
	"github.com/hyperjump/docindex/internal/extract"
	"github.com/hyperjump/docindex/internal/fileid"
	"github.com/hyperjump/docindex/internal/source"
)

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		sources []string
		exts    []string
		reset   bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the index and write the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, _, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			if len(sources) > 0 {
				roots, err := absPaths(sources)
				if err != nil {
					return err
				}
				cfg.Sources.Roots = roots
			}
			cfg.Sources.Extensions = appendUnique(cfg.Sources.Extensions, exts...)
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			if opts.configPath == "" {
				opts.configPath = path
			}

			a, err := newApp(opts, 0)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.index.CreateIndex(reset); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created index at %s\n", a.cfg.Index.Folder)
			fmt.Fprintf(out, "Config written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&sources, "source", "s", nil, "folder to index (repeatable)")
	cmd.Flags().StringSliceVarP(&exts, "ext", "e", nil, "file extension to index, e.g. md (repeatable)")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete an existing index first")
	return cmd
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var (
		sources []string
		exts    []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add source folders and file extensions to the config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(sources) == 0 && len(exts) == 0 {
				return fmt.Errorf("nothing to add; use --source or --ext")
			}
			cfg, path, exists, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			if len(sources) > 0 {
				roots, err := absPaths(sources)
				if err != nil {
					return err
				}
				if !exists {
					cfg.Sources.Roots = nil
				}
				cfg.Sources.Roots = appendUnique(cfg.Sources.Roots, roots...)
			}
			cfg.Sources.Extensions = appendUnique(cfg.Sources.Extensions, exts...)
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sources: %v\n", cfg.Sources.Roots)
			if len(cfg.Sources.Extensions) > 0 {
				fmt.Fprintf(out, "Extensions: %v\n", cfg.Sources.Extensions)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&sources, "source", "s", nil, "folder to index (repeatable)")
	cmd.Flags().StringSliceVarP(&exts, "ext", "e", nil, "file extension to index, e.g. md (repeatable)")
	return cmd
}

func newRebuildCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Recreate the index from every configured source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			a, err := newApp(opts, withSources|withEmbeddings)
			if err != nil {
				return err
			}
			defer a.Close()
			report, err := a.syncer.Rebuild(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteSyncReport(cmd.OutOrStdout(), report, format)
		},
	}
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Index new and changed files and drop deleted ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			a, err := newApp(opts, withSources|withEmbeddings)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireIndex(); err != nil {
				return err
			}
			report, err := a.syncer.Sync(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteSyncReport(cmd.OutOrStdout(), report, format)
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the index with its ledger and keyword entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts, withSources)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.index.DeleteIndex(); err != nil {
				return err
			}
			if a.ledger != nil {
				if err := a.ledger.Reset(cmd.Context()); err != nil {
					return err
				}
			}
			if a.keywords != nil {
				if err := a.keywords.Reset(); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted index at %s\n", a.cfg.Index.Folder)
			return nil
		},
	}
}

func newUpsertCmd(opts *rootOptions) *cobra.Command {
	var (
		docType string
		meta    []string
	)
	cmd := &cobra.Command{
		Use:   "upsert <uri> [file]",
		Short: "Add or replace a document, reading text from file or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := parseMetadata(meta)
			if err != nil {
				return err
			}
			var text string
			if len(args) == 2 {
				text, err = extract.NewExtractor().Extract(args[1])
				if err != nil {
					return err
				}
				if docType == "" {
					docType = source.DocType(args[1])
				}
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}

			a, err := newApp(opts, withEmbeddings|withKeywords)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireIndex(); err != nil {
				return err
			}
			doc, err := a.index.UpsertDocument(cmd.Context(), args[0], text, docType, md)
			if err != nil {
				return err
			}
			if a.keywords != nil {
				if err := a.keywords.Upsert(cmd.Context(), doc.URI, text); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s (id %s, %s)\n", doc.URI, doc.ID, fileid.Fingerprint(text))
			return nil
		},
	}
	cmd.Flags().StringVar(&docType, "doc-type", "", "document type used to pick separators, e.g. md or go")
	cmd.Flags().StringSliceVarP(&meta, "meta", "m", nil, "metadata key=value (repeatable)")
	return cmd
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <uri>...",
		Short: "Remove documents from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, withKeywords)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireIndex(); err != nil {
				return err
			}
			for _, uri := range args {
				if _, ok, err := a.index.GetDocumentID(uri); err != nil {
					return err
				} else if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Not indexed: %s\n", uri)
					continue
				}
				if err := a.index.DeleteDocument(cmd.Context(), uri); err != nil {
					return err
				}
				if a.keywords != nil {
					if err := a.keywords.Delete(cmd.Context(), uri); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", uri)
			}
			return nil
		},
	}
}

func newPruneCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove stored text and chunks of documents missing from the catalog",
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
			ids, err := a.index.PruneOrphans()
			if err != nil {
				return err
			}
			return cli.WritePruned(cmd.OutOrStdout(), ids, format)
		},
	}
}

func absPaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", p, err)
		}
		out = append(out, abs)
	}
	return out, nil
}

func appendUnique(list []string, values ...string) []string {
	seen := make(map[string]bool, len(list))
	for _, v := range list {
		seen[v] = true
	}
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			list = append(list, v)
		}
	}
	return list
}
