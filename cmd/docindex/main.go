// Package main is the docindex CLI entry point.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperjump/docindex/internal/cli"
	"github.com/hyperjump/docindex/internal/config"
)

var version = "dev"

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	debug      bool
	output     string
}

func (o *rootOptions) format() (cli.OutputFormat, error) {
	return cli.ParseFormat(o.output)
}

// resolveConfigPath returns the config file to use and whether it exists.
// Without --config, docindex.yaml in the working directory is used.
func (o *rootOptions) resolveConfigPath() (string, bool, error) {
	path := o.configPath
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", false, err
		}
		path = filepath.Join(cwd, config.DefaultFile)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return abs, false, nil
		}
		return "", false, err
	}
	return abs, true, nil
}

// loadConfig loads the config file, or the defaults rooted at the config file's
// directory when it does not exist. An explicit --config must exist unless allowMissing.
// It returns the path the config saves to and whether the file existed.
func (o *rootOptions) loadConfig(allowMissing bool) (*config.Config, string, bool, error) {
	path, exists, err := o.resolveConfigPath()
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		cfg, err := config.Load(path)
		return cfg, path, true, err
	}
	if o.configPath != "" && !allowMissing {
		return nil, "", false, fmt.Errorf("config file %s not found", path)
	}
	cfg, err := config.Default(filepath.Dir(path))
	return cfg, path, false, err
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "docindex",
		Short: "Local semantic document index",
		Long: `docindex chunks and embeds local documents into an on-disk vector index
and renders the best matching sections for a query or a prompt context.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (default ./"+config.DefaultFile+")")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(
		newCreateCmd(opts),
		newAddCmd(opts),
		newRebuildCmd(opts),
		newSyncCmd(opts),
		newDeleteCmd(opts),
		newUpsertCmd(opts),
		newRemoveCmd(opts),
		newQueryCmd(opts),
		newContextCmd(opts),
		newFindCmd(opts),
		newListCmd(opts),
		newStatsCmd(opts),
		newPruneCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
