package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/docindex/internal/server"
	"github.com/hyperjump/docindex/internal/watcher"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		host      string
		port      int
		watch     bool
		syncFirst bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts, withSources|withEmbeddings)
			if err != nil {
				return err
			}
			defer a.Close()
			if host != "" {
				a.cfg.Server.Host = host
			}
			if port != 0 {
				a.cfg.Server.Port = port
			}
			if !a.index.IsCatalogCreated() {
				if err := a.index.CreateIndex(false); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if syncFirst {
				report, err := a.syncer.Sync(ctx)
				if err != nil {
					return err
				}
				a.logger.Info("initial sync done",
					zap.Int("indexed", report.Indexed),
					zap.Int("removed", report.Removed),
					zap.Int("failed", report.Failed))
			}
			if watch {
				w := a.newWatcher()
				if err := w.Start(ctx); err != nil {
					return err
				}
				defer w.Stop()
			}

			srvOpts := []server.Option{
				server.WithSyncer(a.syncer),
				server.WithContextTokens(a.cfg.Context.MaxTokens),
			}
			if a.keywords != nil {
				srvOpts = append(srvOpts, server.WithKeywordIndex(a.keywords))
			}
			srv := server.NewServer(a.index, a.engine, a.builder, &a.cfg.Server, a.logger, srvOpts...)
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s:%d\n", a.cfg.Server.Host, a.cfg.Server.Port)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-index source files as they change")
	cmd.Flags().BoolVar(&syncFirst, "sync", false, "sync sources before serving")
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var noSync bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync the sources, then re-index files as they change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts, withSources|withEmbeddings)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !a.index.IsCatalogCreated() {
				if err := a.index.CreateIndex(false); err != nil {
					return err
				}
			}
			if !noSync {
				report, err := a.syncer.Sync(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Synced: indexed %d, unchanged %d, removed %d, failed %d\n",
					report.Indexed, report.Unchanged, report.Removed, report.Failed)
			}

			w := a.newWatcher()
			if err := w.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %v\n", w.Directories())
			<-w.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip the initial sync")
	return cmd
}

func (a *app) newWatcher() *watcher.Watcher {
	return watcher.NewWatcher(a.syncer.Roots(), a.cfg.Watch.RecursiveOrDefault(), a.syncer,
		watcher.WithLogger(a.logger),
		watcher.WithDebounce(time.Duration(a.cfg.Watch.DebounceMs)*time.Millisecond),
		watcher.WithFilter(a.source),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("docindex version %s\n", version)
		},
	}
}
