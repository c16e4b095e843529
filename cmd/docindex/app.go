package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docindex/internal/chunker"
	"github.com/hyperjump/docindex/internal/config"
	"github.com/hyperjump/docindex/internal/embedding"
	"github.com/hyperjump/docindex/internal/indexer"
	"github.com/hyperjump/docindex/internal/ingest"
	"github.com/hyperjump/docindex/internal/keyword"
	"github.com/hyperjump/docindex/internal/search"
	"github.com/hyperjump/docindex/internal/source"
	"github.com/hyperjump/docindex/internal/storage"
	"github.com/hyperjump/docindex/internal/tokenizer"
	"github.com/hyperjump/docindex/pkg/utils"
)

const mockDimensions = 256

// feature selects the optional components an app opens.
type feature int

const (
	// withSources opens the file source, the ledger and the syncer. It implies withKeywords.
	withSources feature = 1 << iota
	// withEmbeddings fails early when the embeddings provider cannot be built.
	withEmbeddings
	// withKeywords opens the keyword index when it is enabled.
	withKeywords
)

// app holds the components built from a config.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	tok        tokenizer.Tokenizer
	index      *indexer.Index
	source     *source.FileSource
	ledger     *storage.Ledger
	keywords   *keyword.Index
	syncer     *ingest.Syncer
	engine     *search.Engine
	builder    *search.ContextBuilder
}

// newApp loads the config and builds the index with the requested features.
func newApp(opts *rootOptions, features feature) (*app, error) {
	cfg, path, _, err := opts.loadConfig(false)
	if err != nil {
		return nil, err
	}
	if opts.debug {
		cfg.Debug = true
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a := &app{cfg: cfg, configPath: path, logger: logger}
	if err := a.init(features); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(features feature) error {
	cfg := a.cfg
	tok, err := tokenizer.New(cfg.Tokenizer.Type, cfg.Tokenizer.Encoding)
	if err != nil {
		return err
	}
	a.tok = tok

	provider, err := newProvider(&cfg.Embedding, a.logger)
	if err != nil {
		if features&withEmbeddings != 0 {
			return err
		}
		provider = unavailableProvider{err: err}
	}
	a.index, err = indexer.New(cfg.Index.Folder, provider, tok,
		indexer.WithLogger(a.logger),
		indexer.WithChunking(chunker.Config{
			ChunkSize:      cfg.Chunking.ChunkSize,
			ChunkOverlap:   cfg.Chunking.ChunkOverlap,
			KeepSeparators: cfg.Chunking.KeepSeparatorsOrDefault(),
		}),
	)
	if err != nil {
		return err
	}
	a.engine = search.NewEngine(a.index, tok, search.WithLogger(a.logger))
	a.builder = search.NewContextBuilder(a.index, tok, search.ContextConfig{
		MaxDocuments: cfg.Context.MaxDocuments,
		MaxChunks:    cfg.Context.MaxChunks,
	}, search.WithLogger(a.logger))

	if features&(withSources|withKeywords) != 0 && cfg.Keyword.EnabledOrDefault() {
		a.keywords, err = keyword.Open(cfg.Keyword.Path, keyword.WithLogger(a.logger))
		if err != nil {
			return err
		}
	}
	if features&withSources == 0 {
		return nil
	}
	a.source = source.New(source.Config{
		Extensions:  cfg.Sources.Extensions,
		IgnoreDirs:  cfg.Sources.IgnoreDirs,
		Exclude:     a.excluded(),
		MaxFileSize: cfg.Sources.MaxFileSize,
	}, source.WithLogger(a.logger))

	syncOpts := []ingest.Option{ingest.WithLogger(a.logger)}
	if cfg.Ledger.EnabledOrDefault() {
		a.ledger, err = storage.NewLedger(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		syncOpts = append(syncOpts, ingest.WithLedger(a.ledger))
	}
	if a.keywords != nil {
		syncOpts = append(syncOpts, ingest.WithKeywordIndex(a.keywords))
	}
	a.syncer, err = ingest.NewSyncer(a.index, a.source, cfg.Sources.Roots, syncOpts...)
	return err
}

// excluded lists the files docindex writes itself, which are never indexed.
func (a *app) excluded() []string {
	out := []string{a.cfg.Index.Folder, a.configPath}
	if p := a.cfg.Ledger.Path; p != "" {
		out = append(out, p, p+"-wal", p+"-shm")
	}
	if p := a.cfg.Keyword.Path; p != "" {
		out = append(out, p)
	}
	return out
}

// requireIndex fails when the index has not been created.
func (a *app) requireIndex() error {
	if !a.index.IsCatalogCreated() {
		return fmt.Errorf("no index at %s; run 'docindex create' first", a.cfg.Index.Folder)
	}
	return nil
}

// requireKeywords fails when the keyword index is disabled.
func (a *app) requireKeywords() error {
	if a.keywords == nil {
		return fmt.Errorf("keyword index is disabled; set keyword.enabled in %s", a.configPath)
	}
	return nil
}

func (a *app) Close() {
	if a.keywords != nil {
		if err := a.keywords.Close(); err != nil {
			a.logger.Warn("failed to close keyword index", zap.Error(err))
		}
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn("failed to close ledger", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// newProvider builds the embeddings provider named by cfg.Type, wrapped in a cache when CacheSize > 0.
func newProvider(cfg *config.EmbeddingConfig, logger *zap.Logger) (embedding.Provider, error) {
	var p embedding.Provider
	if cfg.Type == "mock" {
		dims := cfg.Dimensions
		if dims <= 0 {
			dims = mockDimensions
		}
		p = embedding.NewMock(dims, cfg.MaxTokens)
	} else {
		retry := make([]time.Duration, 0, len(cfg.RetryDelaysMs))
		for _, ms := range cfg.RetryDelaysMs {
			retry = append(retry, time.Duration(ms)*time.Millisecond)
		}
		client, err := embedding.NewClient(embedding.ClientConfig{
			Type:              embedding.ClientType(cfg.Type),
			APIKey:            cfg.APIKey(),
			Endpoint:          cfg.Endpoint,
			Model:             cfg.Model,
			Organization:      cfg.Organization,
			AzureDeployment:   cfg.AzureDeployment,
			AzureAPIVersion:   cfg.AzureAPIVersion,
			Dimensions:        cfg.Dimensions,
			MaxTokens:         cfg.MaxTokens,
			RetrySchedule:     retry,
			RequestsPerSecond: cfg.RequestsPerSec,
			Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
			LogRequests:       cfg.LogRequests,
		}, embedding.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings client: %w", err)
		}
		p = client
	}
	if cfg.CacheSize > 0 {
		p = embedding.NewCached(p, cfg.CacheSize)
	}
	return p, nil
}

// unavailableProvider stands in for a provider that could not be built, for commands
// that never embed.
type unavailableProvider struct {
	err error
}

func (u unavailableProvider) CreateEmbeddings(ctx context.Context, inputs []string) (*embedding.Response, error) {
	return nil, u.err
}

func (u unavailableProvider) MaxTokens() int {
	return 8000
}
