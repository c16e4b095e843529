// Package server provides the HTTP API for docindex.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/docindex/internal/config"
	"github.com/hyperjump/docindex/internal/indexer"
	"github.com/hyperjump/docindex/internal/ingest"
	"github.com/hyperjump/docindex/internal/keyword"
	"github.com/hyperjump/docindex/internal/search"
)

const defaultContextTokens = 2000

// Option configures a Server.
type Option func(*Server)

// WithSyncer enables POST /api/v1/sync.
func WithSyncer(s *ingest.Syncer) Option {
	return func(srv *Server) {
		srv.syncer = s
	}
}

// WithKeywordIndex enables GET /api/v1/find and keeps the keyword index in step with
// documents upserted or deleted through the API.
func WithKeywordIndex(k *keyword.Index) Option {
	return func(srv *Server) {
		srv.keywords = k
	}
}

// WithContextTokens sets the budget used when a context request has no max_tokens.
func WithContextTokens(n int) Option {
	return func(srv *Server) {
		if n > 0 {
			srv.contextTokens = n
		}
	}
}

// Server is the HTTP server for the docindex API.
type Server struct {
	index         *indexer.Index
	engine        *search.Engine
	builder       *search.ContextBuilder
	syncer        *ingest.Syncer
	keywords      *keyword.Index
	contextTokens int
	config        *config.ServerConfig
	logger        *zap.Logger
	server        *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	idx *indexer.Index,
	engine *search.Engine,
	builder *search.ContextBuilder,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		index:         idx,
		engine:        engine,
		builder:       builder,
		contextTokens: defaultContextTokens,
		config:        cfg,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Post("/context", s.handleContext)
		r.Get("/documents", s.handleGetDocuments)
		r.Post("/documents", s.handleUpsertDocument)
		r.Delete("/documents", s.handleDeleteDocument)
		r.Get("/stats", s.handleStats)
		r.Post("/sync", s.handleSync)
		r.Get("/find", s.handleFind)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
