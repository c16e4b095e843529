// Package ingest keeps the document index in step with files on disk.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docindex/internal/fileid"
	"github.com/hyperjump/docindex/internal/indexer"
	"github.com/hyperjump/docindex/internal/keyword"
	"github.com/hyperjump/docindex/internal/models"
	"github.com/hyperjump/docindex/internal/source"
	"github.com/hyperjump/docindex/internal/storage"
)

// Metadata keys stored with every file document.
const (
	MetaSource  = "source"
	MetaDocType = "docType"
)

// Report summarizes a sync.
type Report struct {
	Indexed   int           `json:"indexed"`
	Unchanged int           `json:"unchanged"`
	Removed   int           `json:"removed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration_ns"`
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Syncer) {
		s.logger = l
	}
}

// WithLedger records fingerprints of indexed files so unchanged files are skipped.
func WithLedger(l *storage.Ledger) Option {
	return func(s *Syncer) {
		s.ledger = l
	}
}

// WithKeywordIndex mirrors every ingested and removed file into a keyword index.
func WithKeywordIndex(k *keyword.Index) Option {
	return func(s *Syncer) {
		s.keywords = k
	}
}

// Syncer indexes the files under a set of roots.
type Syncer struct {
	index    *indexer.Index
	source   *source.FileSource
	ledger   *storage.Ledger
	keywords *keyword.Index
	roots    []string
	logger   *zap.Logger

	// mu serializes full syncs with single-file updates.
	mu sync.Mutex
}

// NewSyncer returns a syncer for roots. Roots are made absolute.
func NewSyncer(index *indexer.Index, src *source.FileSource, roots []string, opts ...Option) (*Syncer, error) {
	s := &Syncer{index: index, source: src, logger: zap.NewNop()}
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("%w: source %q: %w", models.ErrConfig, r, err)
		}
		s.roots = append(s.roots, abs)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Roots returns the absolute source roots.
func (s *Syncer) Roots() []string {
	return append([]string(nil), s.roots...)
}

// Rebuild recreates the index and ingests every file under the roots.
func (s *Syncer) Rebuild(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.CreateIndex(true); err != nil {
		return nil, err
	}
	if s.ledger != nil {
		if err := s.ledger.Reset(ctx); err != nil {
			return nil, fmt.Errorf("%w: reset ledger: %w", models.ErrStorage, err)
		}
	}
	if s.keywords != nil {
		if err := s.keywords.Reset(); err != nil {
			return nil, err
		}
	}
	return s.sync(ctx, true)
}

// Sync ingests new and changed files and removes documents whose files are gone.
func (s *Syncer) Sync(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sync(ctx, false)
}

func (s *Syncer) sync(ctx context.Context, force bool) (*Report, error) {
	start := time.Now()
	report := &Report{}
	seen := make(map[string]bool)
	for _, root := range s.roots {
		_, err := s.source.Walk(ctx, root, func(f *source.File) error {
			seen[f.URI] = true
			changed, err := s.ingest(ctx, f, force)
			switch {
			case err != nil && ctx.Err() != nil:
				return ctx.Err()
			case err != nil:
				s.logger.Warn("failed to index file", zap.String("uri", f.URI), zap.Error(err))
				report.Failed++
			case changed:
				report.Indexed++
			default:
				report.Unchanged++
			}
			return nil
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}
		if err != nil {
			s.logger.Warn("failed to walk source", zap.String("root", root), zap.Error(err))
			report.Failed++
		}
	}

	docs, err := s.index.ListDocuments()
	if err != nil {
		return report, err
	}
	for _, doc := range docs {
		if seen[doc.URI] || !s.underRoot(doc.URI) {
			continue
		}
		if err := s.remove(ctx, doc.URI); err != nil {
			return report, err
		}
		report.Removed++
	}
	report.Duration = time.Since(start)
	s.logger.Info("sync completed",
		zap.Int("indexed", report.Indexed),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("removed", report.Removed),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// IndexFile ingests a single file. It reports false when the file is ignored or unchanged.
func (s *Syncer) IndexFile(ctx context.Context, path string) (bool, error) {
	f, err := s.source.Read(path)
	if errors.Is(err, source.ErrSkipped) {
		s.logger.Debug("skipping file", zap.String("path", path), zap.Error(err))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingest(ctx, f, false)
}

// RemoveFile removes the document for path and, when path was a directory, every document below it.
func (s *Syncer) RemoveFile(ctx context.Context, path string) (int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	uri := fileid.URI(abs)
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.index.ListDocuments()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, doc := range docs {
		if !within(doc.URI, uri) {
			continue
		}
		if err := s.remove(ctx, doc.URI); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ingest upserts f unless the ledger shows the same content is already indexed.
func (s *Syncer) ingest(ctx context.Context, f *source.File, force bool) (bool, error) {
	fingerprint := fileid.Fingerprint(f.Text)
	if !force && s.ledger != nil {
		entry, err := s.ledger.Get(ctx, f.URI)
		if err != nil {
			return false, fmt.Errorf("%w: ledger: %w", models.ErrStorage, err)
		}
		if entry != nil && entry.Fingerprint == fingerprint {
			id, ok, err := s.index.GetDocumentID(f.URI)
			if err != nil {
				return false, err
			}
			if ok && id == entry.DocumentID {
				s.logger.Debug("skipping unchanged file", zap.String("uri", f.URI))
				return false, nil
			}
		}
	}

	doc, err := s.index.UpsertDocument(ctx, f.URI, f.Text, f.DocType, models.Metadata{
		MetaSource:  models.String("file"),
		MetaDocType: models.String(f.DocType),
	})
	if err != nil {
		return false, err
	}
	if s.keywords != nil {
		if err := s.keywords.Upsert(ctx, f.URI, f.Text); err != nil {
			return true, err
		}
	}
	if s.ledger != nil {
		err := s.ledger.Put(ctx, &storage.LedgerEntry{
			URI:         f.URI,
			DocumentID:  doc.ID,
			Fingerprint: fingerprint,
			Size:        f.Size,
			ModTime:     f.ModTime,
			IndexedAt:   time.Now(),
		})
		if err != nil {
			return true, fmt.Errorf("%w: ledger: %w", models.ErrStorage, err)
		}
	}
	s.logger.Debug("file indexed", zap.String("uri", f.URI), zap.String("id", doc.ID))
	return true, nil
}

func (s *Syncer) remove(ctx context.Context, uri string) error {
	if err := s.index.DeleteDocument(ctx, uri); err != nil {
		return err
	}
	if s.keywords != nil {
		if err := s.keywords.Delete(ctx, uri); err != nil {
			return err
		}
	}
	if s.ledger != nil {
		if err := s.ledger.Delete(ctx, uri); err != nil {
			return fmt.Errorf("%w: ledger: %w", models.ErrStorage, err)
		}
	}
	s.logger.Debug("file removed", zap.String("uri", uri))
	return nil
}

func (s *Syncer) underRoot(uri string) bool {
	for _, root := range s.roots {
		if within(uri, fileid.URI(root)) {
			return true
		}
	}
	return false
}

// within reports whether uri equals base or lies below it.
func within(uri, base string) bool {
	return uri == base || strings.HasPrefix(uri, strings.TrimSuffix(base, "/")+"/")
}
