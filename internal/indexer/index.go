// Package indexer maintains a document index: a catalog of URIs, per-document text blobs
// and chunk embeddings in a vector store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/docindex/internal/chunker"
	"github.com/hyperjump/docindex/internal/embedding"
	"github.com/hyperjump/docindex/internal/models"
	"github.com/hyperjump/docindex/internal/storage"
	"github.com/hyperjump/docindex/internal/tokenizer"
	"github.com/hyperjump/docindex/internal/vector"
)

// DefaultChunking is the chunking used for indexed documents.
func DefaultChunking() chunker.Config {
	return chunker.Config{ChunkSize: 512, ChunkOverlap: 0, KeepSeparators: true}
}

// QueryOptions bounds a document query.
type QueryOptions struct {
	MaxDocuments int
	MaxChunks    int
	Filter       models.Metadata
}

// CatalogStats describes the index contents.
type CatalogStats struct {
	Version   int   `json:"version"`
	Documents int   `json:"documents"`
	Chunks    int   `json:"chunks"`
	IndexSize int64 `json:"index_size"`
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger for the index.
func WithLogger(l *zap.Logger) Option {
	return func(x *Index) {
		x.logger = l
	}
}

// WithChunking overrides DefaultChunking. DocType is chosen per document.
func WithChunking(cfg chunker.Config) Option {
	return func(x *Index) {
		x.chunking = cfg
	}
}

// Index is a document index rooted at a folder.
type Index struct {
	folder   string
	store    *vector.Store
	blobs    *storage.Blobs
	embedder embedding.Provider
	tok      tokenizer.Tokenizer
	chunking chunker.Config
	logger   *zap.Logger

	// updateMu serializes upserts and deletes.
	updateMu sync.Mutex
	catMu    sync.RWMutex
	catalog  *Catalog
}

// New returns an index rooted at folder. Nothing is read until first use.
func New(folder string, embedder embedding.Provider, tok tokenizer.Tokenizer, opts ...Option) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embeddings provider is required", models.ErrConfig)
	}
	if tok == nil {
		return nil, fmt.Errorf("%w: tokenizer is required", models.ErrConfig)
	}
	x := &Index{
		folder:   folder,
		blobs:    storage.NewBlobs(folder),
		embedder: embedder,
		tok:      tok,
		chunking: DefaultChunking(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(x)
	}
	if err := x.chunking.Validate(); err != nil {
		return nil, err
	}
	x.store = vector.NewStore(folder, vector.WithLogger(x.logger))
	return x, nil
}

// Folder returns the index folder.
func (x *Index) Folder() string {
	return x.folder
}

// Tokenizer returns the tokenizer used for chunking and length estimates.
func (x *Index) Tokenizer() tokenizer.Tokenizer {
	return x.tok
}

// Store returns the underlying vector store.
func (x *Index) Store() *vector.Store {
	return x.store
}

// CreateIndex creates an empty store and catalog. With reset an existing index is replaced.
func (x *Index) CreateIndex(reset bool) error {
	x.updateMu.Lock()
	defer x.updateMu.Unlock()
	if err := x.store.CreateStore(reset); err != nil {
		return err
	}
	cat := newCatalog()
	if err := writeCatalog(x.folder, cat); err != nil {
		return err
	}
	x.setCatalog(cat)
	x.logger.Info("index created", zap.String("folder", x.folder))
	return nil
}

// DeleteIndex removes the index folder.
func (x *Index) DeleteIndex() error {
	x.updateMu.Lock()
	defer x.updateMu.Unlock()
	if err := x.store.DeleteStore(); err != nil {
		return err
	}
	x.setCatalog(nil)
	return nil
}

// IsCatalogCreated reports whether the catalog exists on disk.
func (x *Index) IsCatalogCreated() bool {
	return storage.Exists(filepath.Join(x.folder, CatalogFile))
}

// Load reads the snapshot and catalog from disk.
func (x *Index) Load() error {
	if err := x.store.Load(); err != nil {
		return err
	}
	cat, err := readCatalog(x.folder)
	if err != nil {
		return err
	}
	x.setCatalog(cat)
	return nil
}

// Loaded reports whether the catalog and snapshot are held in memory.
func (x *Index) Loaded() bool {
	x.catMu.RLock()
	defer x.catMu.RUnlock()
	return x.catalog != nil && x.store.Loaded()
}

func (x *Index) setCatalog(c *Catalog) {
	x.catMu.Lock()
	x.catalog = c
	x.catMu.Unlock()
}

func (x *Index) getCatalog() (*Catalog, error) {
	x.catMu.RLock()
	c := x.catalog
	x.catMu.RUnlock()
	if c != nil {
		return c, nil
	}
	c, err := readCatalog(x.folder)
	if err != nil {
		return nil, err
	}
	x.setCatalog(c)
	return c, nil
}

// GetDocumentID returns the id of the document indexed under uri.
func (x *Index) GetDocumentID(uri string) (string, bool, error) {
	cat, err := x.getCatalog()
	if err != nil {
		return "", false, err
	}
	id, ok := cat.URIToID[uri]
	return id, ok, nil
}

// GetDocumentURI returns the uri of the document with id.
func (x *Index) GetDocumentURI(id string) (string, bool, error) {
	cat, err := x.getCatalog()
	if err != nil {
		return "", false, err
	}
	uri, ok := cat.IDToURI[id]
	return uri, ok, nil
}

// GetDocument returns the document indexed under uri.
func (x *Index) GetDocument(uri string) (*Document, error) {
	id, ok, err := x.GetDocumentID(uri)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: document %q", models.ErrNotFound, uri)
	}
	return x.newDocument(id, uri), nil
}

// UpsertDocument indexes text under uri, replacing any previous version in the same commit.
// docType selects the separator hierarchy; when empty the uri's extension is used.
func (x *Index) UpsertDocument(ctx context.Context, uri, text, docType string, metadata models.Metadata) (*Document, error) {
	x.updateMu.Lock()
	defer x.updateMu.Unlock()

	cfg := x.chunking
	if docType == "" {
		docType = strings.ToLower(strings.TrimPrefix(filepath.Ext(uri), "."))
	}
	cfg.DocType = docType
	split, err := chunker.New(cfg, x.tok)
	if err != nil {
		return nil, err
	}
	chunks := split.Split(text)

	vectors, err := x.embedChunks(ctx, uri, chunks)
	if err != nil {
		return nil, err
	}

	prev, err := x.getCatalog()
	if err != nil {
		return nil, err
	}
	docID := uuid.NewString()
	next := prev.clone()
	oldID, replaced := next.remove(uri)

	if err := x.store.BeginUpdate(); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", models.ErrIngest, uri, err)
	}
	err = x.stageDocument(docID, oldID, replaced, text, chunks, vectors, metadata)
	if err == nil {
		next.add(uri, docID)
		err = x.commit(prev, next)
	}
	if err != nil {
		x.store.CancelUpdate()
		if rmErr := x.blobs.Remove(docID); rmErr != nil {
			x.logger.Warn("failed to remove staged blobs", zap.String("uri", uri), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("%w: %q: %w", models.ErrIngest, uri, err)
	}

	if replaced {
		if err := x.blobs.Remove(oldID); err != nil {
			x.logger.Warn("failed to remove replaced document blobs", zap.String("uri", uri), zap.Error(err))
		}
	}
	x.logger.Debug("document upserted",
		zap.String("uri", uri),
		zap.String("id", docID),
		zap.Int("chunks", len(chunks)),
		zap.Bool("replaced", replaced),
	)
	return x.newDocument(docID, uri), nil
}

// stageDocument applies the document to the open store update and writes its blobs.
func (x *Index) stageDocument(docID, oldID string, replaced bool, text string, chunks []models.Chunk, vectors [][]float32, metadata models.Metadata) error {
	if replaced {
		if _, err := x.store.DeleteItems(models.Metadata{models.MetaDocumentID: models.String(oldID)}); err != nil {
			return err
		}
	}
	for i, ch := range chunks {
		md := metadata.Clone()
		if md == nil {
			md = make(models.Metadata, 3)
		}
		md[models.MetaDocumentID] = models.String(docID)
		md[models.MetaStartPos] = models.Int(ch.StartPos)
		md[models.MetaEndPos] = models.Int(ch.EndPos)
		if _, err := x.store.InsertItem(models.Item{ID: uuid.NewString(), Vector: vectors[i], Metadata: md}); err != nil {
			return err
		}
	}
	if metadata != nil {
		if err := x.blobs.WriteMetadata(docID, metadata); err != nil {
			return err
		}
	}
	return x.blobs.WriteText(docID, text)
}

// commit writes the catalog, then the snapshot. If the snapshot write fails the previous
// catalog is written back.
func (x *Index) commit(prev, next *Catalog) error {
	if err := writeCatalog(x.folder, next); err != nil {
		return err
	}
	if err := x.store.EndUpdate(); err != nil {
		if rerr := writeCatalog(x.folder, prev); rerr != nil {
			x.logger.Error("failed to restore catalog", zap.Error(rerr))
		}
		return err
	}
	x.setCatalog(next)
	return nil
}

// embedChunks embeds chunk texts in batches that fit the provider's request budget.
func (x *Index) embedChunks(ctx context.Context, uri string, chunks []models.Chunk) ([][]float32, error) {
	var (
		batches [][]string
		batch   []string
		total   int
	)
	limit := x.embedder.MaxTokens()
	for _, ch := range chunks {
		if len(batch) > 0 && total+len(ch.Tokens) > limit {
			batches = append(batches, batch)
			batch = nil
			total = 0
		}
		batch = append(batch, flattenLines(ch.Text))
		total += len(ch.Tokens)
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}

	vectors := make([][]float32, 0, len(chunks))
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %q: %w", models.ErrIngest, uri, err)
		}
		resp, err := x.embedder.CreateEmbeddings(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", models.ErrEmbedding, uri, err)
		}
		if resp.Status != embedding.StatusSuccess {
			return nil, fmt.Errorf("%w: %q: %s: %s", models.ErrEmbedding, uri, resp.Status, resp.Message)
		}
		vecs, err := resp.Vectors(len(b))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", models.ErrEmbedding, uri, err)
		}
		vectors = append(vectors, vecs...)
		x.logger.Debug("embedded batch", zap.String("uri", uri), zap.Int("batch", i), zap.Int("inputs", len(b)))
	}
	return vectors, nil
}

// DeleteDocument removes the document indexed under uri. Unknown uris are ignored.
func (x *Index) DeleteDocument(ctx context.Context, uri string) error {
	x.updateMu.Lock()
	defer x.updateMu.Unlock()

	prev, err := x.getCatalog()
	if err != nil {
		return err
	}
	next := prev.clone()
	docID, ok := next.remove(uri)
	if !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := x.store.BeginUpdate(); err != nil {
		return fmt.Errorf("deleting document %q: %w", uri, err)
	}
	if _, err := x.store.DeleteItems(models.Metadata{models.MetaDocumentID: models.String(docID)}); err != nil {
		x.store.CancelUpdate()
		return fmt.Errorf("deleting document %q: %w", uri, err)
	}
	if err := x.commit(prev, next); err != nil {
		x.store.CancelUpdate()
		return fmt.Errorf("deleting document %q: %w", uri, err)
	}

	if err := x.blobs.RemoveText(docID); err != nil {
		return fmt.Errorf("%w: removing text of %q: %w", models.ErrStorage, uri, err)
	}
	if err := x.blobs.RemoveMetadata(docID); err != nil {
		x.logger.Warn("failed to remove metadata blob", zap.String("uri", uri), zap.Error(err))
	}
	x.logger.Debug("document deleted", zap.String("uri", uri), zap.String("id", docID))
	return nil
}

// QueryDocuments embeds query, finds the closest chunks and groups them by document.
// Documents are ranked by their mean chunk score.
func (x *Index) QueryDocuments(ctx context.Context, query string, opts QueryOptions) ([]*DocumentResult, error) {
	if opts.MaxDocuments <= 0 {
		opts.MaxDocuments = 10
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = 50
	}
	resp, err := x.embedder.CreateEmbeddings(ctx, []string{flattenLines(query)})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", models.ErrEmbedding, err)
	}
	if resp.Status != embedding.StatusSuccess {
		return nil, fmt.Errorf("%w: query: %s: %s", models.ErrEmbedding, resp.Status, resp.Message)
	}
	vecs, err := resp.Vectors(1)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", models.ErrEmbedding, err)
	}

	hits, err := x.store.QueryItems(vecs[0], opts.MaxChunks, opts.Filter)
	if err != nil {
		return nil, err
	}
	cat, err := x.getCatalog()
	if err != nil {
		return nil, err
	}

	var order []string
	grouped := make(map[string][]models.ChunkHit)
	for _, h := range hits {
		id := h.Item.Metadata.Str(models.MetaDocumentID)
		if _, ok := grouped[id]; !ok {
			order = append(order, id)
		}
		grouped[id] = append(grouped[id], h)
	}
	results := make([]*DocumentResult, 0, len(order))
	for _, id := range order {
		uri, ok := cat.IDToURI[id]
		if !ok {
			x.logger.Debug("skipping chunks of uncataloged document", zap.String("id", id))
			continue
		}
		results = append(results, newDocumentResult(x.newDocument(id, uri), grouped[id]))
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > opts.MaxDocuments {
		results = results[:opts.MaxDocuments]
	}
	return results, nil
}

// ListDocuments returns every cataloged document ordered by uri, each chunk scored 1.0.
func (x *Index) ListDocuments() ([]*DocumentResult, error) {
	cat, err := x.getCatalog()
	if err != nil {
		return nil, err
	}
	items, err := x.store.ListItems()
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]models.ChunkHit)
	for _, it := range items {
		id := it.Metadata.Str(models.MetaDocumentID)
		grouped[id] = append(grouped[id], models.ChunkHit{Item: it, Score: 1.0})
	}
	uris := make([]string, 0, len(cat.URIToID))
	for uri := range cat.URIToID {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	results := make([]*DocumentResult, 0, len(uris))
	for _, uri := range uris {
		id := cat.URIToID[uri]
		results = append(results, newDocumentResult(x.newDocument(id, uri), grouped[id]))
	}
	return results, nil
}

// Stats returns the catalog version, document and chunk counts and the folder size on disk.
func (x *Index) Stats() (CatalogStats, error) {
	cat, err := x.getCatalog()
	if err != nil {
		return CatalogStats{}, err
	}
	st, err := x.store.Stats()
	if err != nil {
		return CatalogStats{}, err
	}
	size, err := storage.DiskUsageBytes(x.folder)
	if err != nil {
		return CatalogStats{}, fmt.Errorf("%w: measure index: %w", models.ErrStorage, err)
	}
	return CatalogStats{
		Version:   cat.Version,
		Documents: cat.Count,
		Chunks:    st.ItemCount,
		IndexSize: size,
	}, nil
}

// PruneOrphans removes blobs and chunk items whose document is not in the catalog.
// It returns the orphaned document ids.
func (x *Index) PruneOrphans() ([]string, error) {
	x.updateMu.Lock()
	defer x.updateMu.Unlock()

	cat, err := x.getCatalog()
	if err != nil {
		return nil, err
	}
	orphans := make(map[string]bool)
	ids, err := x.blobs.IDs(CatalogFile, vector.SnapshotFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStorage, err)
	}
	for _, id := range ids {
		if _, ok := cat.IDToURI[id]; !ok && id != "" {
			orphans[id] = true
		}
	}
	items, err := x.store.ListItems()
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		id := it.Metadata.Str(models.MetaDocumentID)
		if _, ok := cat.IDToURI[id]; !ok && id != "" {
			orphans[id] = true
		}
	}
	if len(orphans) == 0 {
		return nil, nil
	}

	out := make([]string, 0, len(orphans))
	for id := range orphans {
		out = append(out, id)
	}
	sort.Strings(out)

	if err := x.store.BeginUpdate(); err != nil {
		return nil, err
	}
	for _, id := range out {
		if _, err := x.store.DeleteItems(models.Metadata{models.MetaDocumentID: models.String(id)}); err != nil {
			x.store.CancelUpdate()
			return nil, err
		}
	}
	if err := x.store.EndUpdate(); err != nil {
		x.store.CancelUpdate()
		return nil, err
	}
	var errs []error
	for _, id := range out {
		errs = append(errs, x.blobs.Remove(id))
	}
	if err := errors.Join(errs...); err != nil {
		return out, fmt.Errorf("%w: %w", models.ErrStorage, err)
	}
	x.logger.Info("pruned orphaned documents", zap.Int("count", len(out)))
	return out, nil
}
