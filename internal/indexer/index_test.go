package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/docindex/internal/chunker"
	"github.com/hyperjump/docindex/internal/embedding"
	"github.com/hyperjump/docindex/internal/models"
	"github.com/hyperjump/docindex/internal/storage"
	"github.com/hyperjump/docindex/internal/tokenizer"
	"github.com/hyperjump/docindex/internal/vector"
	"go.uber.org/zap"
)

func newTestIndex(t *testing.T, opts ...Option) (*Index, *embedding.Mock) {
	t.Helper()
	mock := embedding.NewMock(64, 0)
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	x, err := New(filepath.Join(t.TempDir(), "index"), mock, tokenizer.NewWord(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := x.CreateIndex(false); err != nil {
		t.Fatal(err)
	}
	return x, mock
}

func readDiskCatalog(t *testing.T, x *Index) *Catalog {
	t.Helper()
	var c Catalog
	if err := storage.ReadJSON(filepath.Join(x.Folder(), CatalogFile), &c); err != nil {
		t.Fatal(err)
	}
	return &c
}

func assertCatalogConsistent(t *testing.T, c *Catalog) {
	t.Helper()
	if c.Count != len(c.URIToID) || c.Count != len(c.IDToURI) {
		t.Fatalf("catalog count %d, uriToId %d, idToUri %d", c.Count, len(c.URIToID), len(c.IDToURI))
	}
	for uri, id := range c.URIToID {
		if c.IDToURI[id] != uri {
			t.Fatalf("catalog maps are not inverses for %s", uri)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(t.TempDir(), nil, tokenizer.NewWord()); !errors.Is(err, models.ErrConfig) {
		t.Errorf("expected ErrConfig without provider, got %v", err)
	}
	if _, err := New(t.TempDir(), embedding.NewMock(8, 0), tokenizer.NewWord(),
		WithChunking(chunker.Config{ChunkSize: 10, ChunkOverlap: 20})); !errors.Is(err, models.ErrConfig) {
		t.Errorf("expected ErrConfig for bad chunking, got %v", err)
	}
}

func TestIndex_UpsertAndDelete(t *testing.T) {
	x, _ := newTestIndex(t)
	ctx := context.Background()

	doc, err := x.UpsertDocument(ctx, "f.txt", "hello world", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	id, ok, err := x.GetDocumentID("f.txt")
	if err != nil || !ok || id != doc.ID {
		t.Fatalf("GetDocumentID = %q, %v, %v", id, ok, err)
	}
	uri, ok, _ := x.GetDocumentURI(doc.ID)
	if !ok || uri != "f.txt" {
		t.Errorf("GetDocumentURI = %q", uri)
	}
	text, err := doc.LoadText()
	if err != nil || text != "hello world" {
		t.Errorf("LoadText = %q, %v", text, err)
	}
	if doc.HasMetadata() {
		t.Error("no metadata was given")
	}

	if err := x.DeleteDocument(ctx, "f.txt"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := x.GetDocumentID("f.txt"); ok {
		t.Error("document should be gone from the catalog")
	}
	items, _ := x.Store().ListItemsByMetadata(models.Metadata{models.MetaDocumentID: models.String(doc.ID)})
	if len(items) != 0 {
		t.Errorf("%d chunk items remain", len(items))
	}
	if storage.Exists(filepath.Join(x.Folder(), doc.ID+".txt")) {
		t.Error("text blob should be removed")
	}
	assertCatalogConsistent(t, readDiskCatalog(t, x))

	if err := x.DeleteDocument(ctx, "never-indexed.txt"); err != nil {
		t.Errorf("deleting an unknown uri should be a no-op: %v", err)
	}
}

func TestIndex_UpsertIsIdempotent(t *testing.T) {
	x, _ := newTestIndex(t)
	ctx := context.Background()
	text := "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"

	first, err := x.UpsertDocument(ctx, "main.go", text, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	before := readDiskCatalog(t, x).Count
	second, err := x.UpsertDocument(ctx, "main.go", text, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	cat := readDiskCatalog(t, x)
	assertCatalogConsistent(t, cat)
	if cat.Count != before || cat.Count != 1 {
		t.Errorf("count changed: %d -> %d", before, cat.Count)
	}
	if cat.URIToID["main.go"] != second.ID {
		t.Error("catalog should point at the new document")
	}
	old, _ := x.Store().ListItemsByMetadata(models.Metadata{models.MetaDocumentID: models.String(first.ID)})
	if len(old) != 0 {
		t.Errorf("%d items of the replaced document remain", len(old))
	}
	if storage.Exists(filepath.Join(x.Folder(), first.ID+".txt")) {
		t.Error("replaced text blob should be removed")
	}
}

func TestIndex_ChunkMetadata(t *testing.T) {
	x, _ := newTestIndex(t, WithChunking(chunker.Config{ChunkSize: 4, KeepSeparators: true}))
	ctx := context.Background()
	text := "one two three four\n\nfive six seven eight\n\nnine ten"
	md := models.Metadata{"lang": models.String("en"), models.MetaDocumentID: models.String("spoofed")}
	doc, err := x.UpsertDocument(ctx, "notes.md", text, "", md)
	if err != nil {
		t.Fatal(err)
	}
	items, _ := x.Store().ListItemsByMetadata(models.Metadata{models.MetaDocumentID: models.String(doc.ID)})
	if len(items) < 3 {
		t.Fatalf("expected several chunks, got %d", len(items))
	}
	for _, it := range items {
		start, ok1 := it.Metadata.Int(models.MetaStartPos)
		end, ok2 := it.Metadata.Int(models.MetaEndPos)
		if !ok1 || !ok2 || start < 0 || end >= len(text) || end < start {
			t.Errorf("bad positions %v", it.Metadata)
		}
		if it.Metadata.Str("lang") != "en" {
			t.Error("caller metadata should be copied onto chunks")
		}
	}
	got, err := doc.LoadMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if got.Str("lang") != "en" || !doc.HasMetadata() {
		t.Errorf("LoadMetadata = %v", got)
	}
	n, err := doc.Length()
	if err != nil || n != 10 {
		t.Errorf("Length = %d, %v", n, err)
	}
}

func TestIndex_EmbeddingFailureRollsBack(t *testing.T) {
	x, mock := newTestIndex(t)
	ctx := context.Background()
	if _, err := x.UpsertDocument(ctx, "a.txt", "alpha beta", "", nil); err != nil {
		t.Fatal(err)
	}
	mock.Fail(embedding.StatusError, "boom")
	_, err := x.UpsertDocument(ctx, "a.txt", "gamma delta", "", nil)
	if !errors.Is(err, models.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	mock.Fail(embedding.StatusSuccess, "")

	doc, err := x.GetDocument("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	text, _ := doc.LoadText()
	if text != "alpha beta" {
		t.Errorf("previous version should survive, got %q", text)
	}
	if x.Store().InUpdate() {
		t.Error("no update should be left open")
	}
}

func TestIndex_CommitFailureRollsBack(t *testing.T) {
	x, _ := newTestIndex(t)
	ctx := context.Background()
	if _, err := x.UpsertDocument(ctx, "a.txt", "alpha beta", "", nil); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(x.Folder())
	before := len(entries)
	// a NUL byte in the blob folder makes every blob write fail
	x.blobs = storage.NewBlobs(filepath.Join(x.Folder(), "bad\x00dir"))

	_, err := x.UpsertDocument(ctx, "b.txt", "gamma delta", "", nil)
	if !errors.Is(err, models.ErrIngest) {
		t.Fatalf("expected ErrIngest, got %v", err)
	}
	x.blobs = storage.NewBlobs(x.Folder())
	entries, _ = os.ReadDir(x.Folder())
	if len(entries) != before {
		t.Errorf("files left behind: %d -> %d", before, len(entries))
	}
	if _, ok, _ := x.GetDocumentID("b.txt"); ok {
		t.Error("failed document must not be cataloged")
	}
	items, _ := x.Store().ListItems()
	for _, it := range items {
		if uri, _, _ := x.GetDocumentURI(it.Metadata.Str(models.MetaDocumentID)); uri != "a.txt" {
			t.Errorf("unexpected item for %q", uri)
		}
	}
}

func TestIndex_QueryDocuments(t *testing.T) {
	x, _ := newTestIndex(t)
	ctx := context.Background()
	docs := map[string]string{
		"fruit.txt":  "apple banana cherry apple banana",
		"cars.txt":   "engine wheel brake engine wheel",
		"mixed.txt":  "apple engine",
		"colors.txt": "red green blue",
	}
	for uri, text := range docs {
		if _, err := x.UpsertDocument(ctx, uri, text, "", models.Metadata{"kind": models.String(strings.TrimSuffix(uri, ".txt"))}); err != nil {
			t.Fatal(err)
		}
	}

	results, err := x.QueryDocuments(ctx, "apple banana", QueryOptions{MaxDocuments: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].URI != "fruit.txt" {
		t.Errorf("top result = %s", results[0].URI)
	}
	if results[0].Score < results[1].Score {
		t.Error("results should be sorted by score")
	}

	results, err = x.QueryDocuments(ctx, "apple", QueryOptions{Filter: models.Metadata{"kind": models.String("cars")}})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].URI != "cars.txt" {
		t.Errorf("filter not applied: %d results", len(results))
	}
}

func TestIndex_ListDocumentsAndStats(t *testing.T) {
	x, _ := newTestIndex(t)
	ctx := context.Background()
	for _, uri := range []string{"b.txt", "a.txt"} {
		if _, err := x.UpsertDocument(ctx, uri, "some words for "+uri, "", nil); err != nil {
			t.Fatal(err)
		}
	}
	list, err := x.ListDocuments()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].URI != "a.txt" || list[1].URI != "b.txt" {
		t.Fatalf("ListDocuments order wrong")
	}
	for _, r := range list {
		if r.Score != 1.0 || len(r.Chunks) == 0 {
			t.Errorf("%s: score %f, %d chunks", r.URI, r.Score, len(r.Chunks))
		}
	}
	st, err := x.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Version != 1 || st.Documents != 2 || st.Chunks != 2 || st.IndexSize == 0 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestIndex_LoadAndCorruptCatalog(t *testing.T) {
	x, mock := newTestIndex(t)
	ctx := context.Background()
	doc, err := x.UpsertDocument(ctx, "a.txt", "persist me", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	reopened, err := New(x.Folder(), mock, tokenizer.NewWord())
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Loaded() {
		t.Error("a new index should not be loaded yet")
	}
	if err := reopened.Load(); err != nil {
		t.Fatal(err)
	}
	if !reopened.Loaded() {
		t.Error("Load should mark the index loaded")
	}
	if id, ok, _ := reopened.GetDocumentID("a.txt"); !ok || id != doc.ID {
		t.Errorf("reopened index lost the document")
	}

	if err := os.WriteFile(filepath.Join(x.Folder(), CatalogFile), []byte("{oops"), 0644); err != nil {
		t.Fatal(err)
	}
	fresh, _ := New(x.Folder(), mock, tokenizer.NewWord())
	if _, _, err := fresh.GetDocumentID("a.txt"); !errors.Is(err, models.ErrStorage) {
		t.Errorf("expected ErrStorage for corrupt catalog, got %v", err)
	}
}

func TestIndex_PruneOrphans(t *testing.T) {
	x, _ := newTestIndex(t)
	ctx := context.Background()
	if _, err := x.UpsertDocument(ctx, "keep.txt", "keep these words", "", nil); err != nil {
		t.Fatal(err)
	}
	if err := x.blobs.WriteText("stray", "left over"); err != nil {
		t.Fatal(err)
	}
	if _, err := x.Store().InsertItem(models.Item{
		ID:       "orphan-item",
		Vector:   []float32{1},
		Metadata: models.Metadata{models.MetaDocumentID: models.String("ghost")},
	}); err != nil {
		t.Fatal(err)
	}

	pruned, err := x.PruneOrphans()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(pruned, ",") != "ghost,stray" {
		t.Errorf("pruned = %v", pruned)
	}
	if storage.Exists(filepath.Join(x.Folder(), "stray.txt")) {
		t.Error("stray blob should be removed")
	}
	if _, ok, _ := x.Store().GetItem("orphan-item"); ok {
		t.Error("orphan item should be removed")
	}
	if _, ok, _ := x.GetDocumentID("keep.txt"); !ok {
		t.Error("cataloged document must survive")
	}
	if _, err := os.Stat(filepath.Join(x.Folder(), vector.SnapshotFile)); err != nil {
		t.Error("snapshot must survive pruning")
	}
}

func TestFlattenLines(t *testing.T) {
	if got := flattenLines("a\nb\r\nc"); got != "a b c" {
		t.Errorf("flattenLines = %q", got)
	}
}

func TestIndex_StatsMeasuresFolder(t *testing.T) {
	x, _ := newTestIndex(t)
	ctx := context.Background()
	if _, err := x.UpsertDocument(ctx, "a.txt", "alpha beta gamma", "", models.Metadata{"lang": models.String("en")}); err != nil {
		t.Fatal(err)
	}
	want, err := storage.DiskUsageBytes(x.Folder())
	if err != nil {
		t.Fatal(err)
	}
	st, err := x.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.IndexSize != want {
		t.Errorf("IndexSize = %d, want %d", st.IndexSize, want)
	}

	// the loaded catalog still answers when the folder disappears underneath it
	if err := os.RemoveAll(x.Folder()); err != nil {
		t.Fatal(err)
	}
	st, err = x.Stats()
	if err != nil {
		t.Fatalf("Stats on a missing folder: %v", err)
	}
	if st.IndexSize != 0 || st.Documents != 1 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestIndex_EmbedsInSeveralBatches(t *testing.T) {
	mock := embedding.NewMock(64, 5)
	x, err := New(filepath.Join(t.TempDir(), "index"), mock, tokenizer.NewWord(),
		WithLogger(zap.NewNop()), WithChunking(chunker.Config{ChunkSize: 3}))
	if err != nil {
		t.Fatal(err)
	}
	if err := x.CreateIndex(false); err != nil {
		t.Fatal(err)
	}
	text := "alpha beta\ngamma delta epsilon zeta\neta theta iota kappa"
	doc, err := x.UpsertDocument(context.Background(), "greek.txt", text, "", nil)
	if err != nil {
		t.Fatal(err)
	}

	calls, _ := mock.Calls()
	if calls <= 1 {
		t.Errorf("calls = %d, want the chunks split over several requests", calls)
	}
	items, err := x.Store().ListItemsByMetadata(models.Metadata{models.MetaDocumentID: models.String(doc.ID)})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) < 3 {
		t.Fatalf("expected several chunks, got %d", len(items))
	}
	for _, it := range items {
		start, _ := it.Metadata.Int(models.MetaStartPos)
		end, _ := it.Metadata.Int(models.MetaEndPos)
		want := mock.Embed(flattenLines(text[start : end+1]))
		if len(it.Vector) != len(want) {
			t.Fatalf("%s: %d dimensions, want %d", it.ID, len(it.Vector), len(want))
		}
		for i := range want {
			if d := it.Vector[i] - want[i]; d > 1e-6 || d < -1e-6 {
				t.Errorf("%s: vector does not match its chunk %q", it.ID, text[start:end+1])
				break
			}
		}
	}
}
