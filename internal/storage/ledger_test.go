package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestLedger_CRUD(t *testing.T) {
	dir := t.TempDir()
	ledger, err := NewLedger(filepath.Join(dir, "sub", "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()
	ctx := context.Background()

	got, err := ledger.Get(ctx, "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected no entry, got %+v", got)
	}

	mtime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	entry := &LedgerEntry{URI: "a.txt", DocumentID: "doc1", Fingerprint: "abc", Size: 10, ModTime: mtime}
	if err := ledger.Put(ctx, entry); err != nil {
		t.Fatal(err)
	}
	if entry.IndexedAt.IsZero() {
		t.Error("IndexedAt should be set")
	}

	got, err = ledger.Get(ctx, "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.DocumentID != "doc1" || got.Fingerprint != "abc" || got.Size != 10 {
		t.Fatalf("got %+v", got)
	}
	if !got.ModTime.Equal(mtime) {
		t.Errorf("ModTime = %v, want %v", got.ModTime, mtime)
	}

	entry.DocumentID = "doc2"
	entry.Fingerprint = "def"
	if err := ledger.Put(ctx, entry); err != nil {
		t.Fatal(err)
	}
	got, _ = ledger.Get(ctx, "a.txt")
	if got.DocumentID != "doc2" || got.Fingerprint != "def" {
		t.Errorf("upsert not applied: %+v", got)
	}

	if err := ledger.Put(ctx, &LedgerEntry{URI: "b.txt", DocumentID: "doc3", Fingerprint: "x", ModTime: mtime}); err != nil {
		t.Fatal(err)
	}
	list, err := ledger.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].URI != "a.txt" || list[1].URI != "b.txt" {
		t.Errorf("List = %+v", list)
	}

	if err := ledger.Delete(ctx, "a.txt"); err != nil {
		t.Fatal(err)
	}
	n, err := ledger.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}

	if err := ledger.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ = ledger.Count(ctx)
	if n != 0 {
		t.Errorf("Count after reset = %d", n)
	}
}
