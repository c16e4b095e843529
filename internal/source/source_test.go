package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"go.uber.org/zap"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDocType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/a/main.go", "go"},
		{"/a/README.MD", "md"},
		{"/a/Makefile", NoExtension},
		{"archive.tar.gz", "gz"},
	}
	for _, tt := range tests {
		if got := DocType(tt.path); got != tt.want {
			t.Errorf("DocType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestIgnored(t *testing.T) {
	dir := t.TempDir()
	s := New(Config{Exclude: []string{filepath.Join(dir, ".docindex")}})
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(dir, "main.go"), false},
		{filepath.Join(dir, "Makefile"), false},
		{filepath.Join(dir, "logo.PNG"), true},
		{filepath.Join(dir, "release.zip"), true},
		{filepath.Join(dir, ".DS_Store"), true},
		{filepath.Join(dir, "Thumbs.db"), true},
		{filepath.Join(dir, "notes.txt~"), true},
		{filepath.Join(dir, ".main.go.swp"), true},
		{filepath.Join(dir, "node_modules", "lib", "index.js"), true},
		{filepath.Join(dir, ".git", "config"), true},
		{filepath.Join(dir, "vendored.go"), false},
		{filepath.Join(dir, ".docindex", "index.json"), true},
		{filepath.Join(dir, ".docindexer", "notes.txt"), false},
	}
	for _, tt := range tests {
		if got := s.Ignored(tt.path); got != tt.want {
			t.Errorf("Ignored(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSkipDir(t *testing.T) {
	dir := t.TempDir()
	s := New(Config{Exclude: []string{filepath.Join(dir, ".docindex")}})
	for path, want := range map[string]bool{
		filepath.Join(dir, "src"):              false,
		filepath.Join(dir, "node_modules"):     true,
		filepath.Join(dir, "a", ".git"):        true,
		filepath.Join(dir, ".docindex"):        true,
		filepath.Join(dir, ".docindex", "sub"): true,
	} {
		if got := s.SkipDir(path); got != want {
			t.Errorf("SkipDir(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestIgnored_extensionAllowList(t *testing.T) {
	s := New(Config{Extensions: []string{".go", "MD"}})
	if s.Ignored("/src/main.go") || s.Ignored("/src/README.md") {
		t.Error("allowed extensions should not be ignored")
	}
	if !s.Ignored("/src/main.py") || !s.Ignored("/src/Makefile") {
		t.Error("other extensions should be ignored")
	}
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.go")
	writeFile(t, path, []byte("package hello\n"))

	f, err := New(Config{}).Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Text != "package hello\n" || f.DocType != "go" || f.Size != 14 {
		t.Errorf("got %+v", f)
	}
	if f.URI != filepath.ToSlash(path) {
		t.Errorf("URI=%q", f.URI)
	}
}

func TestRead_skips(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "data.dat")
	writeFile(t, binary, []byte{'a', 0, 'b'})
	big := filepath.Join(dir, "big.txt")
	writeFile(t, big, make([]byte, 2048))
	image := filepath.Join(dir, "a.png")
	writeFile(t, image, []byte("png"))

	s := New(Config{MaxFileSize: 1024})
	for _, path := range []string{binary, big, image, dir} {
		if _, err := s.Read(path); !errors.Is(err, ErrSkipped) {
			t.Errorf("Read(%s): expected ErrSkipped, got %v", path, err)
		}
	}
	if _, err := s.Read(filepath.Join(dir, "missing.txt")); err == nil || errors.Is(err, ErrSkipped) {
		t.Errorf("missing file should be a plain error, got %v", err)
	}
}

func TestWalk(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("alpha"))
	writeFile(t, filepath.Join(dir, "sub", "b.md"), []byte("beta"))
	writeFile(t, filepath.Join(dir, "sub", "c"), []byte("gamma"))
	writeFile(t, filepath.Join(dir, "node_modules", "x.js"), []byte("ignored"))
	writeFile(t, filepath.Join(dir, "img.jpg"), []byte("ignored"))
	writeFile(t, filepath.Join(dir, "blob.dat"), []byte{0, 1, 2})
	writeFile(t, filepath.Join(dir, ".docindex", "catalog.json"), []byte("{}"))

	s := New(Config{Exclude: []string{filepath.Join(dir, ".docindex")}}, WithLogger(zap.NewNop()))
	var got []string
	n, err := s.Walk(context.Background(), dir, func(f *File) error {
		rel, _ := filepath.Rel(dir, f.Path)
		got = append(got, filepath.ToSlash(rel)+":"+f.DocType+":"+f.Text)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(got)
	want := []string{"a.txt:txt:alpha", "sub/b.md:md:beta", "sub/c:none:gamma"}
	if n != len(want) || len(got) != len(want) {
		t.Fatalf("n=%d got=%v, want %v", n, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d]=%q, want %q", i, got[i], want[i])
		}
	}
}

func TestWalk_singleFileAndErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "only.txt")
	writeFile(t, path, []byte("one"))
	s := New(Config{})

	n, err := s.Walk(context.Background(), path, func(f *File) error { return nil })
	if err != nil || n != 1 {
		t.Errorf("single file root: n=%d err=%v", n, err)
	}

	if _, err := s.Walk(context.Background(), filepath.Join(dir, "missing"), func(*File) error { return nil }); err == nil {
		t.Error("expected error for missing root")
	}

	stop := errors.New("stop")
	if _, err := s.Walk(context.Background(), dir, func(*File) error { return stop }); !errors.Is(err, stop) {
		t.Errorf("callback error should stop the walk, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Walk(ctx, dir, func(*File) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
