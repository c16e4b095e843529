package fileid

import (
	"strings"
	"testing"
)

func TestURI(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/foo/bar.txt", "/foo/bar.txt"},
		{"/foo/bar/", "/foo/bar"},
		{"/foo/./bar", "/foo/bar"},
		{"a/../b.txt", "b.txt"},
		{"a/b.txt", "a/b.txt"},
	}
	for _, tt := range tests {
		if got := URI(tt.in); got != tt.want {
			t.Errorf("URI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	f1 := Fingerprint("hello world")
	if f1 != Fingerprint("hello world") {
		t.Error("same text should give the same fingerprint")
	}
	if !strings.HasPrefix(f1, fingerprintPrefix) {
		t.Errorf("fingerprint should have prefix %q: %q", fingerprintPrefix, f1)
	}
	if len(f1) != len(fingerprintPrefix)+64 {
		t.Errorf("unexpected length %d", len(f1))
	}
	if f1 == Fingerprint("hello world!") {
		t.Error("different text should give different fingerprints")
	}
}
