package keyword

import "testing"

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"banana", "banan", 1},
		{"form", "from", 1},
		{"recieve", "receive", 1},
		{"café", "cafe", 1},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestClosest(t *testing.T) {
	vocab := map[string]uint64{"banana": 3, "bandana": 1, "cat": 5, "car": 9}
	tests := []struct {
		term string
		want string
		ok   bool
	}{
		{"bananna", "banana", true},
		{"cst", "cat", true},
		{"cas", "car", true},
		{"zebra", "", false},
	}
	for _, tt := range tests {
		got, ok := closest(tt.term, vocab)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("closest(%q) = %q, %v; want %q, %v", tt.term, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSuggest(t *testing.T) {
	idx := newTestIndex(t)
	seed(t, idx, map[string]string{"file:///a": "quarterly budget review"})

	got, ok, err := idx.Suggest("quartely budgte")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got != "quarterly budget" {
		t.Errorf("Suggest = %q, %v", got, ok)
	}

	if _, ok, _ := idx.Suggest("budget review"); ok {
		t.Error("known terms should not produce a suggestion")
	}
}
