package embedding

import (
	"context"
	"testing"
)

func TestMock_Deterministic(t *testing.T) {
	m := NewMock(32, 0)
	a := m.Embed("hello world")
	b := m.Embed("Hello, World!")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding should ignore case and punctuation")
		}
	}
	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("expected unit vector, squared norm %f", sum)
	}
	zero := m.Embed("   ")
	for _, v := range zero {
		if v != 0 {
			t.Fatal("text without words should embed to the zero vector")
		}
	}
	if m.MaxTokens() != 8000 {
		t.Errorf("MaxTokens = %d", m.MaxTokens())
	}
}

func TestMock_OutputIndexes(t *testing.T) {
	m := NewMock(8, 0)
	resp, err := m.CreateEmbeddings(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Output[0].Index != 2 {
		t.Errorf("mock should return outputs in reverse order, first index %d", resp.Output[0].Index)
	}
	vecs, err := resp.Vectors(3)
	if err != nil {
		t.Fatal(err)
	}
	want := m.Embed("one")
	for i := range want {
		if vecs[0][i] != want[i] {
			t.Fatal("Vectors should restore input order")
		}
	}
	if _, err := resp.Vectors(2); err == nil {
		t.Error("expected count mismatch error")
	}
}

func TestMock_Fail(t *testing.T) {
	m := NewMock(8, 0)
	m.Fail(StatusError, "boom")
	resp, _ := m.CreateEmbeddings(context.Background(), []string{"x"})
	if resp.Status != StatusError || resp.Message != "boom" {
		t.Errorf("got %+v", resp)
	}
	m.Fail(StatusSuccess, "")
	resp, _ = m.CreateEmbeddings(context.Background(), []string{"x"})
	if resp.Status != StatusSuccess {
		t.Errorf("failure should be cleared, got %s", resp.Status)
	}
}

func TestBucket_HighHashes(t *testing.T) {
	tests := []struct {
		word string
		hash uint32
		want int
	}{
		{"hello", 99162322, 0},
		{"budget", 2916790085, 6},
		{"quarterly", 3228939577, 3},
	}
	for _, tt := range tests {
		if got := HashString(tt.word); got != tt.hash {
			t.Errorf("HashString(%q) = %d, want %d", tt.word, got, tt.hash)
		}
		if got := bucket(tt.word, 7); got != tt.want {
			t.Errorf("bucket(%q, 7) = %d, want %d", tt.word, got, tt.want)
		}
	}
	// words hashing above MaxInt32 still land inside the vector
	v := NewMock(7, 0).Embed("budget quarterly")
	if len(v) != 7 || v[6] == 0 || v[3] == 0 {
		t.Errorf("Embed = %v", v)
	}
}
