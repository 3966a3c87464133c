package embedding

import (
	"context"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
	if c.Len() != 2 {
		t.Errorf("Len: got %d", c.Len())
	}
}

type countingEmbedder struct {
	HashEmbedder
	calls int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	return e.HashEmbedder.Embed(ctx, text)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: *NewHashEmbedder(16)}
	e := NewCachedEmbedder(inner, 8)
	ctx := context.Background()

	first, err := e.Embed(ctx, "tiger in the forest")
	if err != nil {
		t.Fatal(err)
	}
	first[0] = 42 // callers may scribble on the result
	second, err := e.Embed(ctx, "tiger in the forest")
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls != 1 {
		t.Errorf("inner embedder called %d times, want 1", inner.calls)
	}
	if second[0] == 42 {
		t.Error("cached vector was modified through a returned slice")
	}
	if e.Dimensions() != 16 {
		t.Errorf("Dimensions: got %d", e.Dimensions())
	}
}
