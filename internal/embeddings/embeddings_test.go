package embeddings

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestMockEmbedderIsL2Normalized(t *testing.T) {
	e := NewMockEmbedder(32)
	v, err := e.EmbedText(context.Background(), "photosynthesis converts sunlight")
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}

	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if math.Abs(norm-1.0) > 1e-4 {
		t.Errorf("expected unit-norm vector, got norm %f", norm)
	}
}

func TestMockEmbedderEmptyInput(t *testing.T) {
	e := NewMockEmbedder(32)
	_, err := e.EmbedText(context.Background(), "")
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	a, _ := e.EmbedText(context.Background(), "carbon dioxide")
	b, _ := e.EmbedText(context.Background(), "carbon dioxide")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical embeddings for identical text, diverged at index %d", i)
		}
	}
}

func TestMockEmbedderImageRejectsEmpty(t *testing.T) {
	e := NewMockEmbedder(16)
	_, err := e.EmbedImage(context.Background(), nil)
	if !errors.Is(err, ErrBadImage) {
		t.Errorf("expected ErrBadImage, got %v", err)
	}
}

func TestCacheEvictsOldestBeyondCapacity(t *testing.T) {
	c := newCache(2)
	c.put("a", []float32{1})
	c.put("b", []float32{2})
	c.put("c", []float32{3})

	if _, ok := c.get("a"); ok {
		t.Error("expected oldest entry to be evicted")
	}
	if _, ok := c.get("c"); !ok {
		t.Error("expected newest entry to still be cached")
	}
}
