package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// MockEmbedder generates deterministic mock embeddings for testing.
type MockEmbedder struct {
	dim   int
	cache *cache
}

// NewMockEmbedder creates a new mock embedder with the specified dimension.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{dim: dim, cache: newCache(defaultCacheCapacity)}
}

// Dimension returns the embedding dimension.
func (e *MockEmbedder) Dimension() int {
	return e.dim
}

// EmbedText generates a deterministic mock embedding based on text hash.
func (e *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if cached, ok := e.cache.get(text); ok {
		return cached, nil
	}

	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, e.dim)
	for i := 0; i < e.dim; i++ {
		embedding[i] = float32(math.Sin(float64(seed*uint32(i+1)) * 0.1))
	}

	embedding = normalize(embedding)
	e.cache.put(text, embedding)
	return embedding, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		result[i] = embedding
	}
	return result, nil
}

// EmbedImage generates a deterministic mock embedding from image bytes,
// reusing the same hash-and-project scheme as EmbedText.
func (e *MockEmbedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, ErrBadImage
	}

	h := fnv.New32a()
	h.Write(image)
	seed := h.Sum32()

	embedding := make([]float32, e.dim)
	for i := 0; i < e.dim; i++ {
		embedding[i] = float32(math.Cos(float64(seed*uint32(i+1)) * 0.1))
	}

	return normalize(embedding), nil
}
