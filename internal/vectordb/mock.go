// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package vectordb

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryVectorDB is an in-process VectorDB used by tests and by UI-only
// mode. It performs exact cosine-similarity search over everything it
// holds; fine for small fixtures, not meant for production scale.
type MemoryVectorDB struct {
	mu     sync.RWMutex
	points map[string]Point
}

// NewMemoryVectorDB returns an empty in-memory store.
func NewMemoryVectorDB() *MemoryVectorDB {
	return &MemoryVectorDB{points: make(map[string]Point)}
}

// NewMockVectorDB returns a new in-memory store (as NewMemoryVectorDB)
// for callers with no vector backend configured (UI-only mode, drone
// clients).
func NewMockVectorDB() VectorDB {
	return NewMemoryVectorDB()
}

func (m *MemoryVectorDB) UpsertBatch(ctx context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		m.points[p.PointID] = p
	}
	return nil
}

func (m *MemoryVectorDB) DeleteByScope(ctx context.Context, scopeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.points {
		if p.Payload.ScopeID == scopeID {
			delete(m.points, id)
		}
	}
	return nil
}

func (m *MemoryVectorDB) SearchSingle(ctx context.Context, vector []float32, space string, n int, threshold float32, filter Filter) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 {
		n = 10
	}

	matches := make([]Match, 0)
	for _, p := range m.points {
		vec, ok := p.NamedVectors[space]
		if !ok {
			continue
		}
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		sim := cosineSimilarity(vector, vec)
		if sim < threshold {
			continue
		}
		matches = append(matches, Match{
			ChunkID:       p.Payload.ChunkID,
			Similarity:    sim,
			MatchedSpaces: []string{space},
			Payload:       p.Payload,
			Vector:        vec,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}

func (m *MemoryVectorDB) SearchMerged(ctx context.Context, vector []float32, spaces []string, n int, threshold float32, filter Filter) ([]Match, error) {
	merged := make(map[string]*Match)
	for _, space := range spaces {
		hits, err := m.SearchSingle(ctx, vector, space, n, threshold, filter)
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			existing, ok := merged[hit.ChunkID]
			if !ok {
				h := hit
				merged[hit.ChunkID] = &h
				continue
			}
			existing.MatchedSpaces = append(existing.MatchedSpaces, hit.MatchedSpaces...)
			if hit.Similarity > existing.Similarity {
				existing.Similarity = hit.Similarity
				existing.Vector = hit.Vector
			}
		}
	}

	out := make([]Match, 0, len(merged))
	for _, m := range merged {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *MemoryVectorDB) GetCatalog(ctx context.Context, scopeID string) (Catalog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	catalog := NewCatalog()
	for _, p := range m.points {
		if p.Payload.ScopeID != scopeID {
			continue
		}
		c := p.Payload
		if c.DocumentTopic != "" {
			catalog.Topics[c.DocumentTopic] = true
		}
		for _, concept := range c.DocumentConcepts {
			catalog.Concepts[concept] = true
		}
		if c.SourceFile != "" {
			summary := catalog.DocSummaries[c.SourceFile]
			summary.Topics = appendUnique(summary.Topics, c.DocumentTopic)
			for _, concept := range c.DocumentConcepts {
				summary.Concepts = appendUnique(summary.Concepts, concept)
			}
			catalog.DocSummaries[c.SourceFile] = summary
		}
	}
	return catalog, nil
}

func matchesFilter(c Chunk, filter Filter) bool {
	for k, v := range filter {
		switch k {
		case "scope_id":
			if c.ScopeID != v {
				return false
			}
		case "modality":
			if c.Modality != v {
				return false
			}
		case "document_topic":
			if c.DocumentTopic != v {
				return false
			}
		case "file_name":
			if c.SourceFile != v {
				return false
			}
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
