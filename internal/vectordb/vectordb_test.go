// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package vectordb

import (
	"context"
	"testing"
)

func unitVec(dims int, hot int) []float32 {
	v := make([]float32, dims)
	v[hot] = 1
	return v
}

func TestMemoryVectorDBScopeIsolation(t *testing.T) {
	db := NewMemoryVectorDB()
	ctx := context.Background()

	err := db.UpsertBatch(ctx, []Point{
		{PointID: "p1", NamedVectors: map[string][]float32{SpaceText: unitVec(4, 0)}, Payload: Chunk{ChunkID: "p1", ScopeID: "scope-a"}},
		{PointID: "p2", NamedVectors: map[string][]float32{SpaceText: unitVec(4, 0)}, Payload: Chunk{ChunkID: "p2", ScopeID: "scope-b"}},
	})
	if err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	matches, err := db.SearchSingle(ctx, unitVec(4, 0), SpaceText, 10, 0, Filter{"scope_id": "scope-a"})
	if err != nil {
		t.Fatalf("SearchSingle: %v", err)
	}
	if len(matches) != 1 || matches[0].ChunkID != "p1" {
		t.Fatalf("expected only scope-a's chunk, got %+v", matches)
	}
}

func TestMemoryVectorDBDeleteByScope(t *testing.T) {
	db := NewMemoryVectorDB()
	ctx := context.Background()

	db.UpsertBatch(ctx, []Point{
		{PointID: "p1", NamedVectors: map[string][]float32{SpaceText: unitVec(4, 0)}, Payload: Chunk{ChunkID: "p1", ScopeID: "scope-a"}},
	})
	if err := db.DeleteByScope(ctx, "scope-a"); err != nil {
		t.Fatalf("DeleteByScope: %v", err)
	}
	catalog, err := db.GetCatalog(ctx, "scope-a")
	if err != nil {
		t.Fatalf("GetCatalog: %v", err)
	}
	if !catalog.IsEmpty() {
		t.Errorf("expected empty catalog after delete, got %+v", catalog)
	}
}

func TestMemoryVectorDBSearchMergedDedupes(t *testing.T) {
	db := NewMemoryVectorDB()
	ctx := context.Background()

	db.UpsertBatch(ctx, []Point{
		{
			PointID: "p1",
			NamedVectors: map[string][]float32{
				SpaceText:  unitVec(4, 0),
				SpaceImage: unitVec(4, 0),
			},
			Payload: Chunk{ChunkID: "p1", ScopeID: "scope-a"},
		},
	})

	matches, err := db.SearchMerged(ctx, unitVec(4, 0), []string{SpaceText, SpaceImage}, 10, 0, Filter{"scope_id": "scope-a"})
	if err != nil {
		t.Fatalf("SearchMerged: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one deduplicated match, got %d", len(matches))
	}
	if len(matches[0].MatchedSpaces) != 2 {
		t.Errorf("expected both spaces recorded, got %v", matches[0].MatchedSpaces)
	}
}

func TestMemoryVectorDBCatalogAggregatesTopicsAndConcepts(t *testing.T) {
	db := NewMemoryVectorDB()
	ctx := context.Background()

	db.UpsertBatch(ctx, []Point{
		{PointID: "p1", NamedVectors: map[string][]float32{SpaceText: unitVec(4, 0)}, Payload: Chunk{
			ChunkID: "p1", ScopeID: "scope-a", SourceFile: "doc.pdf",
			DocumentTopic: "Photosynthesis", DocumentConcepts: []string{"chlorophyll", "sunlight"},
		}},
	})

	catalog, err := db.GetCatalog(ctx, "scope-a")
	if err != nil {
		t.Fatalf("GetCatalog: %v", err)
	}
	if !catalog.Topics["Photosynthesis"] {
		t.Errorf("expected topic to be indexed, got %+v", catalog.Topics)
	}
	if !catalog.Concepts["chlorophyll"] || !catalog.Concepts["sunlight"] {
		t.Errorf("expected concepts to be indexed, got %+v", catalog.Concepts)
	}
}
