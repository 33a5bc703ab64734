// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package vectordb

import "context"

// VectorDB describes the multi-named-vector store the query pipeline
// depends on: batched upsert, scope deletion, single- and merged-space
// search with payload filters, and a catalog projection.
type VectorDB interface {
	// UpsertBatch stores or updates points, idempotent by PointID. Batches
	// larger than 100 points are the caller's responsibility to split
	// (internal/ingest); a batch either lands completely or not at all.
	UpsertBatch(ctx context.Context, points []Point) error

	// DeleteByScope removes every point whose payload ScopeID equals scopeID.
	DeleteByScope(ctx context.Context, scopeID string) error

	// SearchSingle searches one named vector space, returning up to n
	// points with similarity >= threshold, descending, filtered by filter.
	SearchSingle(ctx context.Context, vector []float32, space string, n int, threshold float32, filter Filter) ([]Match, error)

	// SearchMerged searches every named space in spaces and merges hits by
	// ChunkID, keeping the maximum similarity and the set of spaces that
	// matched.
	SearchMerged(ctx context.Context, vector []float32, spaces []string, n int, threshold float32, filter Filter) ([]Match, error)

	// GetCatalog derives the scope catalog (topics, concepts, per-document
	// summaries) by scanning payloads for scopeID.
	GetCatalog(ctx context.Context, scopeID string) (Catalog, error)
}
