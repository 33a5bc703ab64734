// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package vectordb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	qdrant "github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// indexedFields are the payload keys exact-match filters are allowed on.
var indexedFields = []string{"scope_id", "modality", "document_topic", "file_name"}

// QdrantVectorDB is a named-vector wrapper around the Qdrant gRPC clients.
// One collection carries three parallel named vector spaces (text, image,
// audio); a point can populate any non-empty subset of them.
type QdrantVectorDB struct {
	collectionsSvc qdrant.CollectionsClient
	pointsSvc      qdrant.PointsClient
	collection     string

	mu  sync.Mutex
	dim int
}

// NewQdrantVectorDB constructs a wrapper and ensures the named-vector
// collection exists with the given dimension.
func NewQdrantVectorDB(conn *grpc.ClientConn, collection string, dim int) (*QdrantVectorDB, error) {
	if conn == nil {
		return nil, fmt.Errorf("vectordb: gRPC connection is required")
	}
	if collection == "" {
		collection = "hive_rag"
	}

	q := &QdrantVectorDB{
		collectionsSvc: qdrant.NewCollectionsClient(conn),
		pointsSvc:      qdrant.NewPointsClient(conn),
		collection:     collection,
		dim:            dim,
	}

	if err := q.EnsureCollection(context.Background()); err != nil {
		return nil, fmt.Errorf("vectordb: failed to ensure collection: %w", err)
	}
	return q, nil
}

// EnsureCollection creates the named-vector collection and payload indexes
// if they do not already exist.
func (q *QdrantVectorDB) EnsureCollection(ctx context.Context) error {
	q.mu.Lock()
	dim := q.dim
	q.mu.Unlock()

	collections, err := q.collectionsSvc.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return wrapTransient(err)
	}

	for _, coll := range collections.Collections {
		if coll.Name == q.collection {
			return nil
		}
	}

	params := map[string]*qdrant.VectorParams{
		SpaceText:  {Size: uint64(dim), Distance: qdrant.Distance_Cosine},
		SpaceImage: {Size: uint64(dim), Distance: qdrant.Distance_Cosine},
		SpaceAudio: {Size: uint64(dim), Distance: qdrant.Distance_Cosine},
	}

	_, err = q.collectionsSvc.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_ParamsMap{
				ParamsMap: &qdrant.VectorParamsMap{Map: params},
			},
		},
	})
	if err != nil {
		return wrapTransient(err)
	}

	for _, field := range indexedFields {
		_, err := q.pointsSvc.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return wrapTransient(err)
		}
	}

	return nil
}

// UpsertBatch stores points idempotently by PointID. If the collection does
// not exist yet, it is created lazily and the upsert is retried once.
func (q *QdrantVectorDB) UpsertBatch(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		ps, err := toPointStruct(p)
		if err != nil {
			return err
		}
		structs = append(structs, ps)
	}

	_, err := q.pointsSvc.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         structs,
	})
	if err == nil {
		return nil
	}

	if status.Code(err) == codes.NotFound {
		if ensureErr := q.EnsureCollection(ctx); ensureErr != nil {
			return ensureErr
		}
		_, retryErr := q.pointsSvc.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         structs,
		})
		if retryErr != nil {
			return wrapTransient(retryErr)
		}
		return nil
	}

	return wrapTransient(err)
}

func toPointStruct(p Point) (*qdrant.PointStruct, error) {
	if len(p.NamedVectors) == 0 {
		return nil, fmt.Errorf("vectordb: point %s has no named vectors: %w", p.PointID, ErrSchemaError)
	}

	vectors := make(map[string]*qdrant.Vector, len(p.NamedVectors))
	for space, vec := range p.NamedVectors {
		vectors[space] = &qdrant.Vector{Data: vec}
	}

	return &qdrant.PointStruct{
		Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: p.PointID}},
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vectors{
				Vectors: &qdrant.NamedVectors{Vectors: vectors},
			},
		},
		Payload: payloadFromChunk(p.Payload),
	}, nil
}

// DeleteByScope removes every point whose payload scope_id matches scopeID.
func (q *QdrantVectorDB) DeleteByScope(ctx context.Context, scopeID string) error {
	_, err := q.pointsSvc.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: keywordFilter(Filter{"scope_id": scopeID}),
			},
		},
	})
	if err != nil {
		return wrapTransient(err)
	}
	return nil
}

// SearchSingle searches one named vector space.
func (q *QdrantVectorDB) SearchSingle(ctx context.Context, vector []float32, space string, n int, threshold float32, filter Filter) ([]Match, error) {
	if n <= 0 {
		n = 10
	}
	thr := threshold

	resp, err := q.pointsSvc.Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		VectorName:     strPtr(space),
		Limit:          uint64(n),
		ScoreThreshold: &thr,
		Filter:         keywordFilter(filter),
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &qdrant.WithVectorsSelector{SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, wrapTransient(err)
	}

	matches := make([]Match, 0, len(resp.Result))
	for _, sp := range resp.Result {
		chunk := chunkFromPayload(sp.Payload)
		matches = append(matches, Match{
			ChunkID:       pointIDString(sp.Id),
			Similarity:    sp.Score,
			MatchedSpaces: []string{space},
			Payload:       chunk,
			Vector:        vectorFromScoredPoint(sp, space),
		})
	}
	return matches, nil
}

// vectorFromScoredPoint extracts the named vector a search hit matched
// against, for the retriever's MMR diversity term. Returns nil if the
// server didn't echo vectors back (older collections, WithVectors off).
func vectorFromScoredPoint(sp *qdrant.ScoredPoint, space string) []float32 {
	if sp.Vectors == nil {
		return nil
	}
	named := sp.Vectors.GetVectors()
	if named == nil {
		return nil
	}
	v, ok := named.GetVectors()[space]
	if !ok || v == nil {
		return nil
	}
	return v.Data
}

// SearchMerged runs SearchSingle concurrently across spaces and merges
// results by ChunkID, keeping the maximum similarity and the union of
// matched spaces.
func (q *QdrantVectorDB) SearchMerged(ctx context.Context, vector []float32, spaces []string, n int, threshold float32, filter Filter) ([]Match, error) {
	perSpace := make([][]Match, len(spaces))

	g, gctx := errgroup.WithContext(ctx)
	for i, space := range spaces {
		i, space := i, space
		g.Go(func() error {
			m, err := q.SearchSingle(gctx, vector, space, n, threshold, filter)
			if err != nil {
				return err
			}
			perSpace[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]*Match)
	for _, matches := range perSpace {
		for _, m := range matches {
			existing, ok := merged[m.ChunkID]
			if !ok {
				mc := m
				merged[m.ChunkID] = &mc
				continue
			}
			existing.MatchedSpaces = append(existing.MatchedSpaces, m.MatchedSpaces...)
			if m.Similarity > existing.Similarity {
				existing.Similarity = m.Similarity
				existing.Payload = m.Payload
				existing.Vector = m.Vector
			}
		}
	}

	out := make([]Match, 0, len(merged))
	for _, m := range merged {
		m.MatchedSpaces = dedupStrings(m.MatchedSpaces)
		out = append(out, *m)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ChunkID < out[j].ChunkID
	})

	return out, nil
}

// GetCatalog scans every point tagged with scopeID and derives the scope
// catalog by scrolling the collection in pages.
func (q *QdrantVectorDB) GetCatalog(ctx context.Context, scopeID string) (Catalog, error) {
	catalog := NewCatalog()

	var offset *qdrant.PointId
	for {
		resp, err := q.pointsSvc.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Filter:         keywordFilter(Filter{"scope_id": scopeID}),
			Limit:          uint32Ptr(256),
			Offset:         offset,
			WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
			WithVectors:    &qdrant.WithVectorsSelector{SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: false}},
		})
		if err != nil {
			return Catalog{}, wrapTransient(err)
		}

		for _, p := range resp.Result {
			chunk := chunkFromPayload(p.Payload)
			if chunk.DocumentTopic != "" {
				catalog.Topics[chunk.DocumentTopic] = true
			}
			for _, c := range chunk.DocumentConcepts {
				catalog.Concepts[c] = true
			}
			if chunk.SourceFile != "" {
				summary := catalog.DocSummaries[chunk.SourceFile]
				summary.Topics = appendUnique(summary.Topics, chunk.DocumentTopic)
				for _, c := range chunk.DocumentConcepts {
					summary.Concepts = appendUnique(summary.Concepts, c)
				}
				catalog.DocSummaries[chunk.SourceFile] = summary
			}
		}

		if resp.NextPageOffset == nil || len(resp.Result) == 0 {
			break
		}
		offset = resp.NextPageOffset
	}

	return catalog, nil
}

func wrapTransient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func keywordFilter(filter Filter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: k,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: v},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func payloadFromChunk(c Chunk) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		"chunk_id":       strValue(c.ChunkID),
		"scope_id":       strValue(c.ScopeID),
		"modality":       strValue(c.Modality),
		"source_type":    strValue(c.SourceType),
		"content":        strValue(c.Content),
		"file_name":      strValue(c.SourceFile),
		"image_path":     strValue(c.ImagePath),
		"document_topic": strValue(c.DocumentTopic),
		"chunk_index":    intValue(c.ChunkIndex),
		"total_chunks":   intValue(c.TotalChunks),
	}
	if c.HasPageNumber {
		payload["page_number"] = intValue(c.PageNumber)
	}
	concepts := make([]*qdrant.Value, 0, len(c.DocumentConcepts))
	for _, concept := range c.DocumentConcepts {
		concepts = append(concepts, &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: concept}})
	}
	payload["document_concepts"] = &qdrant.Value{
		Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: concepts}},
	}
	return payload
}

func chunkFromPayload(payload map[string]*qdrant.Value) Chunk {
	c := Chunk{}
	if payload == nil {
		return c
	}
	c.ChunkID = getString(payload, "chunk_id")
	c.ScopeID = getString(payload, "scope_id")
	c.Modality = getString(payload, "modality")
	c.SourceType = getString(payload, "source_type")
	c.Content = getString(payload, "content")
	c.SourceFile = getString(payload, "file_name")
	c.ImagePath = getString(payload, "image_path")
	c.DocumentTopic = getString(payload, "document_topic")
	c.ChunkIndex = int(getInt(payload, "chunk_index"))
	c.TotalChunks = int(getInt(payload, "total_chunks"))
	if v, ok := payload["page_number"]; ok {
		c.HasPageNumber = true
		c.PageNumber = int(v.GetIntegerValue())
	}
	if v, ok := payload["document_concepts"]; ok && v.GetListValue() != nil {
		for _, item := range v.GetListValue().Values {
			c.DocumentConcepts = append(c.DocumentConcepts, item.GetStringValue())
		}
	}
	return c
}

func getString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func getInt(payload map[string]*qdrant.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}

func strValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(i int) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(i)}}
}

func strPtr(s string) *string { return &s }

func uint32Ptr(v uint32) *uint32 { return &v }

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
