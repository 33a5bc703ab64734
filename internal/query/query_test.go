// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package query

import (
	"context"
	"testing"

	"github.com/nskitch/hive-rag/internal/embeddings"
	"github.com/nskitch/hive-rag/internal/vectordb"
)

func seedScope(t *testing.T, db *vectordb.MemoryVectorDB, embedder embeddings.Embedder, scopeID string, docs []struct {
	file, content, topic string
	concepts              []string
}) {
	t.Helper()
	ctx := context.Background()
	var points []vectordb.Point
	for i, d := range docs {
		vec, err := embedder.EmbedText(ctx, d.content)
		if err != nil {
			t.Fatalf("EmbedText: %v", err)
		}
		points = append(points, vectordb.Point{
			PointID:      d.file,
			NamedVectors: map[string][]float32{vectordb.SpaceText: vec},
			Payload: vectordb.Chunk{
				ChunkID:          d.file,
				ScopeID:          scopeID,
				Modality:         "text",
				Content:          d.content,
				SourceFile:       d.file,
				DocumentTopic:    d.topic,
				DocumentConcepts: d.concepts,
				ChunkIndex:       i,
				TotalChunks:      len(docs),
			},
		})
	}
	if err := db.UpsertBatch(ctx, points); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}
}

func TestPipelineRefusesOnEmptyKnowledgeBase(t *testing.T) {
	db := vectordb.NewMemoryVectorDB()
	embedder := embeddings.NewMockEmbedder(16)
	p := NewPipeline(db, embedder, nil)

	_, refusal, err := p.Answer(context.Background(), Request{ScopeID: "s1", Query: "what is photosynthesis?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if refusal == nil || refusal.Reason != ReasonEmptyKnowledgeBase {
		t.Fatalf("expected empty_knowledge_base refusal, got %+v", refusal)
	}
}

func TestPipelineRefusesOnTopicMismatch(t *testing.T) {
	db := vectordb.NewMemoryVectorDB()
	embedder := embeddings.NewMockEmbedder(16)
	seedScope(t, db, embedder, "s1", []struct {
		file, content, topic string
		concepts              []string
	}{
		{"photosynthesis.txt", "Plants convert sunlight into energy through photosynthesis.", "Photosynthesis", []string{"photosynthesis", "chlorophyll"}},
	})

	p := NewPipeline(db, embedder, nil)
	_, refusal, err := p.Answer(context.Background(), Request{ScopeID: "s1", Query: "who won the 1998 world cup?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if refusal == nil || refusal.Reason != ReasonNoMatch {
		t.Fatalf("expected no_match refusal, got %+v", refusal)
	}
}

func TestGateConceptOverlapAllows(t *testing.T) {
	g := NewGate(nil)
	analysis := Analysis{Topic: "carbon cycle", Concepts: []string{"carbon dioxide"}}
	catalog := NormalizedCatalog{Topics: []string{"earth science"}, Concepts: []string{"carbon dioxide", "nitrogen"}}

	ok, refusal := g.Check(context.Background(), "how does carbon dioxide move through the atmosphere?", analysis, catalog)
	if !ok || refusal != nil {
		t.Fatalf("expected gate to allow on concept overlap, got ok=%v refusal=%+v", ok, refusal)
	}
}

func TestGateFailsClosedWithoutGateway(t *testing.T) {
	g := NewGate(nil)
	analysis := Analysis{Topic: "quantum computing", Concepts: []string{"qubit"}}
	catalog := NormalizedCatalog{Topics: []string{"photosynthesis"}, Concepts: []string{"chlorophyll"}}

	ok, refusal := g.Check(context.Background(), "what is a qubit?", analysis, catalog)
	if ok {
		t.Fatalf("expected gate to deny unrelated topic")
	}
	if refusal == nil || refusal.Reason != ReasonNoMatch {
		t.Fatalf("expected no_match refusal without a gateway to consult, got %+v", refusal)
	}
}

func TestGraderSufficiencyRequiresBothThresholds(t *testing.T) {
	g := NewGrader(nil)
	candidates := []vectordb.Match{
		{ChunkID: "a", Payload: vectordb.Chunk{Content: "some content"}},
		{ChunkID: "b", Payload: vectordb.Chunk{Content: "more content"}},
	}

	result := g.Grade(context.Background(), "irrelevant query", candidates)
	// Without a gateway every chunk defaults to scoreOnError (0.5), which
	// clears both the per-chunk pass threshold and the aggregate one.
	if !result.IsSufficient {
		t.Fatalf("expected scoreOnError fallback to satisfy both thresholds, got %+v", result)
	}
	if len(result.Graded) != 2 || len(result.Passed) != 2 {
		t.Fatalf("expected 2 graded and 2 passed chunks, got graded=%d passed=%d", len(result.Graded), len(result.Passed))
	}
}

func TestMMRRerankIsDeterministicAndBreaksTiesByChunkID(t *testing.T) {
	candidates := []vectordb.Match{
		{ChunkID: "z", Similarity: 0.9, Vector: []float32{1, 0, 0, 0}},
		{ChunkID: "a", Similarity: 0.9, Vector: []float32{1, 0, 0, 0}},
		{ChunkID: "m", Similarity: 0.5, Vector: []float32{0, 1, 0, 0}},
	}

	first := mmrRerank(candidates, 2)
	second := mmrRerank(candidates, 2)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 results from mmrRerank, got %d and %d", len(first), len(second))
	}
	if first[0].ChunkID != second[0].ChunkID || first[1].ChunkID != second[1].ChunkID {
		t.Fatalf("expected deterministic MMR ordering, got %v then %v", first, second)
	}
	if first[0].ChunkID != "a" {
		t.Fatalf("expected tie between equally-relevant 'z' and 'a' to break toward 'a', got %q", first[0].ChunkID)
	}
}

func TestCitationsAreDedupedByFileAndPage(t *testing.T) {
	passed := []GradedChunk{
		{Match: vectordb.Match{Payload: vectordb.Chunk{SourceFile: "doc.pdf", PageNumber: 3, HasPageNumber: true}}},
		{Match: vectordb.Match{Payload: vectordb.Chunk{SourceFile: "doc.pdf", PageNumber: 3, HasPageNumber: true}}},
		{Match: vectordb.Match{Payload: vectordb.Chunk{SourceFile: "doc.pdf", PageNumber: 4, HasPageNumber: true}}},
	}

	citations := buildCitations(passed)
	if len(citations) != 2 {
		t.Fatalf("expected 2 deduped citations, got %d: %+v", len(citations), citations)
	}
}

func TestConflictDetectorSkipsSameSourcePairs(t *testing.T) {
	a := GradedChunk{Match: vectordb.Match{Payload: vectordb.Chunk{SourceFile: "a.pdf", Content: "water boils at 100C"}}}
	b := GradedChunk{Match: vectordb.Match{Payload: vectordb.Chunk{SourceFile: "a.pdf", Content: "water boils at 90C"}}}
	if !sameSourceFile(a, b) {
		t.Fatalf("expected chunks from the same source_file to be recognized as same-source")
	}

	c := GradedChunk{Match: vectordb.Match{Payload: vectordb.Chunk{SourceFile: "b.pdf", Content: "water boils at 90C"}}}
	if sameSourceFile(a, c) {
		t.Fatalf("expected chunks from different source files not to be same-source")
	}
}

func TestConflictDetectorNoConflictWithoutGateway(t *testing.T) {
	d := NewConflictDetector(nil)
	passed := []GradedChunk{
		{Match: vectordb.Match{Payload: vectordb.Chunk{SourceFile: "a.pdf", Content: "water boils at 100C"}}},
		{Match: vectordb.Match{Payload: vectordb.Chunk{SourceFile: "b.pdf", Content: "water boils at 90C"}}},
	}

	conflicts := d.Detect(context.Background(), "at what temperature does water boil?", passed)
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts without a gateway, got %v", conflicts)
	}
}

func TestGeneratorFailsWithoutGateway(t *testing.T) {
	g := NewGenerator(nil)
	_, err := g.Generate(context.Background(), "what is photosynthesis?", nil, nil, nil)
	if err == nil {
		t.Fatalf("expected ErrGenerationFailed without a configured gateway")
	}
}
