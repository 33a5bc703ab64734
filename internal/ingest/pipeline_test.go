// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nskitch/hive-rag/internal/embeddings"
	"github.com/nskitch/hive-rag/internal/parser"
	"github.com/nskitch/hive-rag/internal/processor"
	"github.com/nskitch/hive-rag/internal/vectordb"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestIngestStoresChunksAndFallsBackToFilenameTopic(t *testing.T) {
	path := writeTempFile(t, "quarterly_report.txt", "The committee reviewed the budget. Revenue grew.")
	db := vectordb.NewMemoryVectorDB()
	embedder := embeddings.NewMockEmbedder(16)
	p := NewPipeline(db, embedder, nil)

	result, err := p.Ingest(context.Background(), Request{ScopeID: "s1", FilePath: path})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.ChunksStored == 0 {
		t.Fatalf("expected at least one chunk stored, got %+v", result)
	}
	if result.Topic != "Quarterly Report" {
		t.Fatalf("expected filename-derived topic, got %q", result.Topic)
	}
	if len(result.Concepts) != 0 {
		t.Fatalf("expected no concepts without a gateway, got %v", result.Concepts)
	}

	catalog, err := db.GetCatalog(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetCatalog: %v", err)
	}
	if !catalog.Topics["Quarterly Report"] {
		t.Fatalf("expected catalog to carry the stored document's topic, got %+v", catalog.Topics)
	}
}

func TestIngestIsIdempotentOnPointIDs(t *testing.T) {
	path := writeTempFile(t, "notes.txt", "Photosynthesis converts light into chemical energy in plants.")
	db := vectordb.NewMemoryVectorDB()
	embedder := embeddings.NewMockEmbedder(16)
	p := NewPipeline(db, embedder, nil)

	req := Request{ScopeID: "s1", FilePath: path}
	first, err := p.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	second, err := p.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if first.ChunksStored != second.ChunksStored {
		t.Fatalf("expected re-ingestion to produce the same chunk count, got %d then %d", first.ChunksStored, second.ChunksStored)
	}

	catalog, err := db.GetCatalog(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetCatalog: %v", err)
	}
	if len(catalog.DocSummaries) != 1 {
		t.Fatalf("expected re-ingestion to overwrite the same points rather than duplicate them, got %d doc summaries", len(catalog.DocSummaries))
	}
}

func TestExpandChunksSplitsOversizedText(t *testing.T) {
	long := strings.Repeat("This is a sentence about rivers and lakes. ", 100)
	raw := []parser.RawChunk{{Modality: "text", Content: long}}

	units := expandChunks(processor.NewChunker(), raw)
	if len(units) < 2 {
		t.Fatalf("expected oversized text to split into multiple chunks, got %d", len(units))
	}
	for _, u := range units {
		if u.modality != "text" {
			t.Fatalf("expected all split units to keep the text modality, got %q", u.modality)
		}
	}
}

func TestExpandChunksPassesImageChunksThrough(t *testing.T) {
	raw := []parser.RawChunk{{Modality: "image", ImagePath: "photo.png"}}
	units := expandChunks(processor.NewChunker(), raw)
	if len(units) != 1 || units[0].modality != "image" || units[0].imagePath != "photo.png" {
		t.Fatalf("expected a single passthrough image unit, got %+v", units)
	}
}

func TestParseDocumentKnowledgeFallsBackOnUnknownTopic(t *testing.T) {
	topic, concepts := parseDocumentKnowledge("TOPIC: unknown\nCONCEPTS: \n", "field_report_2024.txt")
	if topic != "Field Report 2024" {
		t.Fatalf("expected filename fallback for an 'unknown' topic, got %q", topic)
	}
	if len(concepts) != 0 {
		t.Fatalf("expected no concepts parsed from an empty CONCEPTS line, got %v", concepts)
	}
}

func TestParseDocumentKnowledgeCapsConceptsAndLowercases(t *testing.T) {
	response := "TOPIC: Carbon Cycle\nCONCEPTS: CO2, Oxygen, Soil, Plants, Decomposition, Bacteria, Fungi, Atmosphere, Ocean, Rock, Sediment, Erosion, Weathering, Volcanism, Respiration, Photosynthesis"
	topic, concepts := parseDocumentKnowledge(response, "ignored.txt")
	if topic != "Carbon Cycle" {
		t.Fatalf("expected parsed topic 'Carbon Cycle', got %q", topic)
	}
	if len(concepts) != 15 {
		t.Fatalf("expected concepts capped at 15, got %d", len(concepts))
	}
	if concepts[0] != "co2" {
		t.Fatalf("expected concepts lowercased, got %q", concepts[0])
	}
}
