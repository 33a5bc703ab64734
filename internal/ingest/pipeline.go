// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nskitch/hive-rag/internal/ai"
	"github.com/nskitch/hive-rag/internal/embeddings"
	"github.com/nskitch/hive-rag/internal/parser"
	"github.com/nskitch/hive-rag/internal/processor"
	"github.com/nskitch/hive-rag/internal/topic"
	"github.com/nskitch/hive-rag/internal/vectordb"
)

const (
	upsertBatchSize     = 100
	maxTopicSampleChunks = 5
	maxTopicSampleChars  = 400
	maxTopicPromptChars  = 1500
)

// Pipeline is the C5 step: file -> modality-tagged chunks -> document
// topic/concepts -> per-chunk embeddings -> batched upsert.
type Pipeline struct {
	db       vectordb.VectorDB
	embedder embeddings.Embedder
	gateway  *ai.Gateway
	chunker  *processor.Chunker
}

// NewPipeline wires the ingestion pipeline. gateway may be nil, in
// which case document topic/concepts always fall back to the filename.
func NewPipeline(db vectordb.VectorDB, embedder embeddings.Embedder, gateway *ai.Gateway) *Pipeline {
	return &Pipeline{
		db:       db,
		embedder: embedder,
		gateway:  gateway,
		chunker:  processor.NewChunker(),
	}
}

// Ingest parses req.FilePath, derives the document's topic and
// concepts, embeds every chunk, and upserts the result. A chunk that
// fails to embed is skipped and counted in Result.ChunksFailed rather
// than failing the whole run; Ingest only returns an error when parsing
// itself fails, an upsert batch fails, or nothing could be stored at all.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	rawChunks, err := parser.ParseFile(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("ingest: failed to parse %s: %w", req.FilePath, err)
	}

	sourceFile := req.SourceFile
	if sourceFile == "" {
		sourceFile = filepath.Base(req.FilePath)
	}

	docTopic, docConcepts := p.deriveDocumentKnowledge(ctx, rawChunks, req.FilePath)
	log.Printf("ingest: %s -> topic=%q concepts=%v", sourceFile, docTopic, docConcepts)

	units := expandChunks(p.chunker, rawChunks)

	result := &Result{ChunksTotal: len(units), Topic: docTopic, Concepts: docConcepts}
	var points []vectordb.Point

	for i, u := range units {
		vec, err := p.embedChunk(ctx, u)
		if err != nil {
			log.Printf("ingest: failed to embed chunk %d of %s: %v", i, sourceFile, err)
			result.ChunksFailed++
			continue
		}

		seed := fmt.Sprintf("%s-%s-%d", req.ScopeID, req.FilePath, i)
		pointID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()

		space := vectordb.SpaceText
		if u.modality == "image" {
			space = vectordb.SpaceImage
		} else if u.modality == "audio" {
			space = vectordb.SpaceAudio
		}

		points = append(points, vectordb.Point{
			PointID:      pointID,
			NamedVectors: map[string][]float32{space: vec},
			Payload: vectordb.Chunk{
				ChunkID:          pointID,
				ScopeID:          req.ScopeID,
				Modality:         u.modality,
				SourceType:       u.modality,
				Content:          u.content,
				SourceFile:       sourceFile,
				PageNumber:       u.pageNumber,
				HasPageNumber:    u.hasPageNumber,
				ImagePath:        u.imagePath,
				DocumentTopic:    docTopic,
				DocumentConcepts: docConcepts,
				ChunkIndex:       i,
				TotalChunks:      len(units),
			},
		})
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		if err := p.db.UpsertBatch(ctx, points[start:end]); err != nil {
			return result, fmt.Errorf("ingest: failed to upsert batch [%d:%d] for %s: %w", start, end, sourceFile, err)
		}
		result.ChunksStored += end - start
	}

	if result.ChunksStored == 0 && result.ChunksTotal > 0 {
		return result, fmt.Errorf("ingest: all %d chunks failed for %s", result.ChunksTotal, sourceFile)
	}
	return result, nil
}

// chunkUnit is a single storable unit after text sub-chunking has been
// applied to any oversized text RawChunk.
type chunkUnit struct {
	modality      string
	content       string
	pageNumber    int
	hasPageNumber bool
	imagePath     string
}

// expandChunks splits each text RawChunk through the sentence-aware
// chunker when it exceeds the chunker's target size; image and audio
// chunks pass through as a single unit each.
func expandChunks(chunker *processor.Chunker, raw []parser.RawChunk) []chunkUnit {
	var units []chunkUnit
	for _, rc := range raw {
		if rc.Modality != "text" {
			units = append(units, chunkUnit{
				modality:      rc.Modality,
				content:       rc.Content,
				pageNumber:    rc.PageNumber,
				hasPageNumber: rc.HasPageNumber,
				imagePath:     rc.ImagePath,
			})
			continue
		}

		pieces, err := chunker.ChunkText(rc.Content)
		if err != nil || len(pieces) == 0 {
			units = append(units, chunkUnit{
				modality:      "text",
				content:       rc.Content,
				pageNumber:    rc.PageNumber,
				hasPageNumber: rc.HasPageNumber,
			})
			continue
		}
		for _, piece := range pieces {
			units = append(units, chunkUnit{
				modality:      "text",
				content:       piece,
				pageNumber:    rc.PageNumber,
				hasPageNumber: rc.HasPageNumber,
			})
		}
	}
	return units
}

func (p *Pipeline) embedChunk(ctx context.Context, u chunkUnit) ([]float32, error) {
	if u.modality == "image" && u.imagePath != "" {
		data, err := os.ReadFile(u.imagePath)
		if err != nil {
			return nil, fmt.Errorf("ingest: failed to read image %s: %w", u.imagePath, err)
		}
		return p.embedder.EmbedImage(ctx, data)
	}
	return p.embedder.EmbedText(ctx, u.content)
}

// deriveDocumentKnowledge extracts a document's topic and concepts from
// its first few chunks via a single LLM call, falling back to the
// filename (and no concepts) when there isn't enough text, the gateway
// is unavailable, or the call fails.
func (p *Pipeline) deriveDocumentKnowledge(ctx context.Context, raw []parser.RawChunk, filePath string) (string, []string) {
	var samples []string
	for _, rc := range raw {
		if len(samples) >= maxTopicSampleChunks {
			break
		}
		if len(rc.Content) < 30 {
			continue
		}
		samples = append(samples, truncate(rc.Content, maxTopicSampleChars))
	}
	combined := strings.Join(samples, " ")

	if p.gateway == nil || len(combined) < 50 {
		return topic.FromFilename(filePath), nil
	}

	prompt := "Analyze this document and extract:\n" +
		"1. TOPIC: Main subject (2-4 words)\n" +
		"2. CONCEPTS: Key terms (5-10 single words)\n\n" +
		"Text: " + truncate(combined, maxTopicPromptChars) + "\n\n" +
		"Format:\n" +
		"TOPIC: <topic>\n" +
		"CONCEPTS: <word1>, <word2>, ...\n\n" +
		"Response:"

	raw2, _, err := p.gateway.Generate(ctx, prompt, ai.GenerateOptions{MaxTokens: 100, Temperature: 0.1})
	if err != nil {
		return topic.FromFilename(filePath), nil
	}

	return parseDocumentKnowledge(raw2, filePath)
}

func parseDocumentKnowledge(response, filePath string) (string, []string) {
	var extractedTopic string
	var concepts []string

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "TOPIC:"):
			_, value, _ := strings.Cut(line, ":")
			extractedTopic = strings.Trim(strings.TrimSpace(value), "\"'")
		case strings.HasPrefix(upper, "CONCEPTS:"):
			_, value, _ := strings.Cut(line, ":")
			for _, c := range strings.Split(value, ",") {
				if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
					concepts = append(concepts, c)
				}
			}
		}
	}

	lowerTopic := strings.ToLower(extractedTopic)
	if extractedTopic == "" || lowerTopic == "unknown" || lowerTopic == "none" {
		extractedTopic = topic.FromFilename(filePath)
	}
	if len(concepts) > 15 {
		concepts = concepts[:15]
	}
	return extractedTopic, concepts
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
