// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package query

import (
	"context"
	"time"

	"github.com/nskitch/hive-rag/internal/ai"
	"github.com/nskitch/hive-rag/internal/embeddings"
	"github.com/nskitch/hive-rag/internal/vectordb"
)

const defaultPipelineTimeout = 60 * time.Second
const defaultTopK = 10

// Pipeline composes C6 through C13 into the single request/response
// entrypoint the server handlers call. Unlike the teacher's ingestion
// side (queue + worker pool), the query path is a straight, synchronous
// function chain -- a query is answered or refused within one request.
type Pipeline struct {
	db         vectordb.VectorDB
	analyzer   *Analyzer
	gate       *Gate
	retriever  *Retriever
	grader     *Grader
	conflicts  *ConflictDetector
	generator  *Generator
	timeout    time.Duration
}

// NewPipeline wires the full query pipeline from its component
// dependencies. gateway may be nil (degrades every LLM-backed stage to
// its token-based or fail-closed fallback); db and embedder must not be.
func NewPipeline(db vectordb.VectorDB, embedder embeddings.Embedder, gateway *ai.Gateway) *Pipeline {
	return &Pipeline{
		db:        db,
		analyzer:  NewAnalyzer(gateway),
		gate:      NewGate(gateway),
		retriever: NewRetriever(embedder, db),
		grader:    NewGrader(gateway),
		conflicts: NewConflictDetector(gateway),
		generator: NewGenerator(gateway),
		timeout:   defaultPipelineTimeout,
	}
}

// Answer runs the full C6->C13 chain for one request. Exactly one of
// (*Response, *Refusal) is non-nil on success; err is only set for
// infrastructure failures the pipeline cannot itself convert into a
// typed refusal (e.g. the vector store being unreachable during
// retrieval). A catalog-lookup failure, by contrast, is always
// reported as a compatibility_check_failed refusal, never as err.
func (p *Pipeline) Answer(ctx context.Context, req Request) (*Response, *Refusal, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	catalog, err := LoadCatalog(ctx, p.db, req.ScopeID)
	if err != nil {
		return nil, refusalCompatibilityCheckFailed(req.Query), nil
	}

	if catalog.IsEmpty() {
		return nil, refusalEmptyKnowledgeBase(req.Query), nil
	}

	analysis := p.analyzer.Analyze(ctx, req.Query, catalog)

	allowed, refusal := p.gate.Check(ctx, req.Query, analysis, catalog)
	if !allowed {
		return nil, refusal, nil
	}

	candidates, err := p.retriever.Retrieve(ctx, req.ScopeID, analysis, topK)
	if err != nil {
		return nil, nil, err
	}
	if len(candidates) == 0 {
		return nil, refusalNoDocumentsRetrieved(req.Query), nil
	}

	grade := p.grader.Grade(ctx, req.Query, candidates)
	if !grade.IsSufficient {
		reason := grade.RefusalReason()
		return nil, newRefusal(reason, req.Query, catalog.Topics, refusalMessageFor(reason, req.Query)), nil
	}

	conflicts := p.conflicts.Detect(ctx, req.Query, grade.Passed)

	resp, err := p.generator.Generate(ctx, req.Query, grade.Passed, conflicts, req.Conversation)
	if err != nil {
		return nil, refusalGenerationFailed(req.Query), nil
	}
	resp.Confidence = grade.AverageScore

	return resp, nil, nil
}

// refusalMessageFor returns the fixed template message for a reason
// derived mid-pipeline (grading), where the reason constant alone
// doesn't carry enough context to build the full Refusal value inline.
func refusalMessageFor(reason RefusalReason, query string) string {
	switch reason {
	case ReasonTopicDrift:
		return refusalTopicDrift(query).Message
	default:
		return refusalInsufficientEvidence(query).Message
	}
}
