// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package query

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/nskitch/hive-rag/internal/ai"
	"github.com/nskitch/hive-rag/internal/vectordb"
)

const (
	maxGradedContentChars = 2000
	chunkPassScore        = 0.5
	aggregatePassScore    = 0.4
	scoreYes              = 0.9
	scoreNo               = 0.0
	scoreOnError          = 0.5
)

// Grader is the C10 step: it grades each retrieved chunk's relevance to
// the query with a single YES/NO LLM call and decides whether the
// retrieved evidence, taken as a whole, is sufficient to answer from.
type Grader struct {
	gateway *ai.Gateway
}

// NewGrader constructs a Grader.
func NewGrader(gateway *ai.Gateway) *Grader {
	return &Grader{gateway: gateway}
}

// GradeResult is the outcome of grading a candidate set.
type GradeResult struct {
	Graded       []GradedChunk
	Passed       []GradedChunk
	AverageScore float32
	IsSufficient bool
}

// RefusalReason reports which refusal, if any, this grade result routes
// to: insufficient_evidence when nothing passed, topic_drift when some
// chunks passed but the aggregate score still falls short, or "" when
// the evidence is sufficient.
func (r GradeResult) RefusalReason() RefusalReason {
	if r.IsSufficient {
		return ""
	}
	if len(r.Passed) == 0 {
		return ReasonInsufficientEvidence
	}
	return ReasonTopicDrift
}

// Grade scores every candidate concurrently. A query's evidence is
// sufficient only when at least one chunk passes (score >= 0.5) and the
// average score across all graded chunks is >= 0.4.
func (g *Grader) Grade(ctx context.Context, query string, candidates []vectordb.Match) GradeResult {
	graded := make([]GradedChunk, len(candidates))

	group, gctx := errgroup.WithContext(ctx)
	for i, c := range candidates {
		i, c := i, c
		group.Go(func() error {
			graded[i] = GradedChunk{Match: c, Score: g.gradeOne(gctx, query, c.Payload.Content)}
			return nil
		})
	}
	_ = group.Wait() // gradeOne never returns an error; grading failures degrade to scoreOnError

	var passed []GradedChunk
	var total float32
	for _, gc := range graded {
		total += gc.Score
		if gc.Score >= chunkPassScore {
			passed = append(passed, gc)
		}
	}

	avg := float32(0)
	if len(graded) > 0 {
		avg = total / float32(len(graded))
	}

	return GradeResult{
		Graded:       graded,
		Passed:       passed,
		AverageScore: avg,
		IsSufficient: len(passed) >= 1 && avg >= aggregatePassScore,
	}
}

// gradeOne asks "is this document relevant to the question?" for a
// single chunk, truncating its content to the first 2000 characters. A
// gateway error or ambiguous answer scores 0.5 rather than failing the
// whole grading pass.
func (g *Grader) gradeOne(ctx context.Context, query, content string) float32 {
	if g.gateway == nil {
		return scoreOnError
	}

	if len(content) > maxGradedContentChars {
		content = content[:maxGradedContentChars]
	}

	prompt := "Task: Is this document relevant to the question?\n" +
		"Question: " + query + "\n" +
		"Document: " + content + "\n" +
		"Respond with only 'YES' or 'NO'."

	answer, _, err := g.gateway.AskYesNo(ctx, prompt)
	if err != nil {
		return scoreOnError
	}
	if answer == "YES" {
		return scoreYes
	}
	return scoreNo
}
