// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package query

import (
	"context"
	"fmt"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nskitch/hive-rag/internal/ai"
)

const (
	maxConflictChunks   = 5
	maxConflictContent  = 1500
	conflictSystemPrompt = "You are a conflict detection expert. Your task is to identify contradictory " +
		"information between two evidence sources.\n\n" +
		"Respond ONLY in this exact format:\n" +
		"Conflict: [yes/no]\n" +
		"Description: [brief summary of the contradiction, or 'No conflict']\n\n" +
		"A conflict exists when the sources provide incompatible or contradictory answers to the same question. " +
		"Minor differences in detail are NOT conflicts unless they fundamentally contradict each other."
)

// ConflictDetector is the C11 step: it cross-references every pair of
// passed evidence chunks drawn from different source files and flags
// pairs the LLM judges as contradictory. It never causes a refusal --
// a timeout or error on any pair is simply treated as no conflict.
type ConflictDetector struct {
	gateway *ai.Gateway
}

// NewConflictDetector constructs a ConflictDetector.
func NewConflictDetector(gateway *ai.Gateway) *ConflictDetector {
	return &ConflictDetector{gateway: gateway}
}

// Detect checks all cross-source pairs among the first maxConflictChunks
// passed chunks and returns the human-readable descriptions of any
// detected conflicts.
func (d *ConflictDetector) Detect(ctx context.Context, query string, passed []GradedChunk) []string {
	if d.gateway == nil || len(passed) < 2 {
		return nil
	}

	docs := passed
	if len(docs) > maxConflictChunks {
		docs = docs[:maxConflictChunks]
	}

	type pair struct{ i, j int }
	var pairs []pair
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			if sameSourceFile(docs[i], docs[j]) {
				continue
			}
			pairs = append(pairs, pair{i, j})
		}
	}
	if len(pairs) == 0 {
		return nil
	}

	conflicts := make([]string, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	for idx, p := range pairs {
		idx, p := idx, p
		g.Go(func() error {
			conflicts[idx] = d.checkPair(gctx, query, docs[p.i], docs[p.j])
			return nil
		})
	}
	_ = g.Wait() // checkPair never returns an error; a failed call degrades to "no conflict"

	out := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func sameSourceFile(a, b GradedChunk) bool {
	sa := a.Match.Payload.SourceFile
	sb := b.Match.Payload.SourceFile
	return sa != "" && sb != "" && sa == sb
}

func (d *ConflictDetector) checkPair(ctx context.Context, query string, a, b GradedChunk) string {
	content1 := truncate(a.Match.Payload.Content, maxConflictContent)
	content2 := truncate(b.Match.Payload.Content, maxConflictContent)
	name1 := sourceFileName(a.Match.Payload.SourceFile)
	name2 := sourceFileName(b.Match.Payload.SourceFile)

	prompt := fmt.Sprintf("%s\n\nQuestion: %s\n\nSource A (%s):\n%s\n\nSource B (%s):\n%s\n\n"+
		"Do these sources provide contradictory information relevant to the question?",
		conflictSystemPrompt, query, name1, content1, name2, content2)

	raw, _, err := d.gateway.Generate(ctx, prompt, ai.GenerateOptions{
		MaxTokens:     150,
		Temperature:   0.1,
		StopSequences: []string{"Question:", "Source A:", "Source B:"},
	})
	if err != nil {
		return ""
	}

	hasConflict, description := parseConflictResponse(raw)
	if !hasConflict || description == "" || strings.Contains(strings.ToLower(description), "no conflict") {
		return ""
	}
	return fmt.Sprintf("Conflict between %s and %s: %s", name1, name2, description)
}

func parseConflictResponse(raw string) (bool, string) {
	var conflictLine, description string
	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, "Conflict:"):
			conflictLine = strings.ToLower(line)
		case strings.HasPrefix(line, "Description:"):
			description = strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
		}
	}
	return strings.Contains(conflictLine, "yes"), description
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func sourceFileName(p string) string {
	if p == "" {
		return "Unknown"
	}
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}
