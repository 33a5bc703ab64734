// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package query

import (
	"context"
	"strings"

	"github.com/nskitch/hive-rag/internal/ai"
	"github.com/nskitch/hive-rag/internal/topic"
)

const maxExpandedQueries = 3

// Analyzer derives a query's topic, concepts, and up to two alternative
// phrasings before retrieval runs.
type Analyzer struct {
	gateway *ai.Gateway
}

// NewAnalyzer constructs an Analyzer. gateway may be nil, in which case
// Analyze always falls back to token-based extraction.
func NewAnalyzer(gateway *ai.Gateway) *Analyzer {
	return &Analyzer{gateway: gateway}
}

// Analyze runs the C6 step. When catalog is empty the LLM is skipped
// entirely and topic/concepts are derived from the query tokens alone --
// there is nothing in the knowledge base to ground an LLM call against.
func (a *Analyzer) Analyze(ctx context.Context, q string, catalog NormalizedCatalog) Analysis {
	if catalog.IsEmpty() {
		return a.analyzeEmptyKnowledgeBase(q)
	}

	topicName, concepts, ok := a.extractTopicAndConcepts(ctx, q)
	if !ok {
		topicName = topic.TitleCaseWords(q, 2)
		concepts = topic.ConceptsFromText(q, 5)
	}

	expanded := []string{q}
	if alts := a.expandQuery(ctx, q); len(alts) > 0 {
		expanded = append(expanded, alts...)
	}
	if len(expanded) > maxExpandedQueries {
		expanded = expanded[:maxExpandedQueries]
	}

	return Analysis{
		Topic:           topicName,
		Concepts:        concepts,
		ExpandedQueries: expanded,
	}
}

func (a *Analyzer) analyzeEmptyKnowledgeBase(q string) Analysis {
	return Analysis{
		Topic:           topic.TitleCaseWords(q, 2),
		Concepts:        topic.ConceptsFromText(q, 5),
		ExpandedQueries: []string{q},
	}
}

// extractTopicAndConcepts asks the LLM for a single "Topic: ... |
// Concepts: c1, c2, ..." line. Any error or malformed response reports
// ok=false so the caller falls back to token extraction.
func (a *Analyzer) extractTopicAndConcepts(ctx context.Context, q string) (string, []string, bool) {
	if a.gateway == nil {
		return "", nil, false
	}

	prompt := "Analyze this question and respond in exactly this format:\n" +
		"Topic: <one short topic phrase> | Concepts: <comma-separated key concepts>\n\n" +
		"Question: " + q

	raw, _, err := a.gateway.Generate(ctx, prompt, ai.GenerateOptions{MaxTokens: 100})
	if err != nil {
		return "", nil, false
	}

	return parseTopicConceptsLine(raw)
}

func parseTopicConceptsLine(raw string) (string, []string, bool) {
	topicPart, conceptsPart, found := strings.Cut(raw, "|")
	if !found {
		return "", nil, false
	}

	topicPart = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(topicPart), "Topic:"))
	conceptsPart = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(conceptsPart), "Concepts:"))

	cleanTopic := topic.CleanLLMTopic(topicPart)
	if cleanTopic == "" {
		return "", nil, false
	}

	var concepts []string
	for _, c := range strings.Split(conceptsPart, ",") {
		if c = strings.TrimSpace(c); c != "" {
			concepts = append(concepts, c)
		}
	}

	return cleanTopic, concepts, true
}

// expandQuery asks the LLM for up to two alternative phrasings of q. A
// failure or empty response simply yields no alternatives -- retrieval
// still runs against the original query.
func (a *Analyzer) expandQuery(ctx context.Context, q string) []string {
	if a.gateway == nil {
		return nil
	}

	prompt := "Generate up to 2 alternative phrasings of the following question that preserve its " +
		"meaning, one per line, with no numbering or extra commentary.\n\nQuestion: " + q

	raw, _, err := a.gateway.Generate(ctx, prompt, ai.GenerateOptions{MaxTokens: 120})
	if err != nil {
		return nil
	}

	var alts []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.-) ")
		if line == "" || strings.EqualFold(line, q) {
			continue
		}
		alts = append(alts, line)
		if len(alts) >= maxExpandedQueries-1 {
			break
		}
	}
	return alts
}
