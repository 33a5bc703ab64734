// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package query

import (
	"context"
	"strings"

	"github.com/nskitch/hive-rag/internal/ai"
)

const fuzzyTopicJaccardThreshold = 0.6

// Gate is the C8 compatibility check: it decides whether a query's
// derived topic plausibly belongs to the scope's knowledge base before
// any retrieval work is spent on it. Four rules run in order, each one
// cheaper and more precise than the next; the LLM is only consulted once
// the first three all come back empty-handed.
type Gate struct {
	gateway *ai.Gateway
}

// NewGate constructs a Gate. gateway may be nil, in which case the
// semantic fallback rule always fails closed.
func NewGate(gateway *ai.Gateway) *Gate {
	return &Gate{gateway: gateway}
}

// Check runs the four compatibility rules in order and returns the first
// that decides the query is in-scope. If all four rules fail to confirm
// compatibility, it returns a no_match refusal. An internal error during
// the semantic fallback fails closed with compatibility_check_failed.
func (g *Gate) Check(ctx context.Context, query string, analysis Analysis, catalog NormalizedCatalog) (bool, *Refusal) {
	if conceptOverlap(analysis.Concepts, catalog.Concepts) {
		return true, nil
	}
	if conceptInAnyTopic(analysis.Concepts, catalog.Topics) {
		return true, nil
	}
	if fuzzyTopicMatch(analysis.Topic, catalog.Topics) {
		return true, nil
	}

	ok, err := g.semanticFallback(ctx, analysis.Topic, catalog.Topics)
	if err != nil {
		return false, refusalCompatibilityCheckFailed(query)
	}
	if ok {
		return true, nil
	}

	return false, refusalNoMatch(query, analysis.Topic, catalog.Topics)
}

// conceptOverlap reports whether any derived concept appears as a
// substring of, or contains, any catalog concept.
func conceptOverlap(queryConcepts, catalogConcepts []string) bool {
	for _, qc := range queryConcepts {
		for _, cc := range catalogConcepts {
			if qc == "" || cc == "" {
				continue
			}
			if strings.Contains(cc, qc) || strings.Contains(qc, cc) {
				return true
			}
		}
	}
	return false
}

// conceptInAnyTopic reports whether any derived concept appears as a
// substring of any catalog topic.
func conceptInAnyTopic(queryConcepts, catalogTopics []string) bool {
	for _, qc := range queryConcepts {
		if qc == "" {
			continue
		}
		for _, t := range catalogTopics {
			if strings.Contains(t, qc) {
				return true
			}
		}
	}
	return false
}

// fuzzyTopicMatch reports whether the query topic is a substring match
// against a catalog topic, or its word-token Jaccard similarity against
// one meets the threshold.
func fuzzyTopicMatch(queryTopic string, catalogTopics []string) bool {
	qt := strings.ToLower(queryTopic)
	if qt == "" {
		return false
	}
	for _, t := range catalogTopics {
		ct := strings.ToLower(t)
		if ct == "" {
			continue
		}
		if strings.Contains(ct, qt) || strings.Contains(qt, ct) {
			return true
		}
		if jaccardSimilarity(qt, ct) >= fuzzyTopicJaccardThreshold {
			return true
		}
	}
	return false
}

func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}

// semanticFallback is the last-resort LLM check: "Is '<topic>' related
// to or a sub-topic of the Knowledge Base? Respond with exactly YES or NO."
func (g *Gate) semanticFallback(ctx context.Context, queryTopic string, catalogTopics []string) (bool, error) {
	if g.gateway == nil {
		return false, nil
	}
	if len(catalogTopics) == 0 {
		return false, nil
	}

	prompt := "The Knowledge Base covers these topics: " + strings.Join(catalogTopics, ", ") + ".\n" +
		"Is '" + queryTopic + "' related to or a sub-topic of the Knowledge Base? Respond with exactly YES or NO."

	answer, _, err := g.gateway.AskYesNo(ctx, prompt)
	if err != nil {
		return false, err
	}
	return answer == "YES", nil
}
