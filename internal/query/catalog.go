// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package query

import (
	"context"
	"fmt"

	"github.com/nskitch/hive-rag/internal/topic"
	"github.com/nskitch/hive-rag/internal/vectordb"
)

// NormalizedCatalog is the scope catalog with every topic/concept run
// through internal/topic's normalization pass.
type NormalizedCatalog struct {
	Topics   []string
	Concepts []string
}

// IsEmpty reports whether the scope has no ingested documents.
func (c NormalizedCatalog) IsEmpty() bool {
	return len(c.Topics) == 0 && len(c.Concepts) == 0
}

// LoadCatalog fetches and normalizes the scope catalog.
func LoadCatalog(ctx context.Context, db vectordb.VectorDB, scopeID string) (NormalizedCatalog, error) {
	raw, err := db.GetCatalog(ctx, scopeID)
	if err != nil {
		return NormalizedCatalog{}, fmt.Errorf("query: failed to load catalog: %w", err)
	}

	return NormalizedCatalog{
		Topics:   dedupStrings(normalizeTopics(raw.TopicList())),
		Concepts: dedupStrings(topic.NormalizeConcepts(raw.ConceptList())),
	}, nil
}

func normalizeTopics(topics []string) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = topic.NormalizeTopic(t)
	}
	return out
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
