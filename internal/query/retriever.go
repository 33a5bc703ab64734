// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package query

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nskitch/hive-rag/internal/embeddings"
	"github.com/nskitch/hive-rag/internal/vectordb"
)

const mmrLambda = 0.7

var searchSpaces = []string{vectordb.SpaceText, vectordb.SpaceImage, vectordb.SpaceAudio}

// Retriever is the C9 step: it embeds every expanded query concurrently,
// searches all named vector spaces for each, merges hits by chunk id,
// and reranks the merged set with MMR once it exceeds top_k.
type Retriever struct {
	embedder embeddings.Embedder
	db       vectordb.VectorDB
}

// NewRetriever constructs a Retriever.
func NewRetriever(embedder embeddings.Embedder, db vectordb.VectorDB) *Retriever {
	return &Retriever{embedder: embedder, db: db}
}

// Retrieve embeds each of analysis.ExpandedQueries concurrently, runs a
// SearchMerged per embedding concurrently, merges the results across
// queries by chunk id (keeping the highest similarity and the union of
// matched spaces), and applies MMR once the candidate pool exceeds topK.
func (r *Retriever) Retrieve(ctx context.Context, scopeID string, analysis Analysis, topK int) ([]vectordb.Match, error) {
	if topK <= 0 {
		topK = 10
	}
	queries := analysis.ExpandedQueries
	if len(queries) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			v, err := r.embedder.EmbedText(gctx, q)
			if err != nil {
				return err
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	filter := vectordb.Filter{"scope_id": scopeID}
	perQuery := make([][]vectordb.Match, len(vectors))
	g, gctx = errgroup.WithContext(ctx)
	for i, v := range vectors {
		i, v := i, v
		g.Go(func() error {
			hits, err := r.db.SearchMerged(gctx, v, searchSpaces, topK*3, 0, filter)
			if err != nil {
				return err
			}
			perQuery[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeByChunkID(perQuery)
	if len(merged) <= topK {
		sortMatches(merged)
		return merged, nil
	}

	return mmrRerank(merged, topK), nil
}

// mergeByChunkID folds multiple queries' hit lists into one, keeping the
// highest similarity and union of matched spaces per chunk id.
func mergeByChunkID(perQuery [][]vectordb.Match) []vectordb.Match {
	byID := make(map[string]*vectordb.Match)
	for _, hits := range perQuery {
		for _, hit := range hits {
			existing, ok := byID[hit.ChunkID]
			if !ok {
				h := hit
				byID[hit.ChunkID] = &h
				continue
			}
			existing.MatchedSpaces = appendUniqueSpaces(existing.MatchedSpaces, hit.MatchedSpaces)
			if hit.Similarity > existing.Similarity {
				existing.Similarity = hit.Similarity
				if hit.Vector != nil {
					existing.Vector = hit.Vector
				}
			} else if existing.Vector == nil && hit.Vector != nil {
				existing.Vector = hit.Vector
			}
		}
	}

	out := make([]vectordb.Match, 0, len(byID))
	for _, m := range byID {
		out = append(out, *m)
	}
	return out
}

func appendUniqueSpaces(have, add []string) []string {
	seen := make(map[string]bool, len(have))
	for _, s := range have {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			have = append(have, s)
		}
	}
	return have
}

func sortMatches(matches []vectordb.Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})
}

// mmrRerank greedily selects topK matches maximizing
// lambda*Sim(d,q) - (1-lambda)*max(Sim(d,selected)), using each
// candidate's best-matching named vector for the diversity term.
// Relevance is c.Similarity, the max similarity mergeByChunkID already
// computed across every paraphrase query and named-vector space -- the
// first pick this produces is always the highest-similarity candidate.
func mmrRerank(candidates []vectordb.Match, topK int) []vectordb.Match {
	n := len(candidates)
	relevance := make([]float64, n)
	for i, c := range candidates {
		relevance[i] = float64(c.Similarity)
	}

	selected := make([]int, 0, topK)
	remaining := make([]bool, n)
	for i := range remaining {
		remaining[i] = true
	}

	for len(selected) < topK && len(selected) < n {
		bestIdx := -1
		var bestScore float64
		for i := 0; i < n; i++ {
			if !remaining[i] {
				continue
			}
			maxDiv := 0.0
			for _, s := range selected {
				if candidates[i].Vector == nil || candidates[s].Vector == nil {
					continue
				}
				if sim := cosine(candidates[i].Vector, candidates[s].Vector); sim > maxDiv {
					maxDiv = sim
				}
			}
			score := mmrLambda*relevance[i] - (1-mmrLambda)*maxDiv
			if bestIdx == -1 || score > bestScore ||
				(score == bestScore && candidates[i].ChunkID < candidates[bestIdx].ChunkID) {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		selected = append(selected, bestIdx)
		remaining[bestIdx] = false
	}

	out := make([]vectordb.Match, 0, len(selected))
	for _, idx := range selected {
		out = append(out, candidates[idx])
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
