// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/nskitch/hive-rag/internal/database"
	"github.com/nskitch/hive-rag/internal/embeddings"
	"github.com/nskitch/hive-rag/internal/vectordb"
)

var searchSpaces = []string{vectordb.SpaceText, vectordb.SpaceImage, vectordb.SpaceAudio}

// SearchRequest represents the search request payload
type SearchRequest struct {
	ScopeID string `json:"scope_id"`
	Query   string `json:"query"`
	TopK    int    `json:"top_k"`
}

// SearchResponse represents the search response
type SearchResponse struct {
	Matches []SearchMatch `json:"matches"`
	Count   int           `json:"count"`
}

// SearchMatch represents a single raw search result, independent of the
// grounded-answer pipeline's refusal/citation machinery. Mainly useful
// for debugging what a scope's retrieval surface actually looks like.
type SearchMatch struct {
	ChunkID       string   `json:"chunk_id"`
	Content       string   `json:"content"`
	SourceFile    string   `json:"source_file"`
	Topic         string   `json:"topic"`
	Score         float32  `json:"score"`
	MatchedSpaces []string `json:"matched_spaces"`
}

// SearchHandler holds dependencies for the raw vector search handler
type SearchHandler struct {
	vectorDB      vectordb.VectorDB
	embedder      embeddings.Embedder
	auditLogStore *database.AuditLogStore
}

// NewSearchHandler creates a new search handler with dependencies
func NewSearchHandler(vectorDB vectordb.VectorDB, embedder embeddings.Embedder, auditLogStore *database.AuditLogStore) *SearchHandler {
	return &SearchHandler{
		vectorDB:      vectorDB,
		embedder:      embedder,
		auditLogStore: auditLogStore,
	}
}

// HandleSearch handles POST /api/v1/search requests. This is the raw,
// unguarded retrieval surface -- no compatibility gate, no grading, no
// refusals -- kept for debugging what a scope's index actually holds.
// Answering user-facing questions goes through QueryHandler instead.
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": fmt.Sprintf("invalid JSON: %v", err)})
		return
	}

	if req.Query == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "query is required"})
		return
	}
	if req.ScopeID == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "scope_id is required"})
		return
	}
	if req.TopK <= 0 {
		req.TopK = 3
	}

	ctx := r.Context()

	queryVector, err := h.embedder.EmbedText(ctx, req.Query)
	if err != nil {
		log.Printf("Failed to generate query embedding: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": fmt.Sprintf("failed to generate embedding: %v", err)})
		return
	}

	matches, err := h.vectorDB.SearchMerged(ctx, queryVector, searchSpaces, req.TopK, 0, vectordb.Filter{"scope_id": req.ScopeID})
	if err != nil {
		log.Printf("Failed to search vector store: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": fmt.Sprintf("search failed: %v", err)})
		return
	}

	response := SearchResponse{
		Matches: make([]SearchMatch, 0, len(matches)),
		Count:   len(matches),
	}
	for _, match := range matches {
		response.Matches = append(response.Matches, SearchMatch{
			ChunkID:       match.ChunkID,
			Content:       match.Payload.Content,
			SourceFile:    match.Payload.SourceFile,
			Topic:         match.Payload.DocumentTopic,
			Score:         match.Similarity,
			MatchedSpaces: match.MatchedSpaces,
		})
	}

	if h.auditLogStore != nil {
		clientIP := getClientIP(r)
		details := fmt.Sprintf("Client [%s] searched for [%s]", clientIP, req.Query)
		if err := h.auditLogStore.LogAction(clientIP, database.AuditActionSearch, details, req.ScopeID); err != nil {
			log.Printf("Failed to log search audit entry: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
