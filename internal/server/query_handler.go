// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/nskitch/hive-rag/internal/database"
	"github.com/nskitch/hive-rag/internal/query"
)

// QueryTurn mirrors query.Turn for the wire request
type QueryTurn struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

// QueryRequest represents a grounded-answer request payload
type QueryRequest struct {
	ScopeID      string      `json:"scope_id"`
	Query        string      `json:"query"`
	TopK         int         `json:"top_k"`
	Conversation []QueryTurn `json:"conversation,omitempty"`
}

// QueryCitation mirrors query.Citation for the wire response
type QueryCitation struct {
	SourceFile string  `json:"file"`
	PageNumber int     `json:"page,omitempty"`
	Modality   string  `json:"modality"`
	Score      float32 `json:"score"`
}

// QueryResponse represents the JSON shape of a pipeline answer or refusal
type QueryResponse struct {
	Answer        string          `json:"answer,omitempty"`
	Citations     []QueryCitation `json:"citations,omitempty"`
	UsedChunkIDs  []string        `json:"used_chunk_ids,omitempty"`
	IsGrounded    bool            `json:"is_grounded,omitempty"`
	IsConflict    bool            `json:"is_conflicting,omitempty"`
	Confidence    float32         `json:"confidence,omitempty"`
	Conflicts     []string        `json:"conflicts,omitempty"`
	Refused       bool            `json:"refused"`
	Reason        string          `json:"reason,omitempty"`
	Message       string          `json:"message,omitempty"`
}

// QueryHandler runs incoming questions through the full grounded-answer
// pipeline (C6 through C13): topic analysis, the compatibility gate,
// retrieval, evidence grading, conflict detection, and generation.
type QueryHandler struct {
	pipeline      *query.Pipeline
	auditLogStore *database.AuditLogStore
}

// NewQueryHandler creates a new query handler with dependencies
func NewQueryHandler(pipeline *query.Pipeline, auditLogStore *database.AuditLogStore) *QueryHandler {
	return &QueryHandler{pipeline: pipeline, auditLogStore: auditLogStore}
}

// HandleQuery handles POST /api/v1/query requests
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
		return
	}

	var req QueryRequest
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

	conversation := make([]query.Turn, 0, len(req.Conversation))
	for _, t := range req.Conversation {
		conversation = append(conversation, query.Turn{Query: t.Query, Response: t.Response})
	}

	resp, refusal, err := h.pipeline.Answer(r.Context(), query.Request{
		ScopeID:      req.ScopeID,
		Query:        req.Query,
		TopK:         req.TopK,
		Conversation: conversation,
	})
	if err != nil {
		log.Printf("query pipeline failed for scope %s: %v", req.ScopeID, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": fmt.Sprintf("query failed: %v", err)})
		return
	}

	if h.auditLogStore != nil {
		clientIP := getClientIP(r)
		details := fmt.Sprintf("Client [%s] queried [%s]", clientIP, req.Query)
		if err := h.auditLogStore.LogAction(clientIP, database.AuditActionSearch, details, req.ScopeID); err != nil {
			log.Printf("Failed to log query audit entry: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if refusal != nil {
		json.NewEncoder(w).Encode(QueryResponse{
			Refused: true,
			Reason:  string(refusal.Reason),
			Message: refusal.Message,
		})
		return
	}

	citations := make([]QueryCitation, 0, len(resp.Citations))
	for _, c := range resp.Citations {
		citations = append(citations, QueryCitation{
			SourceFile: c.SourceFile,
			PageNumber: c.PageNumber,
			Modality:   c.Modality,
			Score:      c.Score,
		})
	}
	json.NewEncoder(w).Encode(QueryResponse{
		Answer:       resp.Answer,
		Citations:    citations,
		UsedChunkIDs: resp.UsedChunkIDs,
		IsGrounded:   resp.IsGrounded,
		IsConflict:   resp.IsConflict,
		Confidence:   resp.Confidence,
		Conflicts:    resp.Conflicts,
	})
}
