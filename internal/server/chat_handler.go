// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/nskitch/hive-rag/internal/database"
	"github.com/nskitch/hive-rag/internal/query"
)

// ChatHandler handles chat/Q&A requests. Unlike QueryHandler, it carries
// authenticated-session bookkeeping (chat history, usage accounting) on
// top of the same grounded-answer pipeline.
type ChatHandler struct {
	pipeline      *query.Pipeline
	auditLogStore *database.AuditLogStore
	chatStore     *database.ChatStore
	orgStore      *database.OrganizationStore
	usageStore    *database.UsageStore
}

// NewChatHandler creates a new chat handler
func NewChatHandler(pipeline *query.Pipeline, auditLogStore *database.AuditLogStore, chatStore *database.ChatStore, orgStore *database.OrganizationStore, usageStore *database.UsageStore) *ChatHandler {
	return &ChatHandler{
		pipeline:      pipeline,
		auditLogStore: auditLogStore,
		chatStore:     chatStore,
		orgStore:      orgStore,
		usageStore:    usageStore,
	}
}

// ChatRequest represents a chat request
type ChatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse represents a chat response
type ChatResponse struct {
	Answer    string                   `json:"answer"`
	SessionID string                   `json:"session_id"`
	Citations []map[string]interface{} `json:"citations,omitempty"`
}

// HandleChat handles POST /api/v1/chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid JSON"})
		return
	}

	if req.Query == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "query is required"})
		return
	}

	// Get user from context
	user := r.Context().Value("user")
	if user == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "not authenticated"})
		return
	}

	dbUser, ok := user.(*database.User)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid user type"})
		return
	}

	// Get organization ID from context
	orgID := ""
	if orgIDVal := r.Context().Value("organization_id"); orgIDVal != nil {
		if orgIDStr, ok := orgIDVal.(string); ok {
			orgID = orgIDStr
		}
	}

	ctx := r.Context()
	resp, refusal, err := h.pipeline.Answer(ctx, query.Request{ScopeID: orgID, Query: req.Query})
	if err != nil {
		log.Printf("chat pipeline failed: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "failed to answer query"})
		return
	}

	answer := ""
	var citationSources []query.Citation
	if refusal != nil {
		answer = refusal.Message
	} else {
		answer = resp.Answer
		citationSources = resp.Citations
	}

	// Create or get session
	sessionID := req.SessionID
	if sessionID == "" {
		// Create new session
		session, err := h.chatStore.CreateSession(dbUser.ID, orgID, req.Query)
		if err != nil {
			log.Printf("Failed to create session: %v", err)
		} else {
			sessionID = session.ID
		}
	}

	// Save messages to session
	if sessionID != "" {
		// Save user message
		if err := h.chatStore.AddMessage(sessionID, "user", req.Query, nil); err != nil {
			log.Printf("Failed to save user message: %v", err)
		}

		// Save assistant message with citations
		citations := make([]map[string]interface{}, 0, len(citationSources))
		for _, c := range citationSources {
			citations = append(citations, map[string]interface{}{
				"source_file": c.SourceFile,
				"page_number": c.PageNumber,
			})
		}

		if err := h.chatStore.AddMessage(sessionID, "assistant", answer, map[string]interface{}{
			"citations": citations,
		}); err != nil {
			log.Printf("Failed to save assistant message: %v", err)
		}
	}

	// Build response
	response := ChatResponse{
		Answer:    answer,
		SessionID: sessionID,
		Citations: make([]map[string]interface{}, 0),
	}

	for _, c := range citationSources {
		response.Citations = append(response.Citations, map[string]interface{}{
			"source_file": c.SourceFile,
			"page_number": c.PageNumber,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleChatPage serves the chat page
func HandleChatPage(w http.ResponseWriter, r *http.Request, metadataStore *database.SystemMetadataStore, orgStore *database.OrganizationStore) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := renderTemplate(w, "chat.html", nil); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

// HandleAnalystPage serves the analyst page
func HandleAnalystPage(w http.ResponseWriter, r *http.Request, metadataStore *database.SystemMetadataStore, orgStore *database.OrganizationStore) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := renderTemplate(w, "analyst.html", nil); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

