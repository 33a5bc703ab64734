// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/nskitch/hive-rag/internal/database"
	"github.com/nskitch/hive-rag/internal/vectordb"
)

// PurgeHandler handles database purge requests
type PurgeHandler struct {
	vectorDB      vectordb.VectorDB
	db            *sql.DB
	auditLogStore *database.AuditLogStore
}

// NewPurgeHandler creates a new purge handler
func NewPurgeHandler(vectorDB vectordb.VectorDB, db *sql.DB, auditLogStore *database.AuditLogStore) *PurgeHandler {
	return &PurgeHandler{
		vectorDB:      vectorDB,
		db:            db,
		auditLogStore: auditLogStore,
	}
}

// PurgeRequest represents a purge request
type PurgeRequest struct {
	OrganizationID string `json:"organization_id,omitempty"` // If empty, the request context's organization is used
}

// HandlePurge handles POST /api/v1/purge
func (h *PurgeHandler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
		return
	}

	var req PurgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid JSON"})
		return
	}

	// Get organization ID from context or request. Purge is always
	// scope-scoped -- there is no "purge everything" form, matching the
	// scope_id isolation that governs every other vectorDB operation.
	orgID := req.OrganizationID
	if orgID == "" {
		if orgIDVal := r.Context().Value("organization_id"); orgIDVal != nil {
			if orgIDStr, ok := orgIDVal.(string); ok {
				orgID = orgIDStr
			}
		}
	}
	if orgID == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "organization_id is required"})
		return
	}

	if h.vectorDB != nil {
		if err := h.vectorDB.DeleteByScope(r.Context(), orgID); err != nil {
			log.Printf("Failed to purge vectors for org %s: %v", orgID, err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "failed to purge vectors"})
			return
		}
	}

	if h.db != nil {
		if _, err := h.db.Exec("DELETE FROM chunks WHERE organization_id = ?", orgID); err != nil {
			log.Printf("Failed to purge chunks for org %s: %v", orgID, err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "failed to purge database"})
			return
		}
	}

	if h.auditLogStore != nil {
		_ = h.auditLogStore.LogAction(r.RemoteAddr, database.AuditActionPurge, "organization data purged", orgID)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

