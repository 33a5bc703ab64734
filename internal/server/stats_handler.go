// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/nskitch/hive-rag/internal/vectordb"
)

// StatsResponse represents the system statistics for one scope.
type StatsResponse struct {
	ScopeID         string   `json:"scope_id"`
	DocumentsInScope int     `json:"documents_in_scope"`
	Topics          []string `json:"topics"`
	DatabaseStatus  string   `json:"database_status"`
	CollectionName  string   `json:"collection_name"`
}

// HandleStats returns per-scope ingestion statistics. Named vector
// storage has no scope-agnostic point count, so stats are reported
// against the scope_id query parameter.
func HandleStats(w http.ResponseWriter, r *http.Request, vectorDB vectordb.VectorDB, db *sql.DB) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	scopeID := r.URL.Query().Get("scope_id")

	stats := StatsResponse{
		ScopeID:        scopeID,
		CollectionName: "hive_rag",
		DatabaseStatus: "unknown",
	}

	if vectorDB != nil && scopeID != "" {
		catalog, err := vectorDB.GetCatalog(r.Context(), scopeID)
		if err != nil {
			log.Printf("Failed to get catalog for scope %s: %v", scopeID, err)
			stats.DocumentsInScope = -1
		} else {
			stats.DocumentsInScope = len(catalog.DocSummaries)
			stats.Topics = catalog.TopicList()
		}
	}

	if db != nil {
		if err := db.PingContext(r.Context()); err != nil {
			stats.DatabaseStatus = "disconnected"
		} else {
			var count int
			if err := db.QueryRowContext(r.Context(), "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
				stats.DatabaseStatus = "error"
			} else {
				stats.DatabaseStatus = "connected"
			}
		}
	} else {
		stats.DatabaseStatus = "not_initialized"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
