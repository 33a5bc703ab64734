// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"net/http"

	"github.com/nskitch/hive-rag/internal/database"
)

// HandleClientShutdown handles client shutdown requests
func HandleClientShutdown(w http.ResponseWriter, r *http.Request, apiKeyStore *database.APIKeyStore) {
	if r.Method != http.MethodPost {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
		return
	}

	// TODO: Implement client shutdown logic
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

