// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nskitch/hive-rag/internal/database"
	"github.com/nskitch/hive-rag/internal/ingest"
	"github.com/nskitch/hive-rag/internal/worker"
)

// IngestRequest represents the ingestion request payload
type IngestRequest struct {
	FilePath string            `json:"file_path"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// IngestHandler holds dependencies for the ingest handler
type IngestHandler struct {
	pipeline      *ingest.Pipeline
	wsManager     *WebSocketManager
	analystPool   *worker.AnalystPool
	eventLogger   *database.EventLogger
	auditLogStore *database.AuditLogStore
}

// NewIngestHandler creates a new ingest handler with dependencies
func NewIngestHandler(pipeline *ingest.Pipeline, wsManager *WebSocketManager, analystPool *worker.AnalystPool, eventLogger *database.EventLogger, auditLogStore *database.AuditLogStore) *IngestHandler {
	return &IngestHandler{
		pipeline:      pipeline,
		wsManager:     wsManager,
		analystPool:   analystPool,
		eventLogger:   eventLogger,
		auditLogStore: auditLogStore,
	}
}

// HandleIngest handles POST /api/v1/ingest requests. The request carries
// raw content rather than a path the server can read directly, so the
// content is staged to a temp file (preserving the original extension,
// since the parser dispatches by it) before running the ingest pipeline.
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": fmt.Sprintf("invalid JSON: %v", err)})
		return
	}

	fmt.Printf(" [RECEIVED] %s (%d chars)\n", req.FilePath, len(req.Content))
	if len(req.Metadata) > 0 {
		fmt.Printf(" [METADATA] %+v\n", req.Metadata)
	}

	scopeID := req.Metadata["client_id"]
	if scopeID == "" {
		if orgIDVal := r.Context().Value("organization_id"); orgIDVal != nil {
			if orgIDStr, ok := orgIDVal.(string); ok {
				scopeID = orgIDStr
			}
		}
	}
	if scopeID == "" {
		scopeID = "default"
	}

	sourceFile := req.Metadata["filename"]
	if sourceFile == "" {
		sourceFile = filepath.Base(req.FilePath)
	}

	stagedPath, err := stageContentToTempFile(req.FilePath, req.Content)
	if err != nil {
		log.Printf("Failed to stage content for ingestion: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": fmt.Sprintf("failed to stage content: %v", err)})
		return
	}
	defer os.Remove(stagedPath)

	result, err := h.pipeline.Ingest(r.Context(), ingest.Request{
		ScopeID:    scopeID,
		FilePath:   stagedPath,
		SourceFile: sourceFile,
	})
	if err != nil {
		log.Printf("[ERROR] Job failed: ingestion failed for %s: %v", req.FilePath, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": fmt.Sprintf("ingestion failed: %v", err)})
		return
	}

	fmt.Printf(" [INGESTED] %s: %d/%d chunks stored (topic=%q)\n", req.FilePath, result.ChunksStored, result.ChunksTotal, result.Topic)

	if h.eventLogger != nil {
		details := fmt.Sprintf("Ingested %d/%d chunks (topic=%s)", result.ChunksStored, result.ChunksTotal, result.Topic)
		if err := h.eventLogger.LogEvent("ingest", sourceFile, details); err != nil {
			log.Printf("Failed to log ingestion event: %v", err)
		}
	}

	if h.auditLogStore != nil {
		clientIP := getClientIPFromRequest(r)
		orgID := ""
		if orgIDVal := r.Context().Value("organization_id"); orgIDVal != nil {
			if orgIDStr, ok := orgIDVal.(string); ok {
				orgID = orgIDStr
			}
		}
		details := fmt.Sprintf("Client [%s] uploaded file [%s] (%d chunks)", clientIP, sourceFile, result.ChunksStored)
		if err := h.auditLogStore.LogAction(clientIP, database.AuditActionIngest, details, orgID); err != nil {
			log.Printf("Failed to log ingest audit entry: %v", err)
		}
	}

	if h.analystPool != nil {
		job := worker.AnalystJob{
			FilePath: req.FilePath,
			Content:  req.Content,
			Metadata: req.Metadata,
			ClientID: req.Metadata["client_id"],
		}
		h.analystPool.Enqueue(job)
	}

	// Legacy notification logic: flag documents containing "CONFIDENTIAL".
	if h.wsManager != nil {
		if strings.Contains(strings.ToUpper(req.Content), "CONFIDENTIAL") {
			clientID := req.Metadata["client_id"]
			if clientID != "" {
				notification := NotificationMessage{
					Type:    "ALERT",
					Message: fmt.Sprintf("Sensitive document detected: %s", sourceFile),
					Level:   "critical",
				}
				if err := h.wsManager.SendNotification(clientID, notification); err != nil {
					log.Printf("Failed to send notification to client %s: %v", clientID, err)
				}
				if h.eventLogger != nil {
					if err := h.eventLogger.LogEvent("alert", sourceFile, "Alert triggered: CONFIDENTIAL keyword detected"); err != nil {
						log.Printf("Failed to log alert event: %v", err)
					}
				}
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":        "ok",
		"message":       fmt.Sprintf("Processed %s (%d chunks stored)", req.FilePath, result.ChunksStored),
		"chunks_total":  result.ChunksTotal,
		"chunks_stored": result.ChunksStored,
		"chunks_failed": result.ChunksFailed,
		"topic":         result.Topic,
		"concepts":      result.Concepts,
	})
}

func stageContentToTempFile(originalPath, content string) (string, error) {
	ext := filepath.Ext(originalPath)
	if ext == "" {
		ext = ".txt"
	}
	f, err := os.CreateTemp("", "hive-ingest-*"+ext)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// getClientIPFromRequest extracts the client IP address from the request
func getClientIPFromRequest(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
