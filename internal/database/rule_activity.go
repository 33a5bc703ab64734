// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// RuleMatch records a single rule hit produced by the analyst pool, either
// against one uploaded document or across a pair of documents.
type RuleMatch struct {
	ID             int64     `json:"id"`
	RuleID         int64     `json:"rule_id"`
	RuleQuery      string    `json:"rule_query"`
	UploadedDoc    string    `json:"uploaded_doc"`
	MatchedDoc     string    `json:"matched_doc,omitempty"`
	MatchType      string    `json:"match_type"` // "single_doc" or "cross_doc"
	AIExplanation  string    `json:"ai_explanation,omitempty"`
	MatchedChunks  []string  `json:"matched_chunks,omitempty"`
	ClientID       string    `json:"client_id,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RuleMatchStore persists rule matches reported by the analyst pool. It
// satisfies worker.RuleMatchStore.
type RuleMatchStore struct {
	db *sql.DB
}

// NewRuleMatchStore creates a new rule match store.
func NewRuleMatchStore(db *sql.DB) (*RuleMatchStore, error) {
	store := &RuleMatchStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize rule matches schema: %w", err)
	}
	return store, nil
}

func (s *RuleMatchStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS rule_matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		rule_id INTEGER NOT NULL,
		rule_query TEXT NOT NULL,
		uploaded_doc TEXT NOT NULL,
		matched_doc TEXT,
		match_type TEXT NOT NULL,
		ai_explanation TEXT,
		matched_chunks TEXT,
		client_id TEXT,
		organization_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_rule_matches_rule_id ON rule_matches(rule_id);
	CREATE INDEX IF NOT EXISTS idx_rule_matches_organization_id ON rule_matches(organization_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// AddMatch stores a rule match. match is expected to be the
// map[string]interface{} shape the analyst pool builds, keyed by RuleID,
// RuleQuery, UploadedDoc, MatchedDoc, MatchType, AIExplanation,
// MatchedChunks, ClientID, OrganizationID.
func (s *RuleMatchStore) AddMatch(ctx context.Context, match interface{}) error {
	m, ok := match.(map[string]interface{})
	if !ok {
		return fmt.Errorf("rule match store: unsupported match payload type %T", match)
	}

	var chunksJSON string
	if chunks, ok := m["MatchedChunks"].([]string); ok {
		b, err := json.Marshal(chunks)
		if err == nil {
			chunksJSON = string(b)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rule_matches (rule_id, rule_query, uploaded_doc, matched_doc, match_type, ai_explanation, matched_chunks, client_id, organization_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toInt64(m["RuleID"]), toString(m["RuleQuery"]), toString(m["UploadedDoc"]), toString(m["MatchedDoc"]),
		toString(m["MatchType"]), toString(m["AIExplanation"]), chunksJSON, toString(m["ClientID"]), toString(m["OrganizationID"]),
	)
	return err
}

// GetRecentMatches returns the last N rule matches, optionally filtered by organization.
func (s *RuleMatchStore) GetRecentMatches(limit int, organizationID string) ([]RuleMatch, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if organizationID != "" {
		rows, err = s.db.Query(
			"SELECT id, rule_id, rule_query, uploaded_doc, matched_doc, match_type, ai_explanation, matched_chunks, client_id, organization_id, created_at FROM rule_matches WHERE organization_id = ? ORDER BY created_at DESC LIMIT ?",
			organizationID, limit,
		)
	} else {
		rows, err = s.db.Query(
			"SELECT id, rule_id, rule_query, uploaded_doc, matched_doc, match_type, ai_explanation, matched_chunks, client_id, organization_id, created_at FROM rule_matches ORDER BY created_at DESC LIMIT ?",
			limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []RuleMatch
	for rows.Next() {
		var m RuleMatch
		var matchedDoc, aiExplanation, chunksJSON, clientID, orgID sql.NullString
		if err := rows.Scan(&m.ID, &m.RuleID, &m.RuleQuery, &m.UploadedDoc, &matchedDoc, &m.MatchType, &aiExplanation, &chunksJSON, &clientID, &orgID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.MatchedDoc = matchedDoc.String
		m.AIExplanation = aiExplanation.String
		m.ClientID = clientID.String
		m.OrganizationID = orgID.String
		if chunksJSON.Valid && chunksJSON.String != "" {
			var chunks []string
			if err := json.Unmarshal([]byte(chunksJSON.String), &chunks); err == nil {
				m.MatchedChunks = chunks
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// RuleEvent records one step of the analyst pool's processing of a document
// against the active rule set.
type RuleEvent struct {
	ID             int64     `json:"id"`
	RuleID         int64     `json:"rule_id"`
	RuleQuery      string    `json:"rule_query"`
	Document       string    `json:"document"`
	EventType      string    `json:"event_type"` // "processing", "checking", "matched", "not_matched"
	Status         string    `json:"status"`
	Message        string    `json:"message"`
	ClientID       string    `json:"client_id,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RuleEventStore persists the analyst pool's per-document processing log.
// It satisfies worker.RuleEventStore.
type RuleEventStore struct {
	db *sql.DB
}

// NewRuleEventStore creates a new rule event store.
func NewRuleEventStore(db *sql.DB) (*RuleEventStore, error) {
	store := &RuleEventStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize rule events schema: %w", err)
	}
	return store, nil
}

func (s *RuleEventStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS rule_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		rule_id INTEGER NOT NULL DEFAULT 0,
		rule_query TEXT,
		document TEXT NOT NULL,
		event_type TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT,
		client_id TEXT,
		organization_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_rule_events_document ON rule_events(document);
	CREATE INDEX IF NOT EXISTS idx_rule_events_organization_id ON rule_events(organization_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// AddEvent stores a rule-processing event. event is expected to be the
// map[string]interface{} shape the analyst pool builds.
func (s *RuleEventStore) AddEvent(ctx context.Context, event interface{}) error {
	m, ok := event.(map[string]interface{})
	if !ok {
		return fmt.Errorf("rule event store: unsupported event payload type %T", event)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rule_events (rule_id, rule_query, document, event_type, status, message, client_id, organization_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		toInt64(m["RuleID"]), toString(m["RuleQuery"]), toString(m["Document"]), toString(m["EventType"]),
		toString(m["Status"]), toString(m["Message"]), toString(m["ClientID"]), toString(m["OrganizationID"]),
	)
	return err
}

// GetRecentEvents returns the last N rule events for a document.
func (s *RuleEventStore) GetRecentEvents(document string, limit int) ([]RuleEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		"SELECT id, rule_id, rule_query, document, event_type, status, message, client_id, organization_id, created_at FROM rule_events WHERE document = ? ORDER BY created_at DESC LIMIT ?",
		document, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []RuleEvent
	for rows.Next() {
		var ev RuleEvent
		var ruleQuery, message, clientID, orgID sql.NullString
		if err := rows.Scan(&ev.ID, &ev.RuleID, &ruleQuery, &ev.Document, &ev.EventType, &ev.Status, &message, &clientID, &orgID, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.RuleQuery = ruleQuery.String
		ev.Message = message.String
		ev.ClientID = clientID.String
		ev.OrganizationID = orgID.String
		events = append(events, ev)
	}
	return events, nil
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
