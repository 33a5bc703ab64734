// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"database/sql"
	"fmt"
	"time"
)

// UsageRecord tracks one billable operation (a query or an ingest) against
// an organization's quota.
type UsageRecord struct {
	ID             int64     `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Operation      string    `json:"operation"` // "query" or "ingest"
	Timestamp      time.Time `json:"timestamp"`
}

// UsageStore tracks per-organization operation counts.
type UsageStore struct {
	db *sql.DB
}

// NewUsageStore creates a new usage store.
func NewUsageStore(db *sql.DB) (*UsageStore, error) {
	store := &UsageStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize usage schema: %w", err)
	}
	return store, nil
}

func (s *UsageStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS usage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		organization_id TEXT NOT NULL,
		operation TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_usage_records_organization_id ON usage_records(organization_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordUsage logs one operation against an organization's usage history.
func (s *UsageStore) RecordUsage(organizationID, operation string) error {
	_, err := s.db.Exec(
		"INSERT INTO usage_records (organization_id, operation, timestamp) VALUES (?, ?, ?)",
		organizationID, operation, time.Now(),
	)
	return err
}

// CountUsage returns how many times operation has been recorded for an
// organization since since.
func (s *UsageStore) CountUsage(organizationID, operation string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM usage_records WHERE organization_id = ? AND operation = ? AND timestamp >= ?",
		organizationID, operation, since,
	).Scan(&count)
	return count, err
}
