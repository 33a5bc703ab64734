// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"database/sql"
	"fmt"
)

// CustomDomain maps a vanity hostname to the organization served under it.
type CustomDomain struct {
	Host           string `json:"host"`
	OrganizationID string `json:"organization_id"`
}

// CustomDomainStore manages custom domain mappings for white-labeled tenants.
type CustomDomainStore struct {
	db *sql.DB
}

// NewCustomDomainStore creates a new custom domain store.
func NewCustomDomainStore(db *sql.DB) (*CustomDomainStore, error) {
	store := &CustomDomainStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize custom domains schema: %w", err)
	}
	return store, nil
}

func (s *CustomDomainStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS custom_domains (
		host TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetDomainByHost resolves a hostname to its custom domain mapping, returning nil if unmapped.
func (s *CustomDomainStore) GetDomainByHost(host string) (*CustomDomain, error) {
	var domain CustomDomain
	err := s.db.QueryRow("SELECT host, organization_id FROM custom_domains WHERE host = ?", host).Scan(&domain.Host, &domain.OrganizationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain, nil
}

// SetDomain creates or updates the organization mapped to host.
func (s *CustomDomainStore) SetDomain(host, organizationID string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO custom_domains (host, organization_id) VALUES (?, ?)", host, organizationID)
	return err
}
