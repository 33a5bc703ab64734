// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Organization is a tenant: the unit every scoped document, rule, and
// chat session belongs to.
type Organization struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	SubscriptionStatus string    `json:"subscription_status"`
	SystemContext      string    `json:"system_context,omitempty"`
	TenantOpenAIKey    string    `json:"tenant_openai_key,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// OrganizationStore manages tenant records.
type OrganizationStore struct {
	db *sql.DB
}

// NewOrganizationStore creates a new organization store.
func NewOrganizationStore(db *sql.DB) (*OrganizationStore, error) {
	store := &OrganizationStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize organizations schema: %w", err)
	}
	return store, nil
}

func (s *OrganizationStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		subscription_status TEXT NOT NULL DEFAULT 'active',
		system_context TEXT NOT NULL DEFAULT '',
		tenant_openai_key TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateOrganization creates a new tenant.
func (s *OrganizationStore) CreateOrganization(name, subscriptionStatus string) (*Organization, error) {
	if subscriptionStatus == "" {
		subscriptionStatus = "active"
	}
	org := &Organization{
		ID:                 uuid.New().String(),
		Name:               name,
		SubscriptionStatus: subscriptionStatus,
		CreatedAt:          time.Now(),
	}
	_, err := s.db.Exec(
		"INSERT INTO organizations (id, name, subscription_status, created_at) VALUES (?, ?, ?, ?)",
		org.ID, org.Name, org.SubscriptionStatus, org.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	return org, nil
}

// GetOrganizationByID looks up an organization, returning nil if not found.
func (s *OrganizationStore) GetOrganizationByID(id string) (*Organization, error) {
	var org Organization
	err := s.db.QueryRow(
		"SELECT id, name, subscription_status, system_context, tenant_openai_key, created_at FROM organizations WHERE id = ?",
		id,
	).Scan(&org.ID, &org.Name, &org.SubscriptionStatus, &org.SystemContext, &org.TenantOpenAIKey, &org.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// GetAllOrganizations returns every tenant.
func (s *OrganizationStore) GetAllOrganizations() ([]Organization, error) {
	rows, err := s.db.Query("SELECT id, name, subscription_status, system_context, tenant_openai_key, created_at FROM organizations ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		var org Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.SubscriptionStatus, &org.SystemContext, &org.TenantOpenAIKey, &org.CreatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, nil
}

// UpdateOrganization updates an organization's name and/or subscription status.
// An empty value leaves the corresponding column unchanged.
func (s *OrganizationStore) UpdateOrganization(id, name, subscriptionStatus string) error {
	if name != "" {
		if _, err := s.db.Exec("UPDATE organizations SET name = ? WHERE id = ?", name, id); err != nil {
			return err
		}
	}
	if subscriptionStatus != "" {
		if _, err := s.db.Exec("UPDATE organizations SET subscription_status = ? WHERE id = ?", subscriptionStatus, id); err != nil {
			return err
		}
	}
	return nil
}

// UpdateSystemContext sets the tenant-level system prompt context injected into the answer pipeline.
func (s *OrganizationStore) UpdateSystemContext(id, systemContext string) error {
	_, err := s.db.Exec("UPDATE organizations SET system_context = ? WHERE id = ?", systemContext, id)
	return err
}

// UpdateTenantOpenAIKey sets a tenant-specific OpenAI API key override.
func (s *OrganizationStore) UpdateTenantOpenAIKey(id, key string) error {
	_, err := s.db.Exec("UPDATE organizations SET tenant_openai_key = ? WHERE id = ?", key, id)
	return err
}
