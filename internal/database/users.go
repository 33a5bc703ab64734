// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserRole identifies what a user is allowed to do within an organization.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleViewer UserRole = "viewer"
)

// User represents an authenticated account scoped to one organization.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           UserRole  `json:"role"`
	OrganizationID string    `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserStore manages user accounts and their login sessions.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a new user store.
func NewUserStore(db *sql.DB) (*UserStore, error) {
	store := &UserStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize users schema: %w", err)
	}
	return store, nil
}

func (s *UserStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'viewer',
		organization_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_users_organization_id ON users(organization_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateUser hashes the password and stores a new user.
func (s *UserStore) CreateUser(email, password string, role UserRole, organizationID string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:             uuid.New().String(),
		Email:          email,
		PasswordHash:   string(hash),
		Role:           role,
		OrganizationID: organizationID,
		CreatedAt:      time.Now(),
	}

	_, err = s.db.Exec(
		"INSERT INTO users (id, email, password_hash, role, organization_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.ID, user.Email, user.PasswordHash, string(user.Role), user.OrganizationID, user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUserByEmail looks up a user by email, returning nil if not found.
func (s *UserStore) GetUserByEmail(email string) (*User, error) {
	var user User
	var role string
	err := s.db.QueryRow(
		"SELECT id, email, password_hash, role, organization_id, created_at FROM users WHERE email = ?",
		email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &role, &user.OrganizationID, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.Role = UserRole(role)
	return &user, nil
}

// GetAllUsers returns every user account across all organizations.
func (s *UserStore) GetAllUsers() ([]User, error) {
	rows, err := s.db.Query("SELECT id, email, password_hash, role, organization_id, created_at FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		var role string
		if err := rows.Scan(&user.ID, &user.Email, &user.PasswordHash, &role, &user.OrganizationID, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.Role = UserRole(role)
		users = append(users, user)
	}
	return users, nil
}

// VerifyPassword checks a plaintext password against the stored hash.
func (s *UserStore) VerifyPassword(user *User, password string) bool {
	if user == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// UpdateUserPassword re-hashes and stores a new password for a user.
func (s *UserStore) UpdateUserPassword(userID, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = s.db.Exec("UPDATE users SET password_hash = ? WHERE id = ?", string(hash), userID)
	return err
}

// UpdateUserRole changes a user's role.
func (s *UserStore) UpdateUserRole(userID string, role UserRole) error {
	_, err := s.db.Exec("UPDATE users SET role = ? WHERE id = ?", string(role), userID)
	return err
}

// DeleteUser removes a user account.
func (s *UserStore) DeleteUser(userID string) error {
	_, err := s.db.Exec("DELETE FROM users WHERE id = ?", userID)
	return err
}

// CreateSession stores a login session token for a user.
func (s *UserStore) CreateSession(userID, token string, expiresAt time.Time) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, userID, expiresAt,
	)
	return err
}

// GetUserBySessionToken resolves a session token to its user, rejecting expired sessions.
func (s *UserStore) GetUserBySessionToken(token string) (*User, error) {
	var userID string
	var expiresAt time.Time
	err := s.db.QueryRow("SELECT user_id, expires_at FROM sessions WHERE token = ?", token).Scan(&userID, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(expiresAt) {
		return nil, nil
	}

	var user User
	var role string
	err = s.db.QueryRow(
		"SELECT id, email, password_hash, role, organization_id, created_at FROM users WHERE id = ?",
		userID,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &role, &user.OrganizationID, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.Role = UserRole(role)
	return &user, nil
}

// DeleteSession removes a session token, logging the user out.
func (s *UserStore) DeleteSession(token string) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE token = ?", token)
	return err
}
