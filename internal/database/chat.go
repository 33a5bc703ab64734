// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatSession groups a sequence of chat messages under one conversation.
type ChatSession struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChatMessage is a single turn in a chat session.
type ChatMessage struct {
	ID        int64                  `json:"id"`
	SessionID string                 `json:"session_id"`
	Role      string                 `json:"role"` // "user" or "assistant"
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// ChatStore persists chat sessions and their message history.
type ChatStore struct {
	db *sql.DB
}

// NewChatStore creates a new chat store.
func NewChatStore(db *sql.DB) (*ChatStore, error) {
	store := &ChatStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize chat schema: %w", err)
	}
	return store, nil
}

func (s *ChatStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		organization_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES chat_sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_chat_sessions_user_id ON chat_sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_session_id ON chat_messages(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateSession starts a new chat session, titled from the first query.
func (s *ChatStore) CreateSession(userID, organizationID, title string) (*ChatSession, error) {
	session := &ChatSession{
		ID:             uuid.New().String(),
		UserID:         userID,
		OrganizationID: organizationID,
		Title:          title,
		CreatedAt:      time.Now(),
	}
	_, err := s.db.Exec(
		"INSERT INTO chat_sessions (id, user_id, organization_id, title, created_at) VALUES (?, ?, ?, ?, ?)",
		session.ID, session.UserID, session.OrganizationID, session.Title, session.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}
	return session, nil
}

// AddMessage appends a message to a session. metadata is marshaled to JSON; nil stores no metadata.
func (s *ChatStore) AddMessage(sessionID, role, content string, metadata map[string]interface{}) error {
	var metadataJSON sql.NullString
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal message metadata: %w", err)
		}
		metadataJSON = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.Exec(
		"INSERT INTO chat_messages (session_id, role, content, metadata, created_at) VALUES (?, ?, ?, ?, ?)",
		sessionID, role, content, metadataJSON, time.Now(),
	)
	return err
}

// GetUserSessions returns a user's chat sessions, newest first. organizationID filters
// when non-empty.
func (s *ChatStore) GetUserSessions(userID, organizationID string) ([]ChatSession, error) {
	var rows *sql.Rows
	var err error
	if organizationID != "" {
		rows, err = s.db.Query(
			"SELECT id, user_id, organization_id, title, created_at FROM chat_sessions WHERE user_id = ? AND organization_id = ? ORDER BY created_at DESC",
			userID, organizationID,
		)
	} else {
		rows, err = s.db.Query(
			"SELECT id, user_id, organization_id, title, created_at FROM chat_sessions WHERE user_id = ? ORDER BY created_at DESC",
			userID,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []ChatSession
	for rows.Next() {
		var session ChatSession
		if err := rows.Scan(&session.ID, &session.UserID, &session.OrganizationID, &session.Title, &session.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// GetSessionMessages returns every message in a session, oldest first.
func (s *ChatStore) GetSessionMessages(sessionID string) ([]ChatMessage, error) {
	rows, err := s.db.Query(
		"SELECT id, session_id, role, content, metadata, created_at FROM chat_messages WHERE session_id = ? ORDER BY created_at ASC",
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var msg ChatMessage
		var metadataJSON sql.NullString
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &metadataJSON, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if metadataJSON.Valid {
			var metadata map[string]interface{}
			if err := json.Unmarshal([]byte(metadataJSON.String), &metadata); err == nil {
				msg.Metadata = metadata
			}
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// DeleteSession removes a session and its messages.
func (s *ChatStore) DeleteSession(sessionID string) error {
	if _, err := s.db.Exec("DELETE FROM chat_messages WHERE session_id = ?", sessionID); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM chat_sessions WHERE id = ?", sessionID)
	return err
}
