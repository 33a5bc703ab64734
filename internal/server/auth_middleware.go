// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/nskitch/hive-rag/internal/database"
)

// AuthMiddleware creates an authentication middleware that validates API keys
func AuthMiddleware(apiKeyStore *database.APIKeyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract API key from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"missing authorization header"}`))
				return
			}

			// Support both "Bearer <key>" and just "<key>" formats
			key := strings.TrimSpace(authHeader)
			if strings.HasPrefix(key, "Bearer ") {
				key = strings.TrimPrefix(key, "Bearer ")
			}

			// Validate the key
			isValid, err := apiKeyStore.ValidateKey(key)
			if err != nil {
				log.Printf("Error validating API key: %v", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal server error"}`))
				return
			}

			if !isValid {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid or inactive API key"}`))
				return
			}

			// Update last_seen_at timestamp for this key
			if err := apiKeyStore.UpdateLastSeen(key); err != nil {
				log.Printf("Warning: Failed to update last_seen_at for key: %v", err)
				// Don't fail the request, just log the warning
			}

			// Key is valid, proceed to next handler
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLogin validates the "session" cookie against userStore and attaches
// the resolved *database.User and its organization_id to the request
// context for downstream handlers (HandleMe, ChatHandler, and the
// organization-scoped config/tenant handlers all read these).
func RequireLogin(userStore *database.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("session")
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"not authenticated"}`))
				return
			}

			user, err := userStore.GetUserBySessionToken(cookie.Value)
			if err != nil {
				log.Printf("Error resolving session: %v", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal server error"}`))
				return
			}
			if user == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"session expired"}`))
				return
			}

			ctx := context.WithValue(r.Context(), "user", user)
			ctx = context.WithValue(ctx, "organization_id", user.OrganizationID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
