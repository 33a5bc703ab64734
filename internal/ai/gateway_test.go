// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package ai

import (
	"context"
	"testing"
	"time"
)

func TestGatewayRequiresAPIKey(t *testing.T) {
	g := NewGateway("", "gpt-3.5-turbo", time.Second)
	_, _, err := g.Generate(context.Background(), "is this a test", GenerateOptions{})
	if err == nil {
		t.Fatal("expected an error when no API key is configured")
	}
}

func TestNewGatewayDefaults(t *testing.T) {
	g := NewGateway("key", "", 0)
	if g.model != "gpt-3.5-turbo" {
		t.Errorf("expected default model, got %q", g.model)
	}
	if g.timeout != defaultTimeout {
		t.Errorf("expected default timeout, got %v", g.timeout)
	}
}
