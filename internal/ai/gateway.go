// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrLLMTimeout signals the configured deadline elapsed before the
// provider responded.
var ErrLLMTimeout = errors.New("ai: llm request timed out")

// ErrLLMUnavailable signals a connection failure or non-2xx response
// from the provider.
var ErrLLMUnavailable = errors.New("ai: llm unavailable")

const defaultTimeout = 120 * time.Second
const defaultTemperature = 0.05

// Usage reports token accounting for a single Generate call.
type Usage struct {
	Model        string
	InputTokens  int
	OutputTokens int
}

// GenerateOptions configures a single Generate call. Zero values take
// the package defaults (120s deadline, temperature 0.05, no system
// prompt override, no stop sequences).
type GenerateOptions struct {
	MaxTokens     int
	Temperature   float64
	StopSequences []string
	SystemPrompt  string
}

// Gateway is the single entry point every caller in the query and
// ingestion pipelines uses to reach a chat-completions style LLM. It
// replaces the teacher's separate AskQuestion/GenerateEmbedding helpers
// with one deadline-bound, non-retrying call.
type Gateway struct {
	apiKey  string
	model   string
	client  *http.Client
	timeout time.Duration
}

// NewGateway constructs a Gateway. timeout <= 0 uses the default 120s.
func NewGateway(apiKey, model string, timeout time.Duration) *Gateway {
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gateway{
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Generate sends prompt as a single user turn and returns the raw
// completion text. No retries: a timeout or transport error surfaces
// immediately as ErrLLMTimeout / ErrLLMUnavailable.
func (g *Gateway) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, *Usage, error) {
	if g.apiKey == "" {
		return "", nil, fmt.Errorf("%w: no API key configured", ErrLLMUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	temperature := opts.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 512
	}

	messages := []map[string]string{}
	if opts.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": opts.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	payload := map[string]interface{}{
		"model":       g.model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}
	if len(opts.StopSequences) > 0 {
		payload["stop"] = opts.StopSequences
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("ai: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", nil, fmt.Errorf("ai: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrLLMTimeout, err)
		}
		return "", nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", nil, fmt.Errorf("%w: status %d: %s", ErrLLMUnavailable, resp.StatusCode, string(body))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", nil, fmt.Errorf("ai: failed to decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", nil, fmt.Errorf("%w: no choices in response", ErrLLMUnavailable)
	}

	usage := &Usage{
		Model:        result.Model,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
	}
	if usage.Model == "" {
		usage.Model = g.model
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), usage, nil
}

// AskYesNo is a thin convenience wrapper over Generate for the
// yes/no-graded calls C8 and C10 make: it normalizes whatever the model
// says to exactly "YES" or "NO", defaulting to "NO" when ambiguous.
func (g *Gateway) AskYesNo(ctx context.Context, prompt string) (string, *Usage, error) {
	answer, usage, err := g.Generate(ctx, prompt, GenerateOptions{
		SystemPrompt: "You are a helpful assistant that answers yes/no questions. Always respond with only 'YES' or 'NO'.",
		MaxTokens:    10,
	})
	if err != nil {
		return "", nil, err
	}

	upper := strings.ToUpper(answer)
	if strings.Contains(upper, "YES") {
		return "YES", usage, nil
	}
	return "NO", usage, nil
}
