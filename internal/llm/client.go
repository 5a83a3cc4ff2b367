// Package llm defines the narrow contract the Journal Engine, Orientation
// Engine, and engaged path depend on: a single Generate call, context-aware
// so callers can enforce the per-profile deadlines in §5 (orientation ≤20s,
// journal ≤15s). Wire-format specifics are explicitly out of scope per §1;
// Client is the only concrete implementation, talking to an Ollama-
// compatible HTTP endpoint the same way internal/embedding/ollama.go does.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MLTQ/Ponderer/internal/apperr"
)

// Generator is the contract every LLM-backed component depends on.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client is an Ollama-compatible HTTP client implementing Generator.
type Client struct {
	baseURL string
	model   string
	apiKey  string
	http    *http.Client
}

// NewClient builds a Client. apiKey may be empty for a local Ollama
// instance that requires no authentication.
func NewClient(baseURL, model, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		apiKey:  apiKey,
		http:    &http.Client{},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends prompt to the configured model and returns its completion.
// It respects ctx's deadline: callers set the per-profile timeout (§5) via
// context.WithTimeout before calling.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", apperr.Wrap(apperr.Validation, "empty prompt")
	}

	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", apperr.WrapErr(apperr.LLMProtocol, "marshal generate request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", apperr.WrapErr(apperr.LLMProtocol, "build generate request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.WrapErr(apperr.LLMProtocol, fmt.Sprintf("generate request (took %s)", time.Since(start)), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", apperr.Wrap(apperr.LLMProtocol, "generate returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.WrapErr(apperr.LLMProtocol, "decode generate response", err)
	}
	if out.Response == "" {
		return "", apperr.Wrap(apperr.LLMProtocol, "generate returned empty response")
	}
	return out.Response, nil
}
