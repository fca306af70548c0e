package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pterm/pterm"
)

// Provider is the pluggable completion backend. Implementations must be
// fail-soft: the pipeline never depends on a provider being reachable.
type Provider interface {
	// Name returns the provider identifier (e.g. "ollama").
	Name() string
	// ListModels returns the models the provider currently serves.
	ListModels(ctx context.Context) ([]string, error)
	// Complete runs one prompt against the given model.
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// OllamaProvider talks to a locally hosted Ollama-compatible server.
type OllamaProvider struct {
	baseURL string
	client  *http.Client
	logger  *pterm.Logger
}

// NewOllamaProvider creates a provider against the given base URL
// (e.g. http://localhost:11434). The HTTP client carries no timeout of
// its own; every call site passes a bounded context.
func NewOllamaProvider(baseURL string, logger *pterm.Logger) *OllamaProvider {
	return &OllamaProvider{
		baseURL: baseURL,
		client:  &http.Client{},
		logger:  logger,
	}
}

// Name returns the provider identifier.
func (p *OllamaProvider) Name() string { return "ollama" }

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels queries /api/tags.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build tags request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list models: unexpected status %d", resp.StatusCode)
	}
	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Complete runs one non-streaming generation against /api/generate.
func (p *OllamaProvider) Complete(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("complete: unexpected status %d", resp.StatusCode)
	}
	var gen ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if gen.Response == "" {
		return "", fmt.Errorf("complete: empty response")
	}

	p.logger.Trace("LLM completion finished",
		p.logger.Args("model", model, "duration_ms", time.Since(start).Milliseconds()))
	return gen.Response, nil
}
