package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// OllamaClient talks to a local Ollama daemon. Used as the secondary
// provider when the primary is down or over quota.
type OllamaClient struct {
	baseURL string
	model   string
	http    *http.Client
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

// NewOllamaFromEnv reads OLLAMA_BASE_URL and OLLAMA_MODEL. Returns nil when
// unset.
func NewOllamaFromEnv() *OllamaClient {
	base := strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL"))
	if base == "" {
		return nil
	}
	model := strings.TrimSpace(os.Getenv("OLLAMA_MODEL"))
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(base, "/"),
		model:   model,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func NewOllama(baseURL, model string, hc *http.Client) *OllamaClient {
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &OllamaClient{baseURL: strings.TrimRight(baseURL, "/"), model: model, http: hc}
}

func (c *OllamaClient) Name() string { return "ollama:" + c.model }

func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("llm: marshal ollama request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("llm: read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: ollama status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("llm: decode ollama response: %w", err)
	}
	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
