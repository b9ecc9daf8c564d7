// Package llm wraps the language-model capability: an OpenAI-compatible
// primary client, an Ollama secondary, and a router that falls through
// primary -> secondary before callers resort to templates.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client generates text from a prompt. Implementations must be safe for
// concurrent use.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

var (
	ErrEmptyResponse = errors.New("llm: empty response")
	ErrQuotaExceeded = errors.New("llm: quota exceeded")
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// ChatClient talks to any OpenAI-compatible chat completion endpoint.
type ChatClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewChatClientFromEnv reads LLM_BASE_URL, LLM_API_KEY and LLM_MODEL.
// Returns nil when no base URL is configured; the router treats a nil
// client as absent.
func NewChatClientFromEnv() *ChatClient {
	base := strings.TrimSpace(os.Getenv("LLM_BASE_URL"))
	if base == "" {
		return nil
	}
	model := strings.TrimSpace(os.Getenv("LLM_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &ChatClient{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  strings.TrimSpace(os.Getenv("LLM_API_KEY")),
		model:   model,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func NewChatClient(baseURL, apiKey, model string, hc *http.Client) *ChatClient {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &ChatClient{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, model: model, http: hc}
}

func (c *ChatClient) Name() string { return "chat:" + c.model }

func (c *ChatClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You draft short, professional email replies."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   400,
		Temperature: 0.3,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrQuotaExceeded
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("llm: api error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
