// Package memory is the optional vector-memory capability: retrieval of
// similar past emails to ground drafts, and write-back of processed
// summaries. When the backing store is unreachable the agent proceeds with
// empty memory; no error leaves this package.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// Example is one recalled email with its drafted outcome.
type Example struct {
	Subject    string  `json:"subject"`
	Sender     string  `json:"sender"`
	Category   string  `json:"category"`
	ReplyBody  string  `json:"reply_body"`
	Similarity float64 `json:"similarity"`
}

// Record is what gets written back after a batch.
type Record struct {
	MessageID string `json:"message_id"`
	Subject   string `json:"subject"`
	Sender    string `json:"sender"`
	Category  string `json:"category"`
	Level     string `json:"priority_level"`
	ReplyBody string `json:"reply_body,omitempty"`
}

// VectorMemory talks to a Supabase-style REST backend: an embeddings
// endpoint plus a match RPC and an insert table.
type VectorMemory struct {
	baseURL  string
	apiKey   string
	embedURL string
	http     *http.Client
}

// NewFromEnv reads VECTOR_URL, VECTOR_API_KEY and EMBEDDINGS_URL. Returns
// nil when unset; callers treat a nil memory as absent.
func NewFromEnv() *VectorMemory {
	base := strings.TrimSpace(os.Getenv("VECTOR_URL"))
	if base == "" {
		return nil
	}
	return &VectorMemory{
		baseURL:  strings.TrimRight(base, "/"),
		apiKey:   strings.TrimSpace(os.Getenv("VECTOR_API_KEY")),
		embedURL: strings.TrimSpace(os.Getenv("EMBEDDINGS_URL")),
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func New(baseURL, apiKey, embedURL string, hc *http.Client) *VectorMemory {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &VectorMemory{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		embedURL: embedURL,
		http:     hc,
	}
}

// Retrieve returns up to k similar past emails. Any failure yields an
// empty slice.
func (m *VectorMemory) Retrieve(ctx context.Context, query string, k int) []Example {
	if m == nil {
		return nil
	}
	embedding, err := m.embed(ctx, query)
	if err != nil {
		log.Printf("memory: embed failed, proceeding without recall: %v", err)
		return nil
	}

	payload := map[string]any{"query_embedding": embedding, "match_count": k}
	var out []Example
	if err := m.post(ctx, "/rest/v1/rpc/match_emails", payload, &out); err != nil {
		log.Printf("memory: match failed, proceeding without recall: %v", err)
		return nil
	}
	return out
}

// Write stores a processed-email summary. Failures are logged and dropped.
func (m *VectorMemory) Write(ctx context.Context, rec Record) {
	if m == nil {
		return
	}
	if err := m.post(ctx, "/rest/v1/email_memory", rec, nil); err != nil {
		log.Printf("memory: write failed: %v", err)
	}
}

type embedRequest struct {
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Data      []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (m *VectorMemory) embed(ctx context.Context, text string) ([]float64, error) {
	if m.embedURL == "" {
		return nil, fmt.Errorf("no embeddings endpoint configured")
	}
	body, err := json.Marshal(embedRequest{Input: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.embedURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings status %d", resp.StatusCode)
	}
	var out embedResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) > 0 {
		return out.Embedding, nil
	}
	if len(out.Data) > 0 {
		return out.Data[0].Embedding, nil
	}
	return nil, fmt.Errorf("empty embedding")
}

func (m *VectorMemory) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("apikey", m.apiKey)
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}
