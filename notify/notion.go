package notify

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

const (
	notionAPIURL  = "https://api.notion.com/v1"
	notionVersion = "2022-06-28"
)

// NotionTracker logs triage outcomes as pages in a Notion database.
type NotionTracker struct {
	token      string
	databaseID string
	apiURL     string
	http       *http.Client
}

// NewNotionFromEnv reads NOTION_TOKEN and NOTION_DATABASE_ID. Returns nil
// when the token is unset.
func NewNotionFromEnv() *NotionTracker {
	token := strings.TrimSpace(os.Getenv("NOTION_TOKEN"))
	if token == "" {
		return nil
	}
	return &NotionTracker{
		token:      token,
		databaseID: strings.TrimSpace(os.Getenv("NOTION_DATABASE_ID")),
		apiURL:     notionAPIURL,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

func NewNotion(token, databaseID, apiURL string, hc *http.Client) *NotionTracker {
	if apiURL == "" {
		apiURL = notionAPIURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &NotionTracker{token: token, databaseID: databaseID, apiURL: apiURL, http: hc}
}

func (n *NotionTracker) LogEmail(ctx context.Context, s EmailSummary) error {
	title := fmt.Sprintf("[%s] %s", s.Level, s.Subject)
	return n.createPage(ctx, title, map[string]string{
		"Sender":    s.Sender,
		"Category":  s.Category,
		"Score":     fmt.Sprintf("%d", s.Score),
		"Reasoning": s.Reasoning,
	})
}

func (n *NotionTracker) LogBatch(ctx context.Context, s BatchSummary) error {
	title := fmt.Sprintf("Triage batch %s", s.BatchID)
	return n.createPage(ctx, title, map[string]string{
		"Total":   fmt.Sprintf("%d", s.Total),
		"High":    fmt.Sprintf("%d", s.High),
		"Drafts":  fmt.Sprintf("%d", s.Drafts),
		"Blocked": fmt.Sprintf("%d", s.Blocked),
	})
}

func (n *NotionTracker) LogEscalation(ctx context.Context, d EscalationDetails) error {
	title := fmt.Sprintf("ESCALATION (%s): %s", d.Category, d.Subject)
	return n.createPage(ctx, title, map[string]string{
		"Sender":   d.Sender,
		"Severity": d.Severity,
		"Score":    fmt.Sprintf("%d", d.Score),
	})
}

// createPage posts a page whose title carries the headline and whose body
// is a bulleted list of fields.
func (n *NotionTracker) createPage(ctx context.Context, title string, fields map[string]string) error {
	var children []map[string]any
	for k, v := range fields {
		children = append(children, map[string]any{
			"object": "block",
			"type":   "bulleted_list_item",
			"bulleted_list_item": map[string]any{
				"rich_text": []map[string]any{
					{"type": "text", "text": map[string]any{"content": k + ": " + v}},
				},
			},
		})
	}
	payload := map[string]any{
		"parent": map[string]any{"database_id": n.databaseID},
		"properties": map[string]any{
			"Name": map[string]any{
				"title": []map[string]any{
					{"type": "text", "text": map[string]any{"content": title}},
				},
			},
		},
		"children": children,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal notion page: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL+"/pages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build notion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Notion-Version", notionVersion)

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify: notion request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify: notion status %d", resp.StatusCode)
	}
	return nil
}
