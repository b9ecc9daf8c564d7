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

const slackAPIURL = "https://slack.com/api/chat.postMessage"

// SlackNotifier posts triage alerts to a Slack channel via the Web API.
type SlackNotifier struct {
	token   string
	channel string
	apiURL  string
	http    *http.Client
}

// NewSlackFromEnv reads SLACK_BOT_TOKEN and SLACK_CHANNEL_ID. Returns nil
// when the token is unset; the dispatcher skips a nil chat.
func NewSlackFromEnv() *SlackNotifier {
	token := strings.TrimSpace(os.Getenv("SLACK_BOT_TOKEN"))
	if token == "" {
		return nil
	}
	return &SlackNotifier{
		token:   token,
		channel: strings.TrimSpace(os.Getenv("SLACK_CHANNEL_ID")),
		apiURL:  slackAPIURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func NewSlack(token, channel, apiURL string, hc *http.Client) *SlackNotifier {
	if apiURL == "" {
		apiURL = slackAPIURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &SlackNotifier{token: token, channel: channel, apiURL: apiURL, http: hc}
}

type slackPostResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Notify renders the payload into a message and posts it.
func (s *SlackNotifier) Notify(ctx context.Context, kind Kind, payload map[string]any) error {
	body, err := json.Marshal(map[string]any{
		"channel": s.channel,
		"text":    renderText(kind, payload),
	})
	if err != nil {
		return fmt.Errorf("notify: marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify: slack request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("notify: read slack response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify: slack status %d", resp.StatusCode)
	}
	var out slackPostResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("notify: decode slack response: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("notify: slack api error: %s", out.Error)
	}
	return nil
}

func renderText(kind Kind, payload map[string]any) string {
	switch kind {
	case KindUrgent:
		return fmt.Sprintf(":rotating_light: Urgent email from %v: %v (score %v)",
			payload["sender"], payload["subject"], payload["score"])
	case KindVIP:
		return fmt.Sprintf(":star: VIP email from %v: %v", payload["sender"], payload["subject"])
	case KindEscalation:
		return fmt.Sprintf(":warning: Escalation (%v, %v): %v from %v needs human review",
			payload["category"], payload["severity"], payload["subject"], payload["sender"])
	case KindBatchSummary:
		return fmt.Sprintf("Triage batch %v done: %v emails, %v high priority, %v drafts, %v blocked",
			payload["batch_id"], payload["total"], payload["high"], payload["drafts"], payload["blocked"])
	case KindClarification:
		return fmt.Sprintf(":question: Clarification needed for %v from %v: %v",
			payload["subject"], payload["sender"], payload["reason"])
	default:
		return fmt.Sprintf("%v", payload)
	}
}
