// Package notify emits side-channel notifications after queue assembly:
// chat alerts and task-tracker log entries. Everything here is best-effort;
// failures are logged and never reach the batch result.
package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"mailpilot-cloud/triage"
)

// Kind enumerates chat notification kinds.
type Kind string

const (
	KindUrgent        Kind = "urgent"
	KindVIP           Kind = "vip"
	KindEscalation    Kind = "escalation"
	KindBatchSummary  Kind = "batch_summary"
	KindClarification Kind = "clarification"
)

// Chat is the thin chat-notifier capability.
type Chat interface {
	Notify(ctx context.Context, kind Kind, payload map[string]any) error
}

// Tracker is the thin task-tracker capability. Duplicates are acceptable.
type Tracker interface {
	LogEmail(ctx context.Context, summary EmailSummary) error
	LogBatch(ctx context.Context, summary BatchSummary) error
	LogEscalation(ctx context.Context, details EscalationDetails) error
}

type EmailSummary struct {
	MessageID string `json:"message_id"`
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	Score     int    `json:"score"`
	Level     string `json:"priority_level"`
	Category  string `json:"category"`
	Reasoning string `json:"reasoning"`
}

type BatchSummary struct {
	BatchID string `json:"batch_id"`
	Total   int    `json:"total"`
	High    int    `json:"high"`
	Drafts  int    `json:"drafts"`
	Blocked int    `json:"blocked"`
}

type EscalationDetails struct {
	MessageID string `json:"message_id"`
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	Category  string `json:"category"`
	Severity  string `json:"severity"`
	Score     int    `json:"score"`
}

// Trigger thresholds.
const (
	urgentScore     = 90
	escalationScore = 70
	trackerScore    = 80
)

// Dispatcher fans completed-batch notifications out to the collaborators.
type Dispatcher struct {
	chat    Chat
	tracker Tracker
	timeout time.Duration
}

// NewDispatcher accepts nil collaborators; absent ones are skipped.
func NewDispatcher(chat Chat, tracker Tracker) *Dispatcher {
	return &Dispatcher{chat: chat, tracker: tracker, timeout: 10 * time.Second}
}

// Dispatch walks the completed batch and emits every notification it calls
// for, concurrently. It blocks at most the dispatcher timeout and swallows
// all errors.
func (d *Dispatcher) Dispatch(ctx context.Context, batch *triage.ProcessingBatch, metrics triage.MetricsReport) {
	if d == nil || (d.chat == nil && d.tracker == nil) {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				log.Printf("notify: %s failed: %v", name, err)
			}
		}()
	}

	for _, e := range batch.Emails {
		e := e
		if d.chat != nil {
			switch {
			case e.HasFlag(triage.FlagEscalation):
				run("chat escalation", func(ctx context.Context) error {
					return d.chat.Notify(ctx, KindEscalation, escalationPayload(e))
				})
			case e.Priority.Score >= urgentScore:
				run("chat urgent", func(ctx context.Context) error {
					return d.chat.Notify(ctx, KindUrgent, emailPayload(e))
				})
			case e.Classification.IsVIP && e.Priority.Level == triage.PriorityHigh:
				run("chat vip", func(ctx context.Context) error {
					return d.chat.Notify(ctx, KindVIP, emailPayload(e))
				})
			}
			if e.Clarification != nil {
				run("chat clarification", func(ctx context.Context) error {
					return d.chat.Notify(ctx, KindClarification, clarificationPayload(e))
				})
			}
		}
		if d.tracker != nil {
			if e.Priority.Score >= trackerScore {
				run("tracker email", func(ctx context.Context) error {
					return d.tracker.LogEmail(ctx, emailSummary(e))
				})
			}
			if e.HasFlag(triage.FlagEscalation) {
				run("tracker escalation", func(ctx context.Context) error {
					return d.tracker.LogEscalation(ctx, escalationDetails(e))
				})
			}
		}
	}

	summary := BatchSummary{
		BatchID: batch.BatchID,
		Total:   metrics.TotalEmails,
		High:    metrics.ByLevel[string(triage.PriorityHigh)],
		Drafts:  metrics.DraftsCreated,
		Blocked: metrics.Blocked,
	}
	if d.chat != nil {
		run("chat batch summary", func(ctx context.Context) error {
			return d.chat.Notify(ctx, KindBatchSummary, map[string]any{
				"batch_id": summary.BatchID,
				"total":    summary.Total,
				"high":     summary.High,
				"drafts":   summary.Drafts,
				"blocked":  summary.Blocked,
			})
		})
	}
	if d.tracker != nil {
		run("tracker batch", func(ctx context.Context) error {
			return d.tracker.LogBatch(ctx, summary)
		})
	}

	wg.Wait()
}

func emailPayload(e *triage.ProcessedEmail) map[string]any {
	return map[string]any{
		"message_id": e.Metadata.MessageID,
		"sender":     e.Metadata.Sender,
		"subject":    e.Metadata.Subject,
		"score":      e.Priority.Score,
		"level":      string(e.Priority.Level),
		"reasoning":  e.Priority.Reasoning,
	}
}

func escalationPayload(e *triage.ProcessedEmail) map[string]any {
	p := emailPayload(e)
	p["category"] = string(e.Category)
	p["severity"] = string(triage.SeverityHigh)
	return p
}

func clarificationPayload(e *triage.ProcessedEmail) map[string]any {
	return map[string]any{
		"message_id": e.Metadata.MessageID,
		"sender":     e.Metadata.Sender,
		"subject":    e.Metadata.Subject,
		"reason":     e.Clarification.Reason,
		"questions":  e.Clarification.Questions,
	}
}

func emailSummary(e *triage.ProcessedEmail) EmailSummary {
	return EmailSummary{
		MessageID: e.Metadata.MessageID,
		Sender:    e.Metadata.Sender,
		Subject:   e.Metadata.Subject,
		Score:     e.Priority.Score,
		Level:     string(e.Priority.Level),
		Category:  string(e.Category),
		Reasoning: e.Priority.Reasoning,
	}
}

func escalationDetails(e *triage.ProcessedEmail) EscalationDetails {
	return EscalationDetails{
		MessageID: e.Metadata.MessageID,
		Sender:    e.Metadata.Sender,
		Subject:   e.Metadata.Subject,
		Category:  string(e.Category),
		Severity:  string(triage.SeverityHigh),
		Score:     e.Priority.Score,
	}
}
