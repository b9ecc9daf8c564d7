// Package agent wires the mailbox, triage pipeline, guardrails, drafter and
// notifiers into the single run operation: ingest a mailbox slice, triage it,
// draft replies where needed, and return a ranked queue with metrics.
package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mailpilot-cloud/config"
	"mailpilot-cloud/draft"
	"mailpilot-cloud/guardrails"
	"mailpilot-cloud/mailbox"
	"mailpilot-cloud/memory"
	"mailpilot-cloud/notify"
	"mailpilot-cloud/streams"
	"mailpilot-cloud/triage"
)

// Options collects the agent's collaborators. Mailbox and Config are
// required; everything else degrades gracefully when nil.
type Options struct {
	Config     *config.Config
	Mailbox    mailbox.Capability
	Generator  draft.Generator
	Dispatcher *notify.Dispatcher
	Bus        *streams.Bus
	Memory     *memory.VectorMemory
	UserID     string
	Now        func() time.Time
}

// Agent executes triage batches against one user's mailbox.
type Agent struct {
	cfg        *config.Config
	box        mailbox.Capability
	pipeline   *triage.Pipeline
	resolver   *triage.EdgeResolver
	drafter    *draft.Drafter
	domains    *guardrails.DomainChecker
	tone       *guardrails.ToneEnforcer
	dispatcher *notify.Dispatcher
	bus        *streams.Bus
	mem        *memory.VectorMemory
	userID     string
	now        func() time.Time

	bg sync.WaitGroup
}

func New(opts Options) *Agent {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	a := &Agent{
		cfg:        opts.Config,
		box:        opts.Mailbox,
		pipeline:   triage.NewPipeline(opts.Config, now),
		resolver:   triage.NewEdgeResolver(opts.Config, now),
		domains:    guardrails.NewDomainChecker(opts.Config),
		tone:       guardrails.NewToneEnforcer(opts.Config),
		dispatcher: opts.Dispatcher,
		bus:        opts.Bus,
		mem:        opts.Memory,
		userID:     opts.UserID,
		now:        now,
	}
	a.drafter = draft.NewDrafter(opts.Config, opts.Generator, opts.Mailbox, now)
	if opts.Memory != nil {
		mem := opts.Memory
		a.drafter.Recall = func(ctx context.Context, query string) []string {
			examples := mem.Retrieve(ctx, query, 3)
			lines := make([]string, 0, len(examples))
			for _, ex := range examples {
				lines = append(lines, fmt.Sprintf("%q was answered with: %s", ex.Subject, ex.ReplyBody))
			}
			return lines
		}
	}
	return a
}

// BatchInfo identifies a run in the response payload.
type BatchInfo struct {
	BatchID        string     `json:"batch_id"`
	UserCommand    string     `json:"user_command,omitempty"`
	Mode           string     `json:"mode"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	TotalProcessed int        `json:"total_processed"`
}

// Response is the result of one run. Errors is always present, empty when
// the batch was clean.
type Response struct {
	Queue          triage.Queue                  `json:"queue"`
	Metrics        triage.MetricsReport          `json:"metrics"`
	Clarifications []triage.ClarificationRequest `json:"clarifications,omitempty"`
	BatchInfo      BatchInfo                     `json:"batch_info"`
	Errors         []string                      `json:"errors"`
}

// Run executes one triage batch. Ingestion failures abort with both a
// structured response and an error; per-email failures are recorded on the
// batch and never abort it.
func (a *Agent) Run(ctx context.Context, userCommand string, scope triage.UserScope) (*Response, error) {
	if scope.MaxResults <= 0 {
		scope.MaxResults = a.cfg.MaxEmails
	}
	if scope.TimeRangeDays <= 0 {
		scope.TimeRangeDays = a.cfg.TimeRangeDays
	}

	batch := &triage.ProcessingBatch{
		BatchID:     uuid.NewString(),
		UserCommand: userCommand,
		UserScope:   scope,
		StartedAt:   a.now(),
		Mode:        "full",
	}

	scopes := a.box.Scopes()
	if !mailbox.HasScope(scopes, "read") {
		err := fmt.Errorf("agent: mailbox read scope not granted: %w", mailbox.ErrScopeMissing)
		return a.abort(batch, err), err
	}

	a.feed(ctx, "batch_started", map[string]any{
		"batch_id": batch.BatchID,
		"command":  userCommand,
	})

	if err := a.ingest(ctx, batch, scope); err != nil {
		err = fmt.Errorf("agent: list mailbox: %w", err)
		return a.abort(batch, err), err
	}

	a.pipeline.Classify(ctx, batch.Emails)
	a.resolver.ResolveConflicts(batch.Emails)

	for _, e := range batch.Emails {
		a.flagBodyPII(e)
		a.resolver.Escalate(e)
	}
	for _, e := range batch.Emails {
		if e.RequiresReply && !e.IsBlocked && !e.Superseded {
			e.Clarification = draft.NeedsClarification(e)
		}
	}

	a.drafter.DraftBatch(ctx, batch.Emails)

	for _, e := range batch.Emails {
		a.applyDraftGuardrails(e)
		finalizeStatus(e)
	}
	a.resolver.ApplyPermissionMode(batch, scopes)

	completed := a.now()
	batch.CompletedAt = &completed
	batch.TotalProcessed = len(batch.Emails)

	queue := triage.BuildQueue(batch)
	metrics := triage.BuildMetrics(batch)

	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		a.afterBatch(context.WithoutCancel(ctx), batch, metrics)
	}()

	return &Response{
		Queue:          queue,
		Metrics:        metrics,
		Clarifications: queue.Clarifications,
		BatchInfo: BatchInfo{
			BatchID:        batch.BatchID,
			UserCommand:    batch.UserCommand,
			Mode:           batch.Mode,
			StartedAt:      batch.StartedAt,
			CompletedAt:    batch.CompletedAt,
			TotalProcessed: batch.TotalProcessed,
		},
		Errors: append([]string{}, batch.Errors...),
	}, nil
}

// Wait blocks until in-flight background work (notifications, feed events,
// memory writes) has drained. Used on shutdown.
func (a *Agent) Wait() {
	a.bg.Wait()
}

// ingest lists the scoped mailbox slice and fetches each message. Duplicate
// refs are dropped; a failed fetch leaves a blocked placeholder so the queue
// still accounts for the message.
func (a *Agent) ingest(ctx context.Context, batch *triage.ProcessingBatch, scope triage.UserScope) error {
	refs, err := a.box.List(ctx, scope.Query, scope.MaxResults, scope.TimeRangeDays)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if ref.ID == "" || seen[ref.ID] {
			continue
		}
		seen[ref.ID] = true

		meta, err := a.box.Fetch(ctx, ref)
		if err != nil {
			batch.Errors = append(batch.Errors, fmt.Sprintf("fetch %s: %v", ref.ID, err))
			e := &triage.ProcessedEmail{
				Metadata:  triage.EmailMetadata{MessageID: ref.ID, ThreadID: ref.ThreadID},
				Status:    triage.StatusBlocked,
				IsBlocked: true,
			}
			e.AddNote("Fetch failed: " + err.Error())
			batch.Emails = append(batch.Emails, e)
			continue
		}
		batch.Emails = append(batch.Emails, &triage.ProcessedEmail{
			Metadata: meta,
			Status:   triage.StatusPending,
		})
	}
	return nil
}

func (a *Agent) abort(batch *triage.ProcessingBatch, err error) *Response {
	batch.Errors = append(batch.Errors, err.Error())
	completed := a.now()
	batch.CompletedAt = &completed
	return &Response{
		Queue:   triage.Queue{BatchID: batch.BatchID},
		Metrics: triage.BuildMetrics(batch),
		BatchInfo: BatchInfo{
			BatchID:     batch.BatchID,
			UserCommand: batch.UserCommand,
			Mode:        batch.Mode,
			StartedAt:   batch.StartedAt,
			CompletedAt: batch.CompletedAt,
		},
		Errors: append([]string{}, batch.Errors...),
	}
}

// flagBodyPII records PII found in the incoming content. The flag alone does
// not block; blocking happens when a draft would carry PII outside the
// allowed domains.
func (a *Agent) flagBodyPII(e *triage.ProcessedEmail) {
	if e.IsSpam || e.IsBlocked {
		return
	}
	kinds := guardrails.DetectPII(e.Metadata.Subject + "\n" + e.Metadata.Body)
	if len(kinds) == 0 {
		return
	}
	e.HasPII = true
	e.AddFlag(triage.SecurityFlag{
		FlagType:    triage.FlagPIIDetected,
		Severity:    triage.SeverityMedium,
		Description: "PII detected in email content",
		Details:     map[string]string{"kinds": strings.Join(kinds, ", ")},
	})
}

// applyDraftGuardrails runs the post-draft policy checks: PII, recipient
// domains, reply-all risk, tone, DND.
func (a *Agent) applyDraftGuardrails(e *triage.ProcessedEmail) {
	if e.Draft == nil {
		return
	}

	if kinds := guardrails.DetectPII(e.Draft.Body); len(kinds) > 0 {
		e.HasPII = true
	}
	for _, f := range a.domains.CheckDraft(e.Draft, e.Category, e.HasPII) {
		e.AddFlag(f)
	}

	originalList := len(e.Metadata.Recipients) + len(e.Metadata.CC)
	if assess := guardrails.AssessReplyAll(a.domains, e.Draft, originalList, e.HasPII, e.Category); assess.Flag != nil {
		e.AddFlag(*assess.Flag)
		e.Draft.RequiresApproval = true
	}

	if ok, phrases := a.tone.Check(e.Draft.Body); !ok {
		e.AddFlag(triage.SecurityFlag{
			FlagType:    triage.FlagToneViolation,
			Severity:    triage.SeverityMedium,
			Description: "Draft contains forbidden phrasing",
			Details:     map[string]string{"phrases": strings.Join(phrases, ", ")},
		})
		e.Draft.RequiresApproval = true
	}

	a.resolver.ApplyDND(e)
}

// finalizeStatus settles the terminal status once drafting and guardrails
// have run. Spam and unfetchable emails stay BLOCKED; policy-blocked drafts
// and escalations wait for a human.
func finalizeStatus(e *triage.ProcessedEmail) {
	switch {
	case e.IsSpam:
		e.Status = triage.StatusBlocked
	case e.IsBlocked && e.Draft != nil:
		e.Status = triage.StatusApprovalRequired
	case e.IsBlocked:
		e.Status = triage.StatusBlocked
	case e.HasFlag(triage.FlagEscalation):
		e.Status = triage.StatusApprovalRequired
	case e.Draft != nil:
		// Drafting already chose DRAFT_READY or APPROVAL_REQUIRED.
	default:
		e.Status = triage.StatusDraftReady
	}
}

// afterBatch performs the best-effort side effects: chat and tracker
// notifications, the feed event, and the memory write-back.
func (a *Agent) afterBatch(ctx context.Context, batch *triage.ProcessingBatch, metrics triage.MetricsReport) {
	if a.dispatcher != nil {
		a.dispatcher.Dispatch(ctx, batch, metrics)
	}

	a.feed(ctx, "batch_completed", map[string]any{
		"batch_id": batch.BatchID,
		"total":    metrics.TotalEmails,
		"high":     metrics.ByLevel[string(triage.PriorityHigh)],
		"drafts":   metrics.DraftsCreated,
		"blocked":  metrics.Blocked,
	})

	if a.mem != nil {
		for _, e := range batch.Emails {
			if e.Draft == nil {
				continue
			}
			a.mem.Write(ctx, memory.Record{
				MessageID: e.Metadata.MessageID,
				Subject:   e.Metadata.Subject,
				Sender:    e.Metadata.Sender,
				Category:  string(e.Category),
				Level:     string(e.Priority.Level),
				ReplyBody: e.Draft.Body,
			})
		}
	}
}

func (a *Agent) feed(ctx context.Context, kind string, values map[string]any) {
	if _, err := a.bus.Append(ctx, a.userID, kind, values); err != nil {
		log.Printf("agent: feed append failed: %v", err)
	}
}
