package triage

import (
	"strings"
	"time"

	"mailpilot-cloud/config"
)

// EdgeResolver applies the batch-level policies: same-sender conflict
// resolution, DND gating, mailbox permission mode, and legal/finance
// escalation. It runs once before drafting.
type EdgeResolver struct {
	cfg *config.Config
	now func() time.Time
}

func NewEdgeResolver(cfg *config.Config, now func() time.Time) *EdgeResolver {
	if now == nil {
		now = time.Now
	}
	return &EdgeResolver{cfg: cfg, now: now}
}

// ResolveConflicts keeps the most recent email per sender. Older ones stay
// in the queue with their status unchanged but are excluded from drafting.
func (r *EdgeResolver) ResolveConflicts(emails []*ProcessedEmail) {
	newest := make(map[string]*ProcessedEmail)
	for _, e := range emails {
		key := strings.ToLower(extractAddress(e.Metadata.Sender))
		if key == "" {
			continue
		}
		cur, ok := newest[key]
		if !ok || e.Metadata.Date.After(cur.Metadata.Date) {
			newest[key] = e
		}
	}
	for _, e := range emails {
		key := strings.ToLower(extractAddress(e.Metadata.Sender))
		if key == "" {
			continue
		}
		if newest[key] != e {
			e.Superseded = true
			e.AddNote("Superseded by a newer email from the same sender")
		}
	}
}

// ApplyPermissionMode inspects the scopes the mailbox capability granted.
// Without send scope every draft requires approval and the batch runs in
// draft_only mode.
func (r *EdgeResolver) ApplyPermissionMode(batch *ProcessingBatch, scopes []string) {
	canSend := false
	for _, s := range scopes {
		if s == "send" {
			canSend = true
		}
	}
	if canSend {
		batch.Mode = "full"
		return
	}
	batch.Mode = "draft_only"
	for _, e := range batch.Emails {
		if e.Draft != nil {
			e.Draft.RequiresApproval = true
		}
		e.AddNote("Mailbox lacks send scope; draft-only mode")
	}
}

// ApplyDND blocks auto-approval of drafts to external recipients during the
// configured quiet window and schedules a follow-up for when it ends.
func (r *EdgeResolver) ApplyDND(e *ProcessedEmail) {
	if !r.cfg.InDND(r.now()) {
		return
	}
	if e.Classification.IsInternal {
		return
	}
	if e.Draft != nil {
		e.Draft.RequiresApproval = true
	}
	resume := r.cfg.DNDEnd(r.now())
	e.FollowUpAt = &resume
	e.AddNote("Prepared during do-not-disturb window; follow-up scheduled for " + resume.Format("Jan 2 15:04"))
}

// Escalate flags legal and finance emails at HIGH priority for human review.
// Legal content never gets an auto-reply. Finance email still drafts; the
// sensitive-content guardrails hold that draft for approval.
func (r *EdgeResolver) Escalate(e *ProcessedEmail) bool {
	if e.Priority.Level != PriorityHigh {
		return false
	}
	legal := e.Intent.Has("legal")
	if !legal && !e.Intent.Has("finance") {
		return false
	}
	cat := "finance"
	flagType := FlagFinanceContent
	if legal {
		cat = "legal"
		flagType = FlagLegalContent
	}
	e.AddFlag(SecurityFlag{
		FlagType:    FlagEscalation,
		Severity:    SeverityHigh,
		Description: "High-priority " + cat + " email requires human review",
		Details:     map[string]string{"category": cat},
	})
	e.AddFlag(SecurityFlag{
		FlagType:    flagType,
		Severity:    SeverityHigh,
		Description: "Sensitive " + cat + " content detected",
	})
	if legal {
		e.RequiresReply = false
		e.AddNote("Escalated for human review; auto-reply suppressed")
	} else {
		e.AddNote("Escalated for human review; draft held for approval")
	}
	return true
}
