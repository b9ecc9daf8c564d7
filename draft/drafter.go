package draft

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"mailpilot-cloud/config"
	"mailpilot-cloud/guardrails"
	"mailpilot-cloud/triage"
)

// Generator is the slice of the LLM router the drafter needs.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Saver persists a draft with the mailbox and returns its id. Optional.
type Saver interface {
	CreateDraft(ctx context.Context, to, cc []string, subject, body string) (string, error)
}

// Drafter produces reply drafts for emails that need one. The prompt is
// anonymized before any network call; LLM failure of any kind degrades to a
// fixed template.
type Drafter struct {
	cfg   *config.Config
	gen   Generator
	saver Saver
	now   func() time.Time

	// Recall, when set, supplies context lines from similar past emails
	// that get folded into the prompt before anonymization.
	Recall func(ctx context.Context, query string) []string
}

func NewDrafter(cfg *config.Config, gen Generator, saver Saver, now func() time.Time) *Drafter {
	if now == nil {
		now = time.Now
	}
	return &Drafter{cfg: cfg, gen: gen, saver: saver, now: now}
}

// DraftBatch drafts replies for every eligible email using a bounded pool.
// The whole stage shares one deadline; emails still pending when it expires
// get the template body.
func (d *Drafter) DraftBatch(ctx context.Context, emails []*triage.ProcessedEmail) {
	eligible := make([]*triage.ProcessedEmail, 0, len(emails))
	for _, e := range emails {
		if e.RequiresReply && !e.IsBlocked && !e.Superseded {
			eligible = append(eligible, e)
		}
	}
	if len(eligible) == 0 {
		return
	}

	deadline := d.cfg.DraftTimeout * time.Duration(1+len(eligible)/d.cfg.DraftWorkers)
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	n := d.cfg.DraftWorkers
	if n > len(eligible) {
		n = len(eligible)
	}
	idx := make(chan int)
	var wg sync.WaitGroup
	wg.Add(n)
	for w := 0; w < n; w++ {
		go func() {
			defer wg.Done()
			for i := range idx {
				d.DraftOne(ctx, eligible[i])
			}
		}()
	}
	for i := range eligible {
		idx <- i
	}
	close(idx)
	wg.Wait()
}

// DraftOne attaches a DraftReply to the email and advances its status.
func (d *Drafter) DraftOne(ctx context.Context, e *triage.ProcessedEmail) {
	body, fromLLM := d.generateBody(ctx, e)

	reply := &triage.DraftReply{
		Subject:          ReplySubject(e.Metadata.Subject),
		Body:             body,
		Recipients:       []string{e.Metadata.Sender},
		Tone:             "professional",
		PreservesTone:    true,
		CreatedAt:        d.now(),
		RequiresApproval: true,
	}
	e.Draft = reply
	if fromLLM {
		e.AddNote("Draft generated by language model")
	} else {
		e.AddNote("Draft generated from template")
	}

	if d.saver != nil {
		id, err := d.saver.CreateDraft(ctx, reply.Recipients, reply.CC, reply.Subject, reply.Body)
		if err != nil {
			log.Printf("draft: persist for %s failed: %v", e.Metadata.MessageID, err)
			e.AddNote("Draft could not be saved to the mailbox")
		} else {
			reply.DraftID = id
		}
	}

	if e.Status != triage.StatusApprovalRequired {
		e.Status = triage.StatusDraftReady
	}
}

func (d *Drafter) generateBody(ctx context.Context, e *triage.ProcessedEmail) (string, bool) {
	if d.gen == nil {
		return templateFor(e), false
	}

	prompt := d.buildPrompt(e)
	if d.Recall != nil {
		if lines := d.Recall(ctx, e.Metadata.Subject); len(lines) > 0 {
			prompt += "\n\nSimilar past emails and how they were answered:\n- " +
				strings.Join(lines, "\n- ")
		}
	}
	prompt = guardrails.Anonymize(prompt)

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.DraftTimeout)
	defer cancel()

	text, err := d.gen.Generate(callCtx, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			log.Printf("draft: llm failed for %s, using template: %v", e.Metadata.MessageID, err)
		}
		return templateFor(e), false
	}
	return strings.TrimSpace(text), true
}

func (d *Drafter) buildPrompt(e *triage.ProcessedEmail) string {
	intent := e.Intent.PrimaryIntent
	if intent == "" {
		intent = "general"
	}
	return fmt.Sprintf(
		"Write a brief, professional reply to this email.\n"+
			"Subject: %s\nFrom: %s\nPrimary intent: %s\nAction required: %t\n\n"+
			"Keep it to 2-3 sentences, acknowledge the message, and state the next step. "+
			"Do not invent commitments or deadlines.",
		e.Metadata.Subject, e.Metadata.Sender, intent, e.Intent.ActionRequired,
	)
}
