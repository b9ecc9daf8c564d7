package triage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mailpilot-cloud/config"
)

// Pipeline runs the pure per-email stages (sender, intent, priority,
// category/spam) over a batch with a bounded worker pool. Results land at
// each email's original index, so batch order is the ingestion order until
// the queue sort.
type Pipeline struct {
	cfg     *config.Config
	sender  *SenderClassifier
	intents *IntentScanner
	scorer  *PriorityScorer
	spam    *SpamFilter
	workers int
}

func NewPipeline(cfg *config.Config, now func() time.Time) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		sender:  NewSenderClassifier(cfg),
		intents: NewIntentScanner(cfg),
		scorer:  NewPriorityScorer(cfg, now),
		spam:    NewSpamFilter(cfg),
		workers: cfg.StageWorkers,
	}
}

// Classify runs the per-email stages concurrently. Each worker owns distinct
// indices, so no locking is needed; a cancelled context leaves the remaining
// emails blocked with a note.
func (p *Pipeline) Classify(ctx context.Context, emails []*ProcessedEmail) {
	n := p.workers
	if n > len(emails) {
		n = len(emails)
	}
	if n < 1 {
		n = 1
	}

	idx := make(chan int)
	var wg sync.WaitGroup
	wg.Add(n)
	for w := 0; w < n; w++ {
		go func() {
			defer wg.Done()
			for i := range idx {
				if err := ctx.Err(); err != nil {
					emails[i].Status = StatusBlocked
					emails[i].AddNote(fmt.Sprintf("Skipped: batch cancelled (%v)", err))
					continue
				}
				p.classifyOne(emails[i])
			}
		}()
	}
	for i := range emails {
		idx <- i
	}
	close(idx)
	wg.Wait()
}

func (p *Pipeline) classifyOne(e *ProcessedEmail) {
	// Emails blocked at ingestion (fetch failures) carry no content to
	// classify.
	if e.IsBlocked {
		return
	}
	e.Status = StatusProcessing

	e.Classification = p.sender.Classify(e.Metadata)
	e.Intent = p.intents.Scan(e.Metadata.Subject, e.Metadata.Body)

	if p.spam.IsSpam(e.Metadata, e.Classification) {
		e.IsSpam = true
		e.IsBlocked = true
		e.Status = StatusBlocked
		e.Category = CategorySpam
		e.Priority = PriorityScore{
			Score:     0,
			Level:     PriorityNotRequired,
			Factors:   map[string]int{},
			Reasoning: fmt.Sprintf("Priority: %s (0/100) - blocked as spam", PriorityNotRequired),
		}
		e.AddNote("Blocked by spam filter")
		return
	}

	e.Priority = p.scorer.Score(e.Metadata, e.Classification, e.Intent)
	e.Category = Categorize(e.Intent, false)

	if !e.Classification.IsInternal && !internalDomain(p.cfg, e.Classification.Domain) {
		e.AddFlag(SecurityFlag{
			FlagType:    FlagExternalSender,
			Severity:    SeverityLow,
			Description: "Sender is outside the allowed domains",
			Details:     map[string]string{"domain": e.Classification.Domain},
		})
	}

	e.RequiresReply = (e.Intent.ActionRequired || e.Intent.QuestionAsked) &&
		e.Priority.Level != PriorityNotRequired
	e.AddNote(e.Priority.Reasoning)
}

func internalDomain(cfg *config.Config, domain string) bool {
	if domain == cfg.OwnDomain {
		return true
	}
	for _, d := range cfg.AllowedDomains {
		if domain == d {
			return true
		}
	}
	return false
}
