package triage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"mailpilot-cloud/config"
)

// PriorityScorer combines sender, urgency, action, age, thread and category
// signals into a 0-100 score with a derived level and a reason trace. For a
// fixed config and clock the scorer is deterministic.
type PriorityScorer struct {
	cfg *config.Config
	now func() time.Time
}

func NewPriorityScorer(cfg *config.Config, now func() time.Time) *PriorityScorer {
	if now == nil {
		now = time.Now
	}
	return &PriorityScorer{cfg: cfg, now: now}
}

// factorOrder fixes tie-breaks in the reasoning trace.
var factorOrder = []string{"sender_importance", "urgency", "action", "age", "thread", "category"}

var factorLabels = map[string]string{
	"action":   "Action needed",
	"age":      "Recent email",
	"thread":   "Active thread",
	"category": "Special category",
}

func (p *PriorityScorer) Score(meta EmailMetadata, cls SenderClassification, intent IntentDetection) PriorityScore {
	factors := map[string]int{
		"sender_importance": p.senderFactor(cls, intent),
		"urgency":           minInt(intent.UrgencyScore, 20),
		"action":            actionFactor(intent),
		"age":               p.ageFactor(meta.Date),
		"thread":            threadFactor(meta),
		"category":          categoryFactor(intent),
	}

	total := 0
	for _, v := range factors {
		total += v
	}
	if intent.UrgencyScore >= 15 && total < 50 {
		total = 50
	}
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}

	level := p.level(total)
	return PriorityScore{
		Score:     total,
		Level:     level,
		Factors:   factors,
		Reasoning: reasoning(level, total, factors),
	}
}

// Level maps a score to a priority level using the configured threshold
// table. It is the only place the thresholds are consulted.
func (p *PriorityScorer) level(score int) PriorityLevel {
	t := p.cfg.Thresholds
	switch {
	case score >= t.High:
		return PriorityHigh
	case score >= t.Medium:
		return PriorityMedium
	case score >= t.Low:
		return PriorityLow
	default:
		return PriorityNotRequired
	}
}

func (p *PriorityScorer) senderFactor(cls SenderClassification, intent IntentDetection) int {
	var base int
	switch cls.SenderType {
	case SenderVIP:
		base = 40
	case SenderTeam:
		base = 30
	case SenderCustomer:
		base = 25
	case SenderVendor:
		base = 15
	case SenderUnknown:
		base = 5
	case SenderSpam:
		base = 0
	}
	if intent.Has("complaint") && base < 25 {
		base = 25
	}
	quiet := len(intent.UrgencyKeywords) == 0 && !intent.ActionRequired &&
		!intent.Has("complaint") && !intent.Has("invitation")
	if quiet && base > 20 {
		base = 20
	}
	return base
}

func actionFactor(intent IntentDetection) int {
	v := 0
	if intent.ActionRequired {
		v += 8
	}
	if intent.QuestionAsked {
		v += 4
	}
	if intent.ActionRequired && intent.QuestionAsked {
		v += 3
	}
	if intent.IsFollowUp {
		v += 3
	}
	return minInt(v, 15)
}

func (p *PriorityScorer) ageFactor(date time.Time) int {
	if date.IsZero() {
		return 0
	}
	age := p.now().Sub(date)
	switch {
	case age < time.Hour:
		return 10
	case age < 4*time.Hour:
		return 8
	case age < 24*time.Hour:
		return 5
	case age < 72*time.Hour:
		return 2
	default:
		return 0
	}
}

func threadFactor(meta EmailMetadata) int {
	v := 0
	if strings.HasPrefix(strings.ToLower(meta.Subject), "re:") {
		v += 5
	}
	if len(meta.Recipients) > 0 {
		v += 3
	}
	if meta.HasAttachments {
		v += 2
	}
	return minInt(v, 10)
}

func categoryFactor(intent IntentDetection) int {
	switch {
	case intent.Has("complaint"):
		return 15
	case intent.Has("invitation"):
		return 15
	case intent.Has("legal"), intent.Has("finance"), intent.Has("it"), intent.Has("hr"):
		return 5
	case intent.Has("meeting"):
		return 3
	default:
		return 0
	}
}

// reasoning lists the top three nonzero factors by contribution, ties broken
// by the fixed factor order.
func reasoning(level PriorityLevel, score int, factors map[string]int) string {
	type fc struct {
		name string
		val  int
		ord  int
	}
	var nonzero []fc
	for i, name := range factorOrder {
		if v := factors[name]; v > 0 {
			nonzero = append(nonzero, fc{name, v, i})
		}
	}
	sort.Slice(nonzero, func(i, j int) bool {
		if nonzero[i].val != nonzero[j].val {
			return nonzero[i].val > nonzero[j].val
		}
		return nonzero[i].ord < nonzero[j].ord
	})
	if len(nonzero) > 3 {
		nonzero = nonzero[:3]
	}

	reasons := make([]string, 0, len(nonzero))
	for _, f := range nonzero {
		switch f.name {
		case "sender_importance":
			reasons = append(reasons, fmt.Sprintf("Important sender (+%d)", f.val))
		case "urgency":
			reasons = append(reasons, fmt.Sprintf("Urgent keywords (+%d)", f.val))
		default:
			reasons = append(reasons, factorLabels[f.name])
		}
	}
	if len(reasons) == 0 {
		return fmt.Sprintf("Priority: %s (%d/100) - no contributing factors", level, score)
	}
	return fmt.Sprintf("Priority: %s (%d/100) - %s", level, score, strings.Join(reasons, ", "))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
