package draft

import (
	"strings"

	"mailpilot-cloud/triage"
)

// Generic local parts that make the real recipient of a reply ambiguous.
var ambiguousLocalParts = []string{
	"info", "contact", "admin", "office", "hello", "support", "team", "sales",
}

const minConfidence = 0.6

// NeedsClarification inspects a triaged email for ambiguity that should be
// resolved by a human before a reply is approved: a generic sender address,
// low classification confidence or too many competing intents, or an
// action request with no substance to act on.
func NeedsClarification(e *triage.ProcessedEmail) *triage.ClarificationRequest {
	var questions []string
	var reasons []string

	local := senderLocalPart(e.Metadata.Sender)
	for _, g := range ambiguousLocalParts {
		if local == g {
			reasons = append(reasons, "ambiguous recipient")
			questions = append(questions,
				"This came from a shared address ("+local+"@). Who should the reply go to?")
			break
		}
	}

	if e.Classification.Confidence < minConfidence || len(e.Intent.Intents) > 3 {
		reasons = append(reasons, "unclear intent")
		questions = append(questions,
			"The intent of this email is unclear. What outcome do you want from the reply?")
	}

	if e.Intent.ActionRequired && len(strings.TrimSpace(e.Metadata.Body)) < 20 {
		reasons = append(reasons, "missing critical info")
		questions = append(questions,
			"The email asks for action but gives almost no detail. What context should the reply include?")
	}

	if len(questions) == 0 {
		return nil
	}
	return &triage.ClarificationRequest{
		Reason:    strings.Join(reasons, "; "),
		Questions: questions,
	}
}

func senderLocalPart(sender string) string {
	addr := strings.ToLower(strings.TrimSpace(sender))
	if i := strings.LastIndex(addr, "<"); i >= 0 {
		if j := strings.Index(addr[i:], ">"); j > 0 {
			addr = addr[i+1 : i+j]
		}
	}
	local, _, _ := strings.Cut(addr, "@")
	return local
}
