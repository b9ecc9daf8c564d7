// Package draft turns triaged emails into reply drafts, via the LLM router
// when it is healthy and fixed templates when it is not.
package draft

import (
	"strings"

	"mailpilot-cloud/triage"
)

// Fixed fallback bodies, keyed by the reply kind. Not localised.
var templates = map[string]string{
	"question": "Thank you for your email. I've received your question and will get back to you " +
		"with a detailed answer as soon as possible.\n\nBest regards",
	"request": "Thank you for your email. I've received your request and will review it shortly. " +
		"I'll follow up with next steps soon.\n\nBest regards",
	"meeting": "Thank you for the invitation. I'll check my calendar and confirm my availability " +
		"as soon as possible.\n\nBest regards",
	"complaint": "Thank you for bringing this to my attention. I take your concerns seriously and " +
		"will look into this right away. I'll follow up with you shortly.\n\nBest regards",
	"default": "Thank you for your email. I've received your message and will respond as soon " +
		"as possible.\n\nBest regards",
}

// templateFor picks the fallback body for an email.
func templateFor(e *triage.ProcessedEmail) string {
	key := "default"
	switch {
	case e.Intent.Has("complaint"):
		key = "complaint"
	case e.Intent.Has("meeting"), e.Intent.Has("invitation"):
		key = "meeting"
	case e.Intent.QuestionAsked:
		key = "question"
	case e.Intent.ActionRequired:
		key = "request"
	}
	return templates[key]
}

// ReplySubject applies the reply-subject rule: reuse an existing "Re:"
// prefix, otherwise prepend one.
func ReplySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(subject)), "re:") {
		return subject
	}
	return "Re: " + subject
}
