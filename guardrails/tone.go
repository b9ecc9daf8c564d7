package guardrails

import (
	"strings"

	"mailpilot-cloud/config"
)

// ToneEnforcer rejects drafts containing forbidden phrases: profanity,
// binding commitments, legal hedges.
type ToneEnforcer struct {
	forbidden []string
}

func NewToneEnforcer(cfg *config.Config) *ToneEnforcer {
	out := make([]string, 0, len(cfg.ForbiddenTonePhrases))
	for _, p := range cfg.ForbiddenTonePhrases {
		out = append(out, strings.ToLower(p))
	}
	return &ToneEnforcer{forbidden: out}
}

// Check returns whether the text is approved and the phrases that failed it.
func (t *ToneEnforcer) Check(text string) (bool, []string) {
	low := strings.ToLower(text)
	var issues []string
	for _, p := range t.forbidden {
		if strings.Contains(low, p) {
			issues = append(issues, p)
		}
	}
	return len(issues) == 0, issues
}
