package triage

import (
	"strings"

	"mailpilot-cloud/config"
)

// SpamFilter flags obvious junk so the rest of the pipeline can short-circuit.
type SpamFilter struct {
	cfg *config.Config
}

func NewSpamFilter(cfg *config.Config) *SpamFilter {
	return &SpamFilter{cfg: cfg}
}

// IsSpam returns true when the sender classified as spam, the subject
// matches a known spam pattern, or the body is mostly links.
func (s *SpamFilter) IsSpam(meta EmailMetadata, cls SenderClassification) bool {
	if cls.SenderType == SenderSpam {
		return true
	}
	sub := strings.ToLower(meta.Subject)
	for _, pat := range s.cfg.SpamSubjectPatterns {
		if strings.Contains(sub, strings.ToLower(pat)) {
			return true
		}
	}
	return linkDensity(meta.Body) > s.cfg.MaxLinkDensity
}

// linkDensity is the share of whitespace-separated tokens that are links.
func linkDensity(body string) float64 {
	words := strings.Fields(body)
	if len(words) == 0 {
		return 0
	}
	links := 0
	for _, w := range words {
		lw := strings.ToLower(w)
		if strings.HasPrefix(lw, "http://") || strings.HasPrefix(lw, "https://") || strings.HasPrefix(lw, "www.") {
			links++
		}
	}
	return float64(links) / float64(len(words))
}

// Categorize picks the final category with a fixed precedence: spam above
// everything, then legal, finance, complaint, it, hr, meeting/invitation,
// then ACTION for anything still requiring action, else INFORMATIONAL.
func Categorize(intent IntentDetection, isSpam bool) Category {
	switch {
	case isSpam:
		return CategorySpam
	case intent.Has("legal"):
		return CategoryLegal
	case intent.Has("finance"):
		return CategoryFinance
	case intent.Has("complaint"):
		return CategoryAction
	case intent.Has("it"):
		return CategoryIT
	case intent.Has("hr"):
		return CategoryHR
	case intent.Has("meeting"), intent.Has("invitation"):
		return CategoryMeeting
	case intent.ActionRequired:
		return CategoryAction
	default:
		return CategoryInformational
	}
}

// SensitiveCategory reports whether the category is subject to the stricter
// external-recipient rules.
func SensitiveCategory(c Category) bool {
	return c == CategoryLegal || c == CategoryFinance
}
