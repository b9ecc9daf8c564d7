package triage

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"mailpilot-cloud/config"
)

var deadlinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`due (today|tomorrow|this week)`),
	regexp.MustCompile(`deadline.*(today|tomorrow)`),
	regexp.MustCompile(`by (today|tomorrow|eod)`),
	regexp.MustCompile(`within (24|48) hours?`),
}

var actionPhrases = []string{"action required", "please", "need you to", "approval", "required"}

var followUpMarkers = []string{"any update", "following up", "reminder", "checking in"}

// IntentScanner extracts intents, an urgency score and the action/question/
// follow-up flags from subject and body. Subject hits are weighted above
// body hits; subject hard overrides dominate everything else.
type IntentScanner struct {
	cfg *config.Config

	// urgency keys sorted once so scanning order, and with it the
	// matched-keyword list, is stable across runs.
	urgencyKeys []string
}

func NewIntentScanner(cfg *config.Config) *IntentScanner {
	keys := make([]string, 0, len(cfg.UrgencyKeywords))
	for k := range cfg.UrgencyKeywords {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &IntentScanner{cfg: cfg, urgencyKeys: keys}
}

func (s *IntentScanner) Scan(subject, body string) IntentDetection {
	sub := strings.ToLower(subject)
	bod := strings.ToLower(body)
	combined := sub + " " + bod

	// "no action required" must not trip the "action required" keyword, so
	// the urgency and action scans run on negation-stripped text. Reducers
	// still see the full text.
	subPos := strings.ReplaceAll(sub, "no action required", " ")
	bodPos := strings.ReplaceAll(bod, "no action required", " ")
	combinedPos := subPos + " " + bodPos

	det := IntentDetection{}
	score := 0

	// Subject hard overrides. The fixed urgency dominates all scoring
	// below, but domain intents are still recorded so categorization and
	// drafting see them.
	for _, term := range s.cfg.SubjectHighPriority {
		if strings.Contains(subPos, strings.ToLower(term)) {
			det.UrgencyScore = 35
			det.ActionRequired = true
			det.Intents = append([]string{"subject_override"}, s.domainIntents(combined)...)
			det.UrgencyKeywords = []string{term}
			det.PrimaryIntent = "subject_override"
			det.QuestionAsked = strings.Contains(combined, "?")
			det.IsFollowUp = containsAny(combined, followUpMarkers)
			return det
		}
	}
	for _, term := range s.cfg.SubjectLowPriority {
		if strings.Contains(sub, strings.ToLower(term)) {
			score -= 8
		}
	}

	if strings.HasPrefix(sub, "fwd:") || strings.HasPrefix(sub, "fw:") {
		score += 4
	}

	// Urgency keywords, subject weighted.
	for _, kw := range s.urgencyKeys {
		w := s.cfg.UrgencyKeywords[kw]
		hit := false
		if strings.Contains(subPos, kw) {
			score += int(math.Round(float64(w) * s.cfg.SubjectWeight))
			hit = true
		}
		if strings.Contains(bodPos, kw) {
			score += w
			hit = true
		}
		if hit {
			det.UrgencyKeywords = append(det.UrgencyKeywords, kw)
		}
	}

	// Domain intents.
	for _, set := range s.intentSets() {
		if containsAny(combined, set.words) {
			det.Intents = append(det.Intents, set.name)
			score += set.bonus
		}
	}

	// Deadline patterns.
	nearDeadline := false
	for _, re := range deadlinePatterns {
		if re.MatchString(combined) {
			nearDeadline = true
			break
		}
	}
	if nearDeadline {
		score += 8
		det.Intents = append(det.Intents, "near_deadline")
	}
	if nearDeadline && hasIntent(det.Intents, "finance") && score < 32 {
		score = 32
	}

	det.ActionRequired = containsAny(combinedPos, actionPhrases)
	det.QuestionAsked = strings.Contains(combined, "?")

	for _, ind := range s.cfg.LowPriorityIndicators {
		if strings.Contains(combined, strings.ToLower(ind)) {
			score -= 5
		}
	}

	if score < 0 {
		score = 0
	}
	if score > s.cfg.UrgencyCap {
		score = s.cfg.UrgencyCap
	}
	det.UrgencyScore = score

	det.IsFollowUp = containsAny(combined, followUpMarkers)

	if len(det.Intents) > 0 {
		det.PrimaryIntent = det.Intents[0]
	}
	return det
}

type intentSet struct {
	name  string
	words []string
	bonus int
}

func (s *IntentScanner) intentSets() []intentSet {
	return []intentSet{
		{"legal", s.cfg.LegalKeywords, 5},
		{"finance", s.cfg.FinanceKeywords, 6},
		{"it", s.cfg.ITKeywords, 0},
		{"hr", s.cfg.HRKeywords, 0},
		{"academic", s.cfg.AcademicKeywords, 6},
		{"meeting", s.cfg.MeetingKeywords, 0},
		{"invitation", s.cfg.InvitationKeywords, 0},
		{"complaint", s.cfg.ComplaintKeywords, 0},
	}
}

func (s *IntentScanner) domainIntents(text string) []string {
	var out []string
	for _, set := range s.intentSets() {
		if containsAny(text, set.words) {
			out = append(out, set.name)
		}
	}
	return out
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

func hasIntent(intents []string, name string) bool {
	for _, v := range intents {
		if v == name {
			return true
		}
	}
	return false
}
