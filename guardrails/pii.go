// Package guardrails holds the policy checks applied to bodies and drafts:
// PII scrubbing, recipient domain rules, tone enforcement and reply-all risk.
package guardrails

import "regexp"

// piiPattern couples a detector with its canonical placeholder. Order
// matters: the credit-card pattern must run before the phone pattern or the
// latter swallows card numbers.
type piiPattern struct {
	kind        string
	placeholder string
	re          *regexp.Regexp
}

var piiPatterns = []piiPattern{
	{"credit_card", "[CREDIT_CARD]", regexp.MustCompile(`\b(?:\d[ -]?){12,15}\d\b`)},
	{"national_id", "[NATIONAL_ID]", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"bank_account", "[BANK_ACCOUNT]", regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`)},
	{"passport", "[PASSPORT]", regexp.MustCompile(`\b[A-Z]{1,2}\d{6,9}\b`)},
	{"phone", "[PHONE]", regexp.MustCompile(`\+?\d[\d ().-]{7,}\d`)},
	{"email", "[EMAIL]", regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
	{"address", "[ADDRESS]", regexp.MustCompile(`(?i)\b\d{1,5} \w+ (street|st|avenue|ave|road|rd|lane|ln|drive|dr|boulevard|blvd)\b`)},
}

// DetectPII returns the kinds of PII present in text, in detector order.
func DetectPII(text string) []string {
	var kinds []string
	for _, p := range piiPatterns {
		if p.re.MatchString(text) {
			kinds = append(kinds, p.kind)
		}
	}
	return kinds
}

// Anonymize replaces PII substrings with canonical placeholders. The
// placeholders contain no digits or @ signs, so none of the detectors match
// them and scrubbing a scrubbed text is a no-op.
func Anonymize(text string) string {
	for _, p := range piiPatterns {
		text = p.re.ReplaceAllString(text, p.placeholder)
	}
	return text
}
