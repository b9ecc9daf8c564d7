package triage

import (
	"strings"

	"mailpilot-cloud/config"
)

var vendorLocalWords = []string{
	"billing", "noreply", "no-reply", "donotreply", "marketing",
	"newsletter", "notifications", "sales", "promo",
}

var consumerProviders = map[string]bool{
	"gmail.com":   true,
	"yahoo.com":   true,
	"outlook.com": true,
	"hotmail.com": true,
	"icloud.com":  true,
	"proton.me":   true,
}

var spamLocalPatterns = []string{"winner", "prize", "lottery", "xxx"}

// SenderClassifier labels a sender along the VIP/TEAM/VENDOR/CUSTOMER/SPAM/
// UNKNOWN ladder. First match wins.
type SenderClassifier struct {
	cfg *config.Config
}

func NewSenderClassifier(cfg *config.Config) *SenderClassifier {
	return &SenderClassifier{cfg: cfg}
}

// Classify resolves the sender type from the configured allowlists and a few
// local-part heuristics.
func (s *SenderClassifier) Classify(meta EmailMetadata) SenderClassification {
	addr := strings.ToLower(strings.TrimSpace(extractAddress(meta.Sender)))
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, " ") {
		return SenderClassification{
			SenderType: SenderSpam,
			Domain:     domain,
			Confidence: 0.8,
			Notes:      "malformed sender address",
		}
	}

	for _, vip := range s.cfg.VIPEmails {
		if addr == strings.ToLower(vip) {
			return SenderClassification{
				SenderType: SenderVIP, IsVIP: true,
				Domain: domain, Confidence: 1.0,
				Notes: "address on the VIP list",
			}
		}
	}
	for _, d := range s.cfg.VIPDomains {
		if domain == strings.ToLower(d) {
			return SenderClassification{
				SenderType: SenderVIP, IsVIP: true,
				Domain: domain, Confidence: 0.9,
				Notes: "domain on the VIP list",
			}
		}
	}
	if domain == s.cfg.OwnDomain {
		return SenderClassification{
			SenderType: SenderTeam, IsInternal: true,
			Domain: domain, Confidence: 0.8,
		}
	}
	for _, w := range spamLocalPatterns {
		if strings.Contains(local, w) {
			return SenderClassification{
				SenderType: SenderSpam,
				Domain:     domain, Confidence: 0.8,
				Notes: "spam pattern in local part",
			}
		}
	}
	for _, w := range vendorLocalWords {
		if strings.Contains(local, w) {
			return SenderClassification{
				SenderType: SenderVendor,
				Domain:     domain, Confidence: 0.7,
				Notes: "vendor keyword in local part",
			}
		}
	}
	if consumerProviders[domain] {
		return SenderClassification{
			SenderType: SenderCustomer,
			Domain:     domain, Confidence: 0.6,
		}
	}
	return SenderClassification{
		SenderType: SenderUnknown,
		Domain:     domain, Confidence: 0.2,
	}
}

// extractAddress pulls the bare address out of an RFC5322 mailbox string,
// e.g. `Alice Example <alice@example.com>` -> `alice@example.com`.
func extractAddress(s string) string {
	if i := strings.LastIndex(s, "<"); i >= 0 {
		if j := strings.Index(s[i:], ">"); j > 0 {
			return s[i+1 : i+j]
		}
	}
	return s
}
