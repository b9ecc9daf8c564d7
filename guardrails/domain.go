package guardrails

import (
	"strconv"
	"strings"

	"mailpilot-cloud/config"
	"mailpilot-cloud/triage"
)

// DomainChecker classifies draft recipients against the allowed-domain list
// and enforces the external-recipient rules for sensitive content.
type DomainChecker struct {
	allowed map[string]bool
}

func NewDomainChecker(cfg *config.Config) *DomainChecker {
	allowed := make(map[string]bool, len(cfg.AllowedDomains)+1)
	for _, d := range cfg.AllowedDomains {
		allowed[strings.ToLower(d)] = true
	}
	if cfg.OwnDomain != "" {
		allowed[strings.ToLower(cfg.OwnDomain)] = true
	}
	return &DomainChecker{allowed: allowed}
}

// Split partitions addresses into internal and external.
func (c *DomainChecker) Split(addrs []string) (internal, external []string) {
	for _, a := range addrs {
		if c.IsInternal(a) {
			internal = append(internal, a)
		} else {
			external = append(external, a)
		}
	}
	return internal, external
}

func (c *DomainChecker) IsInternal(addr string) bool {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		return c.allowed[strings.Trim(addr[i+1:], "<> ")]
	}
	return false
}

// CheckDraft applies the external-domain rules to a draft. External
// recipients combined with PII or a sensitive category block sending.
func (c *DomainChecker) CheckDraft(draft *triage.DraftReply, category triage.Category, hasPII bool) []triage.SecurityFlag {
	if draft == nil {
		return nil
	}
	_, external := c.Split(append(append([]string{}, draft.Recipients...), draft.CC...))
	if len(external) == 0 {
		return nil
	}

	var flags []triage.SecurityFlag
	if hasPII {
		flags = append(flags, triage.SecurityFlag{
			FlagType:      triage.FlagPIIDetected,
			Severity:      triage.SeverityCritical,
			Description:   "PII present with external recipients",
			Details:       map[string]string{"external_count": strconv.Itoa(len(external))},
			BlocksSending: true,
		})
	}
	if triage.SensitiveCategory(category) {
		flags = append(flags, triage.SecurityFlag{
			FlagType:      triage.FlagExternalSender,
			Severity:      triage.SeverityHigh,
			Description:   "Sensitive category draft addressed outside allowed domains",
			Details:       map[string]string{"category": string(category)},
			BlocksSending: true,
		})
	}
	return flags
}
