package guardrails

import (
	"fmt"
	"strconv"

	"mailpilot-cloud/triage"
)

// ReplyAllAssessment is the outcome of the reply-all risk table.
type ReplyAllAssessment struct {
	Total            int
	ExternalCount    int
	Mixed            bool
	OriginalListSize int
	Flag             *triage.SecurityFlag
}

// AssessReplyAll evaluates a draft's recipient list against the reply-all
// severity table. originalList is the recipient count of the email being
// replied to.
func AssessReplyAll(c *DomainChecker, draft *triage.DraftReply, originalList int, hasPII bool, category triage.Category) ReplyAllAssessment {
	all := append(append([]string{}, draft.Recipients...), draft.CC...)
	internal, external := c.Split(all)

	a := ReplyAllAssessment{
		Total:            len(all),
		ExternalCount:    len(external),
		Mixed:            len(internal) > 0 && len(external) > 0,
		OriginalListSize: originalList,
	}

	details := map[string]string{
		"total_recipients": strconv.Itoa(a.Total),
		"external_count":   strconv.Itoa(a.ExternalCount),
		"original_list":    strconv.Itoa(originalList),
	}

	block := func(sev triage.Severity, desc string) {
		a.Flag = &triage.SecurityFlag{
			FlagType:      triage.FlagReplyAllRisk,
			Severity:      sev,
			Description:   desc,
			Details:       details,
			BlocksSending: true,
		}
	}

	switch {
	case hasPII && a.ExternalCount > 0:
		block(triage.SeverityCritical, "PII in draft with external recipients")
	case triage.SensitiveCategory(category) && a.ExternalCount > 0:
		block(triage.SeverityHigh, fmt.Sprintf("Sensitive %s content with external recipients", category))
	case a.ExternalCount > 3:
		block(triage.SeverityHigh, "More than 3 external recipients")
	case a.Mixed && a.ExternalCount > 2:
		block(triage.SeverityHigh, "Mixed internal/external audience with several external recipients")
	case a.Total > 5 || originalList > 10:
		a.Flag = &triage.SecurityFlag{
			FlagType:    triage.FlagReplyAllWarn,
			Severity:    triage.SeverityMedium,
			Description: "Wide recipient list; approval required",
			Details:     details,
		}
	}
	return a
}
