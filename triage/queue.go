package triage

import "sort"

// QueueSummary is the count roll-up included with every queue.
type QueueSummary struct {
	Total         int `json:"total"`
	High          int `json:"high"`
	Medium        int `json:"medium"`
	Low           int `json:"low"`
	NotRequired   int `json:"not_required"`
	DraftsCreated int `json:"drafts_created"`
	Blocked       int `json:"blocked"`
}

// QueueItem is one ranked entry in the output queue.
type QueueItem struct {
	MessageID     string        `json:"message_id"`
	Sender        string        `json:"sender"`
	Subject       string        `json:"subject"`
	Score         int           `json:"score"`
	Level         PriorityLevel `json:"priority_level"`
	Category      Category      `json:"category"`
	Status        Status        `json:"status"`
	Reasoning     string        `json:"reasoning"`
	HasDraft      bool          `json:"has_draft"`
	IsBlocked     bool          `json:"is_blocked"`
	Superseded    bool          `json:"superseded,omitempty"`
	SecurityFlags int           `json:"security_flags"`
}

// Queue is the deterministic ranked output of a batch.
type Queue struct {
	BatchID        string                 `json:"batch_id"`
	Summary        QueueSummary           `json:"summary"`
	Items          []QueueItem            `json:"items"`
	Top10          []QueueItem            `json:"top_10_emails"`
	Clarifications []ClarificationRequest `json:"clarifications,omitempty"`
}

// SortEmails orders a batch by (level DESC, score DESC, date DESC,
// message_id ASC). The message id tie-break makes the order total.
func SortEmails(emails []*ProcessedEmail) {
	sort.SliceStable(emails, func(i, j int) bool {
		a, b := emails[i], emails[j]
		if ra, rb := a.Priority.Level.rank(), b.Priority.Level.rank(); ra != rb {
			return ra > rb
		}
		if a.Priority.Score != b.Priority.Score {
			return a.Priority.Score > b.Priority.Score
		}
		if !a.Metadata.Date.Equal(b.Metadata.Date) {
			return a.Metadata.Date.After(b.Metadata.Date)
		}
		return a.Metadata.MessageID < b.Metadata.MessageID
	})
}

// BuildQueue sorts the batch in place and assembles the output queue.
func BuildQueue(batch *ProcessingBatch) Queue {
	SortEmails(batch.Emails)

	q := Queue{BatchID: batch.BatchID}
	for _, e := range batch.Emails {
		q.Summary.Total++
		switch e.Priority.Level {
		case PriorityHigh:
			q.Summary.High++
		case PriorityMedium:
			q.Summary.Medium++
		case PriorityLow:
			q.Summary.Low++
		default:
			q.Summary.NotRequired++
		}
		if e.Draft != nil {
			q.Summary.DraftsCreated++
		}
		if e.IsBlocked {
			q.Summary.Blocked++
		}
		q.Items = append(q.Items, QueueItem{
			MessageID:     e.Metadata.MessageID,
			Sender:        e.Metadata.Sender,
			Subject:       e.Metadata.Subject,
			Score:         e.Priority.Score,
			Level:         e.Priority.Level,
			Category:      e.Category,
			Status:        e.Status,
			Reasoning:     e.Priority.Reasoning,
			HasDraft:      e.Draft != nil,
			IsBlocked:     e.IsBlocked,
			Superseded:    e.Superseded,
			SecurityFlags: len(e.SecurityFlags),
		})
		if e.Clarification != nil {
			q.Clarifications = append(q.Clarifications, *e.Clarification)
		}
	}
	if len(q.Items) > 10 {
		q.Top10 = q.Items[:10]
	} else {
		q.Top10 = q.Items
	}
	return q
}
