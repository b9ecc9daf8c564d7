package triage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func emailWith(id string, level PriorityLevel, score int, date time.Time) *ProcessedEmail {
	return &ProcessedEmail{
		Metadata: EmailMetadata{MessageID: id, Date: date},
		Priority: PriorityScore{Score: score, Level: level},
		Status:   StatusDraftReady,
	}
}

func TestSortEmailsOrdering(t *testing.T) {
	d := testNow
	emails := []*ProcessedEmail{
		emailWith("e", PriorityLow, 35, d),
		emailWith("b", PriorityHigh, 80, d.Add(-time.Hour)),
		emailWith("a", PriorityHigh, 80, d), // newer, same level+score as b
		emailWith("d", PriorityMedium, 55, d),
		emailWith("c", PriorityHigh, 75, d),
		emailWith("g", PriorityNotRequired, 10, d),
		emailWith("f", PriorityLow, 35, d), // same as e except id
	}
	SortEmails(emails)

	var ids []string
	for _, e := range emails {
		ids = append(ids, e.Metadata.MessageID)
	}
	require.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g"}, ids)

	// Ties at every other key fall through to the message id.
	for i := 1; i < len(emails); i++ {
		prev, cur := emails[i-1], emails[i]
		if prev.Priority.Level == cur.Priority.Level && prev.Priority.Score == cur.Priority.Score &&
			prev.Metadata.Date.Equal(cur.Metadata.Date) {
			require.Less(t, prev.Metadata.MessageID, cur.Metadata.MessageID)
		}
	}
}

func TestBuildQueueSummaryAndTop10(t *testing.T) {
	batch := &ProcessingBatch{BatchID: "b1"}
	for i := 0; i < 12; i++ {
		e := emailWith(string(rune('a'+i)), PriorityMedium, 55, testNow)
		batch.Emails = append(batch.Emails, e)
	}
	batch.Emails[0].Priority = PriorityScore{Score: 90, Level: PriorityHigh}
	batch.Emails[1].IsBlocked = true
	batch.Emails[2].Draft = &DraftReply{RequiresApproval: true}
	batch.Emails[3].Clarification = &ClarificationRequest{Reason: "ambiguous recipient"}

	q := BuildQueue(batch)
	require.Equal(t, "b1", q.BatchID)
	require.Equal(t, 12, q.Summary.Total)
	require.Equal(t, 1, q.Summary.High)
	require.Equal(t, 11, q.Summary.Medium)
	require.Equal(t, 1, q.Summary.Blocked)
	require.Equal(t, 1, q.Summary.DraftsCreated)
	require.Len(t, q.Top10, 10)
	require.Len(t, q.Clarifications, 1)
	require.Equal(t, PriorityHigh, q.Items[0].Level)
}

func TestQueueJSONShape(t *testing.T) {
	batch := &ProcessingBatch{BatchID: "b2", Emails: []*ProcessedEmail{
		emailWith("m1", PriorityHigh, 75, testNow),
	}}
	raw, err := json.Marshal(BuildQueue(batch))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, key := range []string{"batch_id", "summary", "items", "top_10_emails"} {
		require.Contains(t, m, key)
	}
}

func TestBuildMetrics(t *testing.T) {
	batch := &ProcessingBatch{Emails: []*ProcessedEmail{
		{
			Priority:       PriorityScore{Level: PriorityHigh},
			Category:       CategoryFinance,
			Classification: SenderClassification{IsVIP: true},
			Draft:          &DraftReply{RequiresApproval: true},
		},
		{
			Priority: PriorityScore{Level: PriorityNotRequired},
			Category: CategorySpam,
			IsSpam:   true, IsBlocked: true,
		},
		{
			Priority: PriorityScore{Level: PriorityMedium},
			Category: CategoryAction,
			Intent:   IntentDetection{IsFollowUp: true},
		},
	}}

	m := BuildMetrics(batch)
	require.Equal(t, 3, m.TotalEmails)
	require.Equal(t, 1, m.ByLevel[string(PriorityHigh)])
	require.Equal(t, 1, m.DraftsCreated)
	require.Equal(t, 1, m.ApprovalRequired)
	require.Equal(t, 1, m.Spam)
	require.Equal(t, 1, m.VIPEmails)
	require.Equal(t, 1, m.FollowUps)
	// 3 emails * 3 min + 1 draft * 5 min + 1 follow-up * 2 min
	require.Equal(t, 16, m.TimeSavedMinutes)

	panel := m.RenderPanel()
	require.Contains(t, panel, "Email Triage Summary")
	require.Contains(t, panel, "Processed:         3")
}
