package triage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mailpilot-cloud/config"
)

func TestResolveConflictsKeepsNewest(t *testing.T) {
	r := NewEdgeResolver(config.Default(), fixedNow)
	older := &ProcessedEmail{Metadata: EmailMetadata{
		MessageID: "m1", Sender: "alice@partner.example", Date: testNow.Add(-2 * time.Hour),
	}}
	newer := &ProcessedEmail{Metadata: EmailMetadata{
		MessageID: "m2", Sender: "Alice <alice@partner.example>", Date: testNow,
	}}
	other := &ProcessedEmail{Metadata: EmailMetadata{
		MessageID: "m3", Sender: "bob@partner.example", Date: testNow.Add(-3 * time.Hour),
	}}

	r.ResolveConflicts([]*ProcessedEmail{older, newer, other})

	require.True(t, older.Superseded)
	require.Contains(t, older.Notes, "Superseded by a newer email from the same sender")
	require.False(t, newer.Superseded)
	require.False(t, other.Superseded)
}

func TestApplyPermissionMode(t *testing.T) {
	r := NewEdgeResolver(config.Default(), fixedNow)
	batch := &ProcessingBatch{Emails: []*ProcessedEmail{
		{Draft: &DraftReply{RequiresApproval: false}},
	}}

	r.ApplyPermissionMode(batch, []string{"read", "compose"})
	require.Equal(t, "draft_only", batch.Mode)
	require.True(t, batch.Emails[0].Draft.RequiresApproval)

	batch2 := &ProcessingBatch{}
	r.ApplyPermissionMode(batch2, []string{"read", "compose", "send"})
	require.Equal(t, "full", batch2.Mode)
}

func TestApplyDND(t *testing.T) {
	cfg := config.Default()
	cfg.DND = config.DNDWindow{Enabled: true, Start: "00:00", End: "23:59"}
	r := NewEdgeResolver(cfg, fixedNow)

	ext := &ProcessedEmail{
		Classification: SenderClassification{SenderType: SenderCustomer},
		Draft:          &DraftReply{},
	}
	r.ApplyDND(ext)
	require.True(t, ext.Draft.RequiresApproval)
	require.NotEmpty(t, ext.Notes)
	require.NotNil(t, ext.FollowUpAt)
	require.Equal(t, time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC), *ext.FollowUpAt)
	require.Contains(t, ext.Notes[0], "follow-up scheduled")

	internal := &ProcessedEmail{
		Classification: SenderClassification{SenderType: SenderTeam, IsInternal: true},
		Draft:          &DraftReply{},
	}
	r.ApplyDND(internal)
	require.False(t, internal.Draft.RequiresApproval)
	require.Nil(t, internal.FollowUpAt)
}

func TestEscalateLegalHigh(t *testing.T) {
	r := NewEdgeResolver(config.Default(), fixedNow)
	e := &ProcessedEmail{
		Intent:        IntentDetection{Intents: []string{"legal"}},
		Priority:      PriorityScore{Score: 85, Level: PriorityHigh},
		RequiresReply: true,
	}
	require.True(t, r.Escalate(e))
	require.False(t, e.RequiresReply)
	require.True(t, e.HasFlag(FlagEscalation))
	require.True(t, e.HasFlag(FlagLegalContent))

	// Medium priority finance email does not escalate.
	f := &ProcessedEmail{
		Intent:   IntentDetection{Intents: []string{"finance"}},
		Priority: PriorityScore{Score: 60, Level: PriorityMedium},
	}
	require.False(t, r.Escalate(f))
}

func TestEscalateFinanceKeepsReply(t *testing.T) {
	r := NewEdgeResolver(config.Default(), fixedNow)
	e := &ProcessedEmail{
		Intent:        IntentDetection{Intents: []string{"finance"}},
		Priority:      PriorityScore{Score: 86, Level: PriorityHigh},
		RequiresReply: true,
	}
	require.True(t, r.Escalate(e))
	// Finance email still drafts; only the escalation flags are raised and
	// the guardrails hold the draft for approval.
	require.True(t, e.RequiresReply)
	require.True(t, e.HasFlag(FlagEscalation))
	require.True(t, e.HasFlag(FlagFinanceContent))
	require.False(t, e.HasFlag(FlagLegalContent))
}
