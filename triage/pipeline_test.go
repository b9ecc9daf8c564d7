package triage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mailpilot-cloud/config"
)

func batchOf(metas ...EmailMetadata) []*ProcessedEmail {
	out := make([]*ProcessedEmail, len(metas))
	for i, m := range metas {
		out[i] = &ProcessedEmail{Metadata: m, Status: StatusPending}
	}
	return out
}

func TestClassifySpamShortCircuit(t *testing.T) {
	p := NewPipeline(config.Default(), fixedNow)
	emails := batchOf(EmailMetadata{
		MessageID: "m1",
		Sender:    "winner99@cheap.example",
		Subject:   "You have won",
		Date:      testNow,
	})
	p.Classify(context.Background(), emails)

	e := emails[0]
	require.True(t, e.IsSpam)
	require.True(t, e.IsBlocked)
	require.Equal(t, StatusBlocked, e.Status)
	require.Equal(t, CategorySpam, e.Category)
	require.Nil(t, e.Draft)
	require.Equal(t, PriorityNotRequired, e.Priority.Level)
}

func TestClassifyNewsletterNotRequired(t *testing.T) {
	p := NewPipeline(config.Default(), fixedNow)
	emails := batchOf(EmailMetadata{
		MessageID: "m1",
		Sender:    "newsletter@marketingco.example",
		Subject:   "Weekly FYI",
		Body:      "No action required, enjoy the read.",
		Date:      testNow.Add(-26 * time.Hour),
	})
	p.Classify(context.Background(), emails)

	e := emails[0]
	require.Equal(t, PriorityNotRequired, e.Priority.Level)
	require.False(t, e.RequiresReply)
	require.LessOrEqual(t, e.Priority.Score, 20)
}

func TestClassifyExternalSenderFlag(t *testing.T) {
	cfg := config.Default()
	cfg.OwnDomain = "company.com"
	cfg.AllowedDomains = []string{"company.com"}
	p := NewPipeline(cfg, fixedNow)

	emails := batchOf(
		EmailMetadata{MessageID: "m1", Sender: "cfo@google.com", Subject: "URGENT: Payment due tomorrow", Body: "by EOD", Date: testNow.Add(-10 * time.Minute), Recipients: []string{"me@company.com"}},
		EmailMetadata{MessageID: "m2", Sender: "dev@company.com", Subject: "standup notes", Date: testNow},
	)
	p.Classify(context.Background(), emails)

	require.True(t, emails[0].HasFlag(FlagExternalSender))
	require.True(t, emails[0].RequiresReply)
	require.Equal(t, PriorityHigh, emails[0].Priority.Level)
	require.False(t, emails[1].HasFlag(FlagExternalSender))
}

func TestClassifyPreservesIngestionOrder(t *testing.T) {
	p := NewPipeline(config.Default(), fixedNow)
	var metas []EmailMetadata
	for i := 0; i < 40; i++ {
		metas = append(metas, EmailMetadata{
			MessageID: string(rune('a' + i%26)),
			Sender:    "person@somewhere.example",
			Subject:   "hello",
			Date:      testNow,
		})
	}
	emails := batchOf(metas...)
	p.Classify(context.Background(), emails)

	for i, e := range emails {
		require.Equal(t, metas[i].MessageID, e.Metadata.MessageID)
		require.NotEqual(t, StatusPending, e.Status)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	cfg := config.Default()
	mk := func() []*ProcessedEmail {
		return batchOf(
			EmailMetadata{MessageID: "m1", Sender: "cfo@google.com", Subject: "URGENT: contract deadline today", Body: "please review the agreement", Date: testNow.Add(-time.Hour)},
			EmailMetadata{MessageID: "m2", Sender: "alice@gmail.com", Subject: "question?", Body: "any update on my ticket?", Date: testNow.Add(-2 * time.Hour)},
		)
	}
	a, b := mk(), mk()
	NewPipeline(cfg, fixedNow).Classify(context.Background(), a)
	NewPipeline(cfg, fixedNow).Classify(context.Background(), b)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	require.JSONEq(t, string(ja), string(jb))
}

func TestClassifyCancelledContext(t *testing.T) {
	p := NewPipeline(config.Default(), fixedNow)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emails := batchOf(EmailMetadata{MessageID: "m1", Sender: "a@b.example", Date: testNow})
	p.Classify(ctx, emails)
	require.Equal(t, StatusBlocked, emails[0].Status)
}
