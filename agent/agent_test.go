package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mailpilot-cloud/config"
	"mailpilot-cloud/mailbox"
	"mailpilot-cloud/notify"
	"mailpilot-cloud/triage"
)

var runNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return runNow }

var allScopes = []string{"read", "compose", "send"}

type savedDraft struct {
	to, cc        []string
	subject, body string
}

type fakeMailbox struct {
	mu       sync.Mutex
	scopes   []string
	refs     []mailbox.MessageRef
	emails   map[string]triage.EmailMetadata
	listErr  error
	fetchErr map[string]error
	drafts   []savedDraft
}

func mailboxWith(scopes []string, emails ...triage.EmailMetadata) *fakeMailbox {
	fm := &fakeMailbox{
		scopes:   scopes,
		emails:   map[string]triage.EmailMetadata{},
		fetchErr: map[string]error{},
	}
	for _, m := range emails {
		fm.refs = append(fm.refs, mailbox.MessageRef{ID: m.MessageID, ThreadID: m.ThreadID})
		fm.emails[m.MessageID] = m
	}
	return fm
}

func (f *fakeMailbox) List(_ context.Context, _ string, maxResults, _ int) ([]mailbox.MessageRef, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.refs) > maxResults {
		return f.refs[:maxResults], nil
	}
	return f.refs, nil
}

func (f *fakeMailbox) Fetch(_ context.Context, ref mailbox.MessageRef) (triage.EmailMetadata, error) {
	if err := f.fetchErr[ref.ID]; err != nil {
		return triage.EmailMetadata{}, err
	}
	return f.emails[ref.ID], nil
}

func (f *fakeMailbox) CreateDraft(_ context.Context, to, cc []string, subject, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, savedDraft{to: to, cc: cc, subject: subject, body: body})
	return fmt.Sprintf("draft-%d", len(f.drafts)), nil
}

func (f *fakeMailbox) Send(context.Context, string, string) error { return nil }
func (f *fakeMailbox) Scopes() []string                           { return f.scopes }
func (f *fakeMailbox) Profile(context.Context) (string, error)    { return "me@company.com", nil }

func (f *fakeMailbox) savedDrafts() []savedDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]savedDraft{}, f.drafts...)
}

type stubGen struct {
	text string
	err  error
}

func (g stubGen) Generate(context.Context, string) (string, error) { return g.text, g.err }

type chatRecorder struct {
	mu    sync.Mutex
	kinds []notify.Kind
}

func (c *chatRecorder) Notify(_ context.Context, kind notify.Kind, _ map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, kind)
	return nil
}

func (c *chatRecorder) seen(kind notify.Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, k := range c.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func newAgent(fm *fakeMailbox, gen stubGen, dispatcher *notify.Dispatcher) *Agent {
	return New(Options{
		Config:     config.Default(),
		Mailbox:    fm,
		Generator:  gen,
		Dispatcher: dispatcher,
		Now:        fixedNow,
	})
}

func item(t *testing.T, q triage.Queue, id string) triage.QueueItem {
	t.Helper()
	for _, it := range q.Items {
		if it.MessageID == id {
			return it
		}
	}
	t.Fatalf("message %s not in queue", id)
	return triage.QueueItem{}
}

func TestRunVIPUrgentPayment(t *testing.T) {
	fm := mailboxWith(allScopes, triage.EmailMetadata{
		MessageID:  "m1",
		Sender:     "cfo@google.com",
		Subject:    "URGENT: Payment due tomorrow",
		Body:       "We need this wired by EOD.",
		Recipients: []string{"me@company.com"},
		Date:       runNow.Add(-10 * time.Minute),
	})
	a := newAgent(fm, stubGen{text: "On it, will confirm shortly."}, nil)

	resp, err := a.Run(context.Background(), "triage my inbox", triage.UserScope{})
	require.NoError(t, err)
	a.Wait()

	it := item(t, resp.Queue, "m1")
	require.Equal(t, triage.PriorityHigh, it.Level)
	require.GreaterOrEqual(t, it.Score, 83)
	require.True(t, it.HasDraft)
	// External VIP sender and sensitive finance content both leave flags.
	require.GreaterOrEqual(t, it.SecurityFlags, 1)
	require.Equal(t, triage.CategoryFinance, it.Category)
	// Finance draft to an external recipient cannot be auto-sent, and the
	// escalation flag is raised alongside the draft.
	require.True(t, it.IsBlocked)
	require.Equal(t, triage.StatusApprovalRequired, it.Status)
	require.Equal(t, 1, resp.Metrics.VIPEmails)
	require.Equal(t, 1, resp.Metrics.Escalations)
}

func TestRunNewsletterNotRequired(t *testing.T) {
	fm := mailboxWith(allScopes, triage.EmailMetadata{
		MessageID: "m1",
		Sender:    "newsletter@marketingco.example",
		Subject:   "Weekly FYI",
		Body:      "This week's roundup. No action required.",
		Date:      runNow.Add(-60 * time.Hour),
	})
	a := newAgent(fm, stubGen{text: "reply"}, nil)

	resp, err := a.Run(context.Background(), "", triage.UserScope{})
	require.NoError(t, err)
	a.Wait()

	it := item(t, resp.Queue, "m1")
	require.Equal(t, triage.PriorityNotRequired, it.Level)
	require.LessOrEqual(t, it.Score, 20)
	require.False(t, it.HasDraft)
	require.Empty(t, fm.savedDrafts())
}

func TestRunConflictSupersedesOlder(t *testing.T) {
	fm := mailboxWith(allScopes,
		triage.EmailMetadata{
			MessageID: "old",
			Sender:    "alice@partner.example",
			Subject:   "Please review the quarterly report",
			Body:      "Can you send the latest numbers over?",
			Date:      runNow.Add(-2 * time.Hour),
		},
		triage.EmailMetadata{
			MessageID: "new",
			Sender:    "alice@partner.example",
			Subject:   "Please review the quarterly report",
			Body:      "Can you send the latest numbers over? Updated figures attached.",
			Date:      runNow.Add(-10 * time.Minute),
		},
	)
	a := newAgent(fm, stubGen{text: "Will send them over today."}, nil)

	resp, err := a.Run(context.Background(), "", triage.UserScope{})
	require.NoError(t, err)
	a.Wait()

	require.Len(t, resp.Queue.Items, 2)
	older := item(t, resp.Queue, "old")
	newer := item(t, resp.Queue, "new")
	require.True(t, older.Superseded)
	require.False(t, older.HasDraft)
	require.True(t, newer.HasDraft)
	// An unknown sender drafts with low confidence, so the batch asks
	// before the reply is approved.
	require.NotEmpty(t, resp.Clarifications)
}

func TestRunPIIToExternalBlocks(t *testing.T) {
	fm := mailboxWith(allScopes, triage.EmailMetadata{
		MessageID: "m1",
		Sender:    "jordan@gmail.com",
		Subject:   "Double charge - urgent",
		Body:      "My card 4111 1111 1111 1111 was charged twice. Please fix this.",
		Date:      runNow.Add(-30 * time.Minute),
	})
	a := newAgent(fm, stubGen{text: "Sorry about that, refund is on the way."}, nil)

	resp, err := a.Run(context.Background(), "", triage.UserScope{})
	require.NoError(t, err)
	a.Wait()

	it := item(t, resp.Queue, "m1")
	require.True(t, it.HasDraft)
	require.True(t, it.IsBlocked)
	require.Equal(t, triage.StatusApprovalRequired, it.Status)
	// Body PII flag, critical PII flag, and reply-all risk at minimum.
	require.GreaterOrEqual(t, it.SecurityFlags, 3)
	require.Equal(t, 1, resp.Metrics.Blocked)
}

func TestRunLegalEscalation(t *testing.T) {
	chat := &chatRecorder{}
	fm := mailboxWith(allScopes, triage.EmailMetadata{
		MessageID: "m1",
		Sender:    "ceo@company.com",
		Subject:   "Re: Contract",
		Body:      "We may have a breach of the agreement. This is urgent, please review before EOD.",
		Date:      runNow.Add(-30 * time.Minute),
	})
	a := newAgent(fm, stubGen{text: "reply"}, notify.NewDispatcher(chat, nil))

	resp, err := a.Run(context.Background(), "", triage.UserScope{})
	require.NoError(t, err)
	a.Wait()

	it := item(t, resp.Queue, "m1")
	require.Equal(t, triage.PriorityHigh, it.Level)
	require.Equal(t, triage.CategoryLegal, it.Category)
	require.False(t, it.HasDraft)
	require.Equal(t, triage.StatusApprovalRequired, it.Status)
	require.Equal(t, 1, resp.Metrics.Escalations)
	require.Equal(t, 1, chat.seen(notify.KindEscalation))
}

func TestRunLLMFailureFallsBackToTemplate(t *testing.T) {
	fm := mailboxWith(allScopes, triage.EmailMetadata{
		MessageID: "m1",
		Sender:    "boss@example.com",
		Subject:   "Quick question",
		Body:      "Can you share the pricing deck today?",
		Date:      runNow.Add(-20 * time.Minute),
	})
	a := newAgent(fm, stubGen{err: errors.New("timeout")}, nil)

	resp, err := a.Run(context.Background(), "", triage.UserScope{})
	require.NoError(t, err)
	a.Wait()

	it := item(t, resp.Queue, "m1")
	require.True(t, it.HasDraft)
	require.Equal(t, triage.StatusDraftReady, it.Status)
	require.Equal(t, 1, resp.Metrics.DraftsCreated)

	drafts := fm.savedDrafts()
	require.Len(t, drafts, 1)
	require.Contains(t, drafts[0].body, "I've received your question")
	require.Equal(t, "Re: Quick question", drafts[0].subject)
}

func TestRunWithoutReadScope(t *testing.T) {
	fm := mailboxWith([]string{"compose"})
	a := newAgent(fm, stubGen{}, nil)

	resp, err := a.Run(context.Background(), "", triage.UserScope{})
	require.ErrorIs(t, err, mailbox.ErrScopeMissing)
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.BatchInfo.BatchID)
	require.Len(t, resp.Errors, 1)
	require.Empty(t, resp.Queue.Items)
}

func TestRunListErrorAborts(t *testing.T) {
	fm := mailboxWith(allScopes)
	fm.listErr = errors.New("backend unavailable")
	a := newAgent(fm, stubGen{}, nil)

	resp, err := a.Run(context.Background(), "", triage.UserScope{})
	require.ErrorContains(t, err, "backend unavailable")
	require.NotNil(t, resp)
	require.Len(t, resp.Errors, 1)
}

func TestRunFetchErrorBlocksOnlyThatEmail(t *testing.T) {
	fm := mailboxWith(allScopes,
		triage.EmailMetadata{
			MessageID: "good",
			Sender:    "bob@company.com",
			Subject:   "Status",
			Body:      "All fine here.",
			Date:      runNow.Add(-1 * time.Hour),
		},
		triage.EmailMetadata{MessageID: "bad"},
	)
	fm.fetchErr["bad"] = errors.New("decode failure")
	a := newAgent(fm, stubGen{}, nil)

	resp, err := a.Run(context.Background(), "", triage.UserScope{})
	require.NoError(t, err)
	a.Wait()

	require.Len(t, resp.Errors, 1)
	require.Len(t, resp.Queue.Items, 2)
	failed := item(t, resp.Queue, "bad")
	require.True(t, failed.IsBlocked)
	require.Equal(t, triage.StatusBlocked, failed.Status)
	good := item(t, resp.Queue, "good")
	require.False(t, good.IsBlocked)
}

func TestRunDeduplicatesRefs(t *testing.T) {
	fm := mailboxWith(allScopes, triage.EmailMetadata{
		MessageID: "m1",
		Sender:    "bob@company.com",
		Subject:   "Status",
		Body:      "All fine here.",
		Date:      runNow.Add(-1 * time.Hour),
	})
	fm.refs = append(fm.refs, mailbox.MessageRef{ID: "m1"})
	a := newAgent(fm, stubGen{}, nil)

	resp, err := a.Run(context.Background(), "", triage.UserScope{})
	require.NoError(t, err)
	a.Wait()
	require.Len(t, resp.Queue.Items, 1)
}

func TestRunDraftOnlyWithoutSendScope(t *testing.T) {
	fm := mailboxWith([]string{"read", "compose"}, triage.EmailMetadata{
		MessageID: "m1",
		Sender:    "boss@example.com",
		Subject:   "Quick question",
		Body:      "Can you share the pricing deck today?",
		Date:      runNow.Add(-20 * time.Minute),
	})
	a := newAgent(fm, stubGen{text: "Sure, sending it now."}, nil)

	resp, err := a.Run(context.Background(), "", triage.UserScope{})
	require.NoError(t, err)
	a.Wait()

	require.Equal(t, "draft_only", resp.BatchInfo.Mode)
	require.Equal(t, 1, resp.Metrics.DraftsCreated)
	require.Equal(t, 1, resp.Metrics.ApprovalRequired)
}

func TestRunDeterministicQueue(t *testing.T) {
	build := func() *fakeMailbox {
		return mailboxWith(allScopes,
			triage.EmailMetadata{
				MessageID: "a",
				Sender:    "cfo@google.com",
				Subject:   "URGENT: Payment due tomorrow",
				Body:      "We need this wired by EOD.",
				Date:      runNow.Add(-10 * time.Minute),
			},
			triage.EmailMetadata{
				MessageID: "b",
				Sender:    "newsletter@marketingco.example",
				Subject:   "Weekly FYI",
				Body:      "This week's roundup. No action required.",
				Date:      runNow.Add(-72 * time.Hour),
			},
			triage.EmailMetadata{
				MessageID: "c",
				Sender:    "bob@company.com",
				Subject:   "Standup notes",
				Body:      "Notes from today attached.",
				Date:      runNow.Add(-3 * time.Hour),
			},
		)
	}

	a1 := newAgent(build(), stubGen{text: "ok"}, nil)
	a2 := newAgent(build(), stubGen{text: "ok"}, nil)

	r1, err := a1.Run(context.Background(), "", triage.UserScope{})
	require.NoError(t, err)
	r2, err := a2.Run(context.Background(), "", triage.UserScope{})
	require.NoError(t, err)
	a1.Wait()
	a2.Wait()

	q1, q2 := r1.Queue, r2.Queue
	q1.BatchID, q2.BatchID = "", ""
	require.Equal(t, q1, q2)
}
