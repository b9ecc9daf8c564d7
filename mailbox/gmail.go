package mailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"mailpilot-cloud/triage"
)

const gmailListPageSize int64 = 50

// GmailMailbox implements Capability on top of the Gmail API.
type GmailMailbox struct {
	service *gmail.Service
	scopes  []string
}

func NewGmailMailbox(service *gmail.Service, scopes []string) *GmailMailbox {
	return &GmailMailbox{service: service, scopes: scopes}
}

func (g *GmailMailbox) Scopes() []string { return g.scopes }

// Profile returns the authenticated account's address; the agent derives
// the operator's own domain from it when none is configured.
func (g *GmailMailbox) Profile(ctx context.Context) (string, error) {
	var addr string
	err := withRetry(ctx, "get profile", transientGmailError, func() error {
		profile, err := g.service.Users.GetProfile("me").Context(ctx).Do()
		if err != nil {
			return err
		}
		addr = profile.EmailAddress
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("mailbox: get profile: %w", err)
	}
	return addr, nil
}

// List returns refs for recent messages matching the query, newest first,
// capped at maxResults.
func (g *GmailMailbox) List(ctx context.Context, query string, maxResults, timeRangeDays int) ([]MessageRef, error) {
	if !HasScope(g.scopes, "read") {
		return nil, ErrScopeMissing
	}

	q := fmt.Sprintf("newer_than:%dd", timeRangeDays)
	if strings.TrimSpace(query) != "" {
		q = query + " " + q
	}

	var refs []MessageRef
	pageToken := ""
	for len(refs) < maxResults {
		var resp *gmail.ListMessagesResponse
		err := withRetry(ctx, "list messages", transientGmailError, func() error {
			call := g.service.Users.Messages.List("me").Q(q).MaxResults(gmailListPageSize).Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("mailbox: list messages: %w", err)
		}
		for _, m := range resp.Messages {
			refs = append(refs, MessageRef{ID: m.Id, ThreadID: m.ThreadId})
			if len(refs) == maxResults {
				break
			}
		}
		if resp.NextPageToken == "" || len(resp.Messages) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	log.Printf("mailbox: listed %d messages for query %q", len(refs), q)
	return refs, nil
}

// Fetch retrieves the full message and flattens it into EmailMetadata.
func (g *GmailMailbox) Fetch(ctx context.Context, ref MessageRef) (triage.EmailMetadata, error) {
	var msg *gmail.Message
	err := withRetry(ctx, "fetch message", transientGmailError, func() error {
		var err error
		msg, err = g.service.Users.Messages.Get("me", ref.ID).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return triage.EmailMetadata{}, fmt.Errorf("mailbox: fetch %s: %w", ref.ID, err)
	}
	return metadataFromMessage(msg), nil
}

// CreateDraft saves a reply draft and returns its id.
func (g *GmailMailbox) CreateDraft(ctx context.Context, to, cc []string, subject, body string) (string, error) {
	if !HasScope(g.scopes, "compose") {
		return "", ErrScopeMissing
	}

	raw := buildRFC822(to, cc, subject, body)
	var id string
	err := withRetry(ctx, "create draft", transientGmailError, func() error {
		draft, err := g.service.Users.Drafts.Create("me", &gmail.Draft{
			Message: &gmail.Message{Raw: base64.URLEncoding.EncodeToString([]byte(raw))},
		}).Context(ctx).Do()
		if err != nil {
			return err
		}
		id = draft.Id
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("mailbox: create draft: %w", err)
	}
	return id, nil
}

// Send dispatches a previously created draft. It is the approval gate: the
// caller must assert approval explicitly and the send scope must be granted.
func (g *GmailMailbox) Send(ctx context.Context, draftID, approvalStatus string) error {
	if approvalStatus != ApprovalApproved {
		return ErrApprovalRequired
	}
	if !HasScope(g.scopes, "send") {
		return ErrScopeMissing
	}
	err := withRetry(ctx, "send draft", transientGmailError, func() error {
		_, err := g.service.Users.Drafts.Send("me", &gmail.Draft{Id: draftID}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("mailbox: send draft %s: %w", draftID, err)
	}
	log.Printf("mailbox: sent draft %s", draftID)
	return nil
}

func buildRFC822(to, cc []string, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	if len(cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(cc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(body)
	return b.String()
}

func transientGmailError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	// Plain transport errors are worth one more try.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
