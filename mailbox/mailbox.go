// Package mailbox exposes the mail system to the agent as a narrow
// capability: list, fetch, draft, and an approval-gated send.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mailpilot-cloud/triage"
)

// ApprovalStatus values accepted by Send.
const ApprovalApproved = "APPROVED"

var (
	// ErrApprovalRequired is returned by Send when the caller has not
	// asserted approval. Sending is the single external mutation the
	// agent performs; it never happens implicitly.
	ErrApprovalRequired = errors.New("mailbox: send requires approval_status=APPROVED")

	// ErrScopeMissing is returned when the granted scopes do not cover
	// the requested operation.
	ErrScopeMissing = errors.New("mailbox: operation not covered by granted scopes")
)

// MessageRef identifies a message without carrying its content.
type MessageRef struct {
	ID       string
	ThreadID string
}

// Capability is the thin mailbox interface the agent operates against.
// Implementations must be safe for concurrent use.
type Capability interface {
	List(ctx context.Context, query string, maxResults, timeRangeDays int) ([]MessageRef, error)
	Fetch(ctx context.Context, ref MessageRef) (triage.EmailMetadata, error)
	CreateDraft(ctx context.Context, to, cc []string, subject, body string) (string, error)
	Send(ctx context.Context, draftID, approvalStatus string) error
	Scopes() []string
	Profile(ctx context.Context) (string, error)
}

// HasScope checks a granted-scope list.
func HasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

const (
	retryAttempts = 3
	retryBase     = 500 * time.Millisecond
)

// withRetry runs fn with exponential backoff. Only transient errors are
// retried; the caller classifies via the transient predicate.
func withRetry(ctx context.Context, op string, transient func(error) bool, fn func() error) error {
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			wait := retryBase << (attempt - 1)
			log.Printf("mailbox: retrying %s after %v (attempt %d): %v", op, wait, attempt+1, err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return fmt.Errorf("mailbox: %s cancelled: %w", op, ctx.Err())
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if !transient(err) {
			return err
		}
	}
	return fmt.Errorf("mailbox: %s failed after %d attempts: %w", op, retryAttempts, err)
}
