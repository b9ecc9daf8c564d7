// Package triage implements the per-email classification stages and the
// batch-level pipeline that turns a mailbox slice into a ranked queue.
package triage

import "time"

// EmailMetadata is immutable after ingestion.
type EmailMetadata struct {
	MessageID      string    `json:"message_id"`
	ThreadID       string    `json:"thread_id"`
	Sender         string    `json:"sender"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	Recipients     []string  `json:"recipients"`
	CC             []string  `json:"cc"`
	Date           time.Time `json:"date"`
	HasAttachments bool      `json:"has_attachments"`
}

type SenderType string

const (
	SenderVIP      SenderType = "VIP"
	SenderTeam     SenderType = "TEAM"
	SenderVendor   SenderType = "VENDOR"
	SenderCustomer SenderType = "CUSTOMER"
	SenderSpam     SenderType = "SPAM"
	SenderUnknown  SenderType = "UNKNOWN"
)

type SenderClassification struct {
	SenderType SenderType `json:"sender_type"`
	IsVIP      bool       `json:"is_vip"`
	IsInternal bool       `json:"is_internal"`
	Domain     string     `json:"domain"`
	Confidence float64    `json:"confidence"`
	Notes      string     `json:"notes,omitempty"`
}

type IntentDetection struct {
	Intents         []string `json:"intents"`
	UrgencyKeywords []string `json:"urgency_keywords"`
	UrgencyScore    int      `json:"urgency_score"`
	ActionRequired  bool     `json:"action_required"`
	QuestionAsked   bool     `json:"question_detected"`
	IsFollowUp      bool     `json:"is_follow_up"`
	PrimaryIntent   string   `json:"primary_intent,omitempty"`
}

// Has reports whether the named intent was detected.
func (d IntentDetection) Has(intent string) bool {
	for _, v := range d.Intents {
		if v == intent {
			return true
		}
	}
	return false
}

type PriorityLevel string

const (
	PriorityHigh        PriorityLevel = "HIGH"
	PriorityMedium      PriorityLevel = "MEDIUM"
	PriorityLow         PriorityLevel = "LOW"
	PriorityNotRequired PriorityLevel = "NOT_REQUIRED"
)

// rank orders levels for queue sorting, highest first.
func (l PriorityLevel) rank() int {
	switch l {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

type PriorityScore struct {
	Score     int            `json:"score"`
	Level     PriorityLevel  `json:"priority_level"`
	Factors   map[string]int `json:"factors"`
	Reasoning string         `json:"reasoning"`
}

type Category string

const (
	CategoryAction        Category = "ACTION"
	CategoryInformational Category = "INFORMATIONAL"
	CategorySpam          Category = "SPAM"
	CategoryMeeting       Category = "MEETING"
	CategoryLegal         Category = "LEGAL"
	CategoryFinance       Category = "FINANCE"
	CategoryHR            Category = "HR"
	CategoryIT            Category = "IT"
	CategoryOther         Category = "OTHER"
)

type FlagType string

const (
	FlagPIIDetected    FlagType = "pii_detected"
	FlagReplyAllWarn   FlagType = "reply_all_warning"
	FlagReplyAllRisk   FlagType = "reply_all_risk"
	FlagLegalContent   FlagType = "legal_content"
	FlagFinanceContent FlagType = "finance_content"
	FlagExternalSender FlagType = "external_sender"
	FlagToneViolation  FlagType = "tone_violation"
	FlagEscalation     FlagType = "escalation"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type SecurityFlag struct {
	FlagType      FlagType          `json:"flag_type"`
	Severity      Severity          `json:"severity"`
	Description   string            `json:"description"`
	Details       map[string]string `json:"details,omitempty"`
	BlocksSending bool              `json:"blocks_sending"`
}

type DraftReply struct {
	Subject          string    `json:"subject"`
	Body             string    `json:"body"`
	Recipients       []string  `json:"recipients"`
	CC               []string  `json:"cc"`
	Tone             string    `json:"tone"`
	PreservesTone    bool      `json:"preserves_tone"`
	CreatedAt        time.Time `json:"created_at"`
	RequiresApproval bool      `json:"requires_approval"`
	DraftID          string    `json:"draft_id,omitempty"`
}

type ClarificationRequest struct {
	Reason    string   `json:"reason"`
	Questions []string `json:"questions"`
}

type Status string

const (
	StatusPending          Status = "PENDING"
	StatusProcessing       Status = "PROCESSING"
	StatusBlocked          Status = "BLOCKED"
	StatusDraftReady       Status = "DRAFT_READY"
	StatusApprovalRequired Status = "APPROVAL_REQUIRED"
)

// ProcessedEmail is the ownership root for one message through the pipeline.
// It is mutated only by the stages in their declared order and frozen when
// the batch completes.
type ProcessedEmail struct {
	Metadata       EmailMetadata         `json:"metadata"`
	Classification SenderClassification  `json:"classification"`
	Intent         IntentDetection       `json:"intent"`
	Priority       PriorityScore         `json:"priority"`
	Category       Category              `json:"category"`
	IsSpam         bool                  `json:"is_spam"`
	IsBlocked      bool                  `json:"is_blocked"`
	RequiresReply  bool                  `json:"requires_reply"`
	HasPII         bool                  `json:"has_pii"`
	Superseded     bool                  `json:"superseded,omitempty"`
	Draft          *DraftReply           `json:"draft_reply,omitempty"`
	SecurityFlags  []SecurityFlag        `json:"security_flags,omitempty"`
	Notes          []string              `json:"processing_notes,omitempty"`
	Status         Status                `json:"status"`
	Clarification  *ClarificationRequest `json:"clarification_request,omitempty"`
	FollowUpAt     *time.Time            `json:"follow_up_at,omitempty"`
}

// AddNote appends to the audit trail.
func (e *ProcessedEmail) AddNote(note string) {
	e.Notes = append(e.Notes, note)
}

// AddFlag records a security flag, propagating the blocking bit.
func (e *ProcessedEmail) AddFlag(f SecurityFlag) {
	e.SecurityFlags = append(e.SecurityFlags, f)
	if f.BlocksSending {
		e.IsBlocked = true
	}
}

// HasFlag reports whether a flag of the given type was recorded.
func (e *ProcessedEmail) HasFlag(t FlagType) bool {
	for _, f := range e.SecurityFlags {
		if f.FlagType == t {
			return true
		}
	}
	return false
}

// UserScope narrows one triage invocation.
type UserScope struct {
	Query         string `json:"query,omitempty"`
	MaxResults    int    `json:"max_results"`
	TimeRangeDays int    `json:"time_range_days"`
}

type ProcessingBatch struct {
	BatchID        string            `json:"batch_id"`
	UserCommand    string            `json:"user_command"`
	UserScope      UserScope         `json:"user_scope"`
	Emails         []*ProcessedEmail `json:"emails"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	Errors         []string          `json:"errors,omitempty"`
	TotalProcessed int               `json:"total_processed"`
	// Mode is "full" when the mailbox grants send scope, "draft_only"
	// otherwise.
	Mode string `json:"mode"`
}
