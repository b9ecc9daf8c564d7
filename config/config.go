package config

import "time"

// Thresholds is the single source of truth for mapping a 0-100 priority
// score to a priority level.
type Thresholds struct {
	High   int `yaml:"high"`
	Medium int `yaml:"medium"`
	Low    int `yaml:"low"`
}

// DNDWindow is a daily do-not-disturb window in local wall-clock time.
// Start and End are "HH:MM"; a window may wrap midnight (e.g. 21:00-07:00).
type DNDWindow struct {
	Enabled bool   `yaml:"enabled"`
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
}

// Config holds the static classification tables and policy knobs. It is
// loaded once at startup and treated as read-only afterwards.
type Config struct {
	// Organization context
	OwnDomain      string   `yaml:"own_domain"`
	VIPEmails      []string `yaml:"vip_emails"`
	VIPDomains     []string `yaml:"vip_domains"`
	AllowedDomains []string `yaml:"allowed_domains"`

	// Subject hard overrides
	SubjectHighPriority []string `yaml:"subject_high_priority"`
	SubjectLowPriority  []string `yaml:"subject_low_priority"`

	// Urgency keywords with weights (body weight; subject hits are
	// multiplied by SubjectWeight and rounded).
	UrgencyKeywords map[string]int `yaml:"urgency_keywords"`
	SubjectWeight   float64        `yaml:"subject_weight"`
	UrgencyCap      int            `yaml:"urgency_cap"`

	// Domain intent keyword sets
	LegalKeywords      []string `yaml:"legal_keywords"`
	FinanceKeywords    []string `yaml:"finance_keywords"`
	ITKeywords         []string `yaml:"it_keywords"`
	HRKeywords         []string `yaml:"hr_keywords"`
	AcademicKeywords   []string `yaml:"academic_keywords"`
	MeetingKeywords    []string `yaml:"meeting_keywords"`
	InvitationKeywords []string `yaml:"invitation_keywords"`
	ComplaintKeywords  []string `yaml:"complaint_keywords"`

	LowPriorityIndicators []string `yaml:"low_priority_indicators"`

	// Spam filter
	SpamSubjectPatterns []string `yaml:"spam_subject_patterns"`
	MaxLinkDensity      float64  `yaml:"max_link_density"`

	// Tone enforcement
	ForbiddenTonePhrases []string `yaml:"forbidden_tone_phrases"`

	Thresholds Thresholds `yaml:"thresholds"`
	DND        DNDWindow  `yaml:"dnd"`

	// Ingestion defaults
	MaxEmails     int `yaml:"max_emails"`
	TimeRangeDays int `yaml:"time_range_days"`

	// Drafting
	DraftTimeout time.Duration `yaml:"draft_timeout"`
	DraftWorkers int           `yaml:"draft_workers"`
	StageWorkers int           `yaml:"stage_workers"`
}

// Default returns the built-in tables. Values mirror the operator playbook
// the agent shipped with; deployments override via YAML or env.
func Default() *Config {
	return &Config{
		OwnDomain: "company.com",
		VIPEmails: []string{"boss@example.com", "ceo@example.com"},
		VIPDomains: []string{
			"google.com", "deepmind.com", "ycombinator.com",
			"microsoft.com", "apple.com", "amazon.com",
			"meta.com", "facebook.com", "openai.com",
			"anthropic.com", "nvidia.com", "tesla.com",
		},
		AllowedDomains: []string{"company.com"},

		SubjectHighPriority: []string{
			"high priority", "urgent", "action required", "payment due",
			"fee demand", "deadline", "overdue", "approval required",
			"security alert", "incident", "outage",
		},
		SubjectLowPriority: []string{
			"fyi", "newsletter", "notification",
			"no action required", "for your information",
		},

		UrgencyKeywords: map[string]int{
			"emergency":       11,
			"immediately":     10,
			"critical":        10,
			"production down": 11,
			"system down":     11,
			"outage":          10,
			"data loss":       10,
			"security breach": 11,
			"urgent":          8,
			"asap":            8,
			"blocked":         8,
			"blocker":         8,
			"stuck":           7,
			"time sensitive":  8,
			"today":           7,
			"before eod":      7,
			"deadline":        6,
			"action required": 6,
			"please review":   5,
			"waiting on":      6,
			"reminder":        4,
			"follow up":       4,
			"update":          3,
			"no rush":         1,
		},
		SubjectWeight: 1.7,
		UrgencyCap:    40,

		LegalKeywords:      []string{"contract", "agreement", "legal", "lawyer", "compliance"},
		FinanceKeywords:    []string{"invoice", "payment", "bank", "fee", "salary", "tax"},
		ITKeywords:         []string{"access", "password", "login", "server", "database", "api"},
		HRKeywords:         []string{"offer", "hiring", "leave", "vacation"},
		AcademicKeywords:   []string{"semester", "academic year", "registration", "exam", "tuition"},
		MeetingKeywords:    []string{"schedule", "calendar", "meet", "zoom"},
		InvitationKeywords: []string{"invited", "invitation", "join"},
		ComplaintKeywords: []string{
			"complaint", "unacceptable", "frustrated",
			"not working", "escalate", "unhappy",
		},

		LowPriorityIndicators: []string{
			"fyi", "no action required", "optional",
			"newsletter", "automated", "unsubscribe",
		},

		SpamSubjectPatterns: []string{
			"you have won", "claim your prize", "act now", "100% free",
			"limited time offer", "winner!!", "casino", "crypto giveaway",
		},
		MaxLinkDensity: 0.25,

		ForbiddenTonePhrases: []string{
			"we guarantee", "i guarantee", "you are legally obligated",
			"this constitutes acceptance", "damn", "hell no", "stupid",
			"idiot", "shut up",
		},

		Thresholds: Thresholds{High: 70, Medium: 50, Low: 30},
		DND:        DNDWindow{Enabled: false, Start: "21:00", End: "07:00"},

		MaxEmails:     50,
		TimeRangeDays: 7,

		DraftTimeout: 20 * time.Second,
		DraftWorkers: 4,
		StageWorkers: 8,
	}
}
