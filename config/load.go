package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the effective config: built-in defaults, then an optional YAML
// overlay, then env overrides for the handful of deploy-time knobs.
func Load(path string) (*Config, error) {
	cfg := Default()
	// The built-in own-domain is a sample value for tests. A deployment
	// sets it via yaml or OWN_DOMAIN; otherwise it stays empty here and is
	// discovered from the authenticated mailbox profile.
	cfg.OwnDomain = ""

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := pickEnv("OWN_DOMAIN"); v != "" {
		cfg.OwnDomain = strings.ToLower(v)
	}
	if v := pickEnv("VIP_EMAILS"); v != "" {
		cfg.VIPEmails = splitList(v)
	}
	if v := pickEnv("VIP_DOMAINS"); v != "" {
		cfg.VIPDomains = splitList(v)
	}
	if v := pickEnv("ALLOWED_DOMAINS"); v != "" {
		cfg.AllowedDomains = splitList(v)
	}
	if v := pickEnv("MAX_EMAILS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxEmails = n
		}
	}
	if v := pickEnv("TIME_RANGE_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TimeRangeDays = n
		}
	}
	if v := pickEnv("DRAFT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.DraftTimeout = d
		}
	}
	if v := pickEnv("DND_WINDOW"); v != "" {
		// "21:00-07:00"
		if start, end, ok := strings.Cut(v, "-"); ok {
			cfg.DND = DNDWindow{Enabled: true, Start: start, End: end}
		}
	}
}

// Validate refuses startup on gaps that would make triage output wrong
// rather than merely degraded.
func (c *Config) Validate() error {
	if c.Thresholds.High <= c.Thresholds.Medium || c.Thresholds.Medium <= c.Thresholds.Low {
		return fmt.Errorf("config: thresholds must be strictly descending, got %d/%d/%d",
			c.Thresholds.High, c.Thresholds.Medium, c.Thresholds.Low)
	}
	if c.Thresholds.High > 100 || c.Thresholds.Low < 0 {
		return fmt.Errorf("config: thresholds out of the 0-100 score range")
	}
	if len(c.UrgencyKeywords) == 0 {
		return fmt.Errorf("config: urgency keyword table is empty")
	}
	if c.SubjectWeight < 1 {
		return fmt.Errorf("config: subject_weight must be >= 1, got %v", c.SubjectWeight)
	}
	if c.UrgencyCap <= 0 {
		return fmt.Errorf("config: urgency_cap must be positive")
	}
	if c.MaxLinkDensity <= 0 || c.MaxLinkDensity > 1 {
		return fmt.Errorf("config: max_link_density must be in (0,1], got %v", c.MaxLinkDensity)
	}
	if c.MaxEmails <= 0 || c.TimeRangeDays <= 0 {
		return fmt.Errorf("config: max_emails and time_range_days must be positive")
	}
	if c.StageWorkers <= 0 || c.DraftWorkers <= 0 {
		return fmt.Errorf("config: worker counts must be positive")
	}
	if c.DND.Enabled {
		for _, hm := range []string{c.DND.Start, c.DND.End} {
			if _, err := time.Parse("15:04", hm); err != nil {
				return fmt.Errorf("config: bad dnd time %q: %w", hm, err)
			}
		}
	}
	return nil
}

// DiscoverOwnDomain fills the own-domain from the authenticated profile
// address when no explicit value was configured. Reports whether it set the
// value.
func (c *Config) DiscoverOwnDomain(address string) bool {
	if c.OwnDomain != "" {
		return false
	}
	address = strings.TrimSpace(address)
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return false
	}
	c.OwnDomain = strings.ToLower(address[at+1:])
	return true
}

// DNDEnd returns the next moment after t at which the quiet window ends.
func (c *Config) DNDEnd(t time.Time) time.Time {
	end, err := time.Parse("15:04", c.DND.End)
	if err != nil {
		return t
	}
	out := time.Date(t.Year(), t.Month(), t.Day(), end.Hour(), end.Minute(), 0, 0, t.Location())
	if !out.After(t) {
		out = out.AddDate(0, 0, 1)
	}
	return out
}

// InDND reports whether t falls inside the configured quiet window,
// handling windows that wrap midnight.
func (c *Config) InDND(t time.Time) bool {
	if !c.DND.Enabled {
		return false
	}
	start, err1 := time.Parse("15:04", c.DND.Start)
	end, err2 := time.Parse("15:04", c.DND.End)
	if err1 != nil || err2 != nil {
		return false
	}
	cur := t.Hour()*60 + t.Minute()
	s := start.Hour()*60 + start.Minute()
	e := end.Hour()*60 + end.Minute()
	if s <= e {
		return cur >= s && cur < e
	}
	return cur >= s || cur < e
}

func pickEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.ToLower(strings.TrimSpace(p)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
