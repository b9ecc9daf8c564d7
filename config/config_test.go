package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mailpilot.yaml")
	body := `
own_domain: acme.io
thresholds:
  high: 80
  medium: 55
  low: 35
max_emails: 10
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "acme.io", cfg.OwnDomain)
	require.Equal(t, Thresholds{High: 80, Medium: 55, Low: 35}, cfg.Thresholds)
	require.Equal(t, 10, cfg.MaxEmails)
	// untouched defaults survive the overlay
	require.Equal(t, 1.7, cfg.SubjectWeight)
	require.NotEmpty(t, cfg.UrgencyKeywords)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OWN_DOMAIN", "Example.ORG")
	t.Setenv("VIP_EMAILS", "Boss@example.org, cfo@example.org")
	t.Setenv("MAX_EMAILS", "25")
	t.Setenv("DND_WINDOW", "22:00-06:30")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "example.org", cfg.OwnDomain)
	require.Equal(t, []string{"boss@example.org", "cfo@example.org"}, cfg.VIPEmails)
	require.Equal(t, 25, cfg.MaxEmails)
	require.True(t, cfg.DND.Enabled)
	require.Equal(t, "22:00", cfg.DND.Start)
}

func TestLoadLeavesOwnDomainForDiscovery(t *testing.T) {
	t.Setenv("OWN_DOMAIN", "")

	cfg, err := Load("")
	require.NoError(t, err)
	// Unconfigured deployments discover the own-domain from the mailbox
	// profile at capability init.
	require.Empty(t, cfg.OwnDomain)
}

func TestDiscoverOwnDomain(t *testing.T) {
	cfg := &Config{}
	require.True(t, cfg.DiscoverOwnDomain("Me@Acme.Example"))
	require.Equal(t, "acme.example", cfg.OwnDomain)

	// An explicit value is never overwritten.
	require.False(t, cfg.DiscoverOwnDomain("me@other.example"))
	require.Equal(t, "acme.example", cfg.OwnDomain)

	bad := &Config{}
	require.False(t, bad.DiscoverOwnDomain("not-an-address"))
	require.False(t, bad.DiscoverOwnDomain("trailing@"))
	require.Empty(t, bad.OwnDomain)
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cfg := Default()
	cfg.Thresholds = Thresholds{High: 50, Medium: 50, Low: 30}
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Thresholds = Thresholds{High: 120, Medium: 50, Low: 30}
	require.Error(t, cfg.Validate())
}

func TestInDND(t *testing.T) {
	cfg := Default()
	cfg.DND = DNDWindow{Enabled: true, Start: "21:00", End: "07:00"}

	at := func(hhmm string) time.Time {
		tt, err := time.Parse("2006-01-02 15:04", "2026-03-02 "+hhmm)
		require.NoError(t, err)
		return tt
	}

	require.True(t, cfg.InDND(at("23:30")))
	require.True(t, cfg.InDND(at("03:00")))
	require.False(t, cfg.InDND(at("12:00")))
	require.False(t, cfg.InDND(at("07:00")))

	cfg.DND = DNDWindow{Enabled: true, Start: "09:00", End: "17:00"}
	require.True(t, cfg.InDND(at("12:00")))
	require.False(t, cfg.InDND(at("18:00")))

	cfg.DND.Enabled = false
	require.False(t, cfg.InDND(at("12:00")))
}

func TestDNDEnd(t *testing.T) {
	cfg := Default()
	cfg.DND = DNDWindow{Enabled: true, Start: "21:00", End: "07:00"}

	at := func(day, hhmm string) time.Time {
		tt, err := time.Parse("2006-01-02 15:04", day+" "+hhmm)
		require.NoError(t, err)
		return tt
	}

	// Before today's end: same day.
	require.Equal(t, at("2026-03-02", "07:00"), cfg.DNDEnd(at("2026-03-02", "03:00")))
	// After today's end: the window wraps to tomorrow morning.
	require.Equal(t, at("2026-03-03", "07:00"), cfg.DNDEnd(at("2026-03-02", "23:30")))
}
