package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mailpilot-cloud/agent"
	"mailpilot-cloud/config"
	"mailpilot-cloud/mailbox"
	"mailpilot-cloud/memory"
	"mailpilot-cloud/security"
	"mailpilot-cloud/streams"
	"mailpilot-cloud/triage"
)

var (
	runUserID     string
	runQuery      string
	runMaxResults int
	runTimeRange  int
)

var runCmd = &cobra.Command{
	Use:   "run [command...]",
	Short: "Run one triage batch against the authorized mailbox",
	Long: `Runs a single triage batch and prints the ranked queue and a metrics
panel. Requires a stored Gmail token; authorize through the server's
/auth/google endpoint first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(strings.Join(args, " "))
	},
}

func init() {
	runCmd.Flags().StringVar(&runUserID, "user", "default", "user id the mailbox token is stored under")
	runCmd.Flags().StringVar(&runQuery, "query", "", "mailbox search query")
	runCmd.Flags().IntVar(&runMaxResults, "max", 0, "maximum emails to ingest (default from config)")
	runCmd.Flags().IntVar(&runTimeRange, "days", 0, "time range in days (default from config)")
}

func runOnce(command string) error {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	rdb, err := streams.Init(ctx)
	if err != nil {
		return fmt.Errorf("redis is required for the stored mailbox token: %w", err)
	}
	defer rdb.Close()

	tokens := security.NewTokenStore(rdb,
		envOr("GMAIL_CLIENT_ID", ""),
		envOr("GMAIL_CLIENT_SECRET", ""),
		envOr("OAUTH_REDIRECT_URL", "http://localhost:8080/auth/google/callback"))
	google := security.NewGoogleClient(tokens)

	svc, err := google.GmailService(ctx, runUserID)
	if err != nil {
		return fmt.Errorf("no mailbox for user %s (authorize via /auth/google first): %w", runUserID, err)
	}
	box := mailbox.NewGmailMailbox(svc, security.GrantedScopes(security.GmailScopes))

	if cfg.OwnDomain == "" {
		if addr, err := box.Profile(ctx); err == nil && cfg.DiscoverOwnDomain(addr) {
			log.Printf("Own domain discovered from mailbox profile: %s", cfg.OwnDomain)
		}
	}

	ag := agent.New(agent.Options{
		Config:     cfg,
		Mailbox:    box,
		Generator:  generatorFromEnv(),
		Dispatcher: dispatcherFromEnv(),
		Bus:        streams.NewBus(rdb),
		Memory:     memory.NewFromEnv(),
		UserID:     runUserID,
	})

	resp, err := ag.Run(ctx, command, triage.UserScope{
		Query:         runQuery,
		MaxResults:    runMaxResults,
		TimeRangeDays: runTimeRange,
	})
	if err != nil {
		return err
	}
	ag.Wait()

	out, err := json.MarshalIndent(resp.Queue, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	fmt.Println(string(out))
	fmt.Println(resp.Metrics.RenderPanel())
	if len(resp.Errors) > 0 {
		fmt.Printf("%d email(s) could not be processed; see queue notes\n", len(resp.Errors))
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
