package cmd

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mailpilot-cloud/config"
	"mailpilot-cloud/draft"
	"mailpilot-cloud/llm"
	"mailpilot-cloud/memory"
	"mailpilot-cloud/notify"
	"mailpilot-cloud/security"
	"mailpilot-cloud/server"
	"mailpilot-cloud/streams"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MailPilot HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log.Println("Starting MailPilot Cloud Server...")

	ctx := context.Background()
	rdb, err := streams.Init(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Connected to Redis")
	bus := streams.NewBus(rdb)

	var tokens *security.TokenStore
	var google *security.GoogleClient
	clientID := strings.TrimSpace(os.Getenv("GMAIL_CLIENT_ID"))
	clientSecret := strings.TrimSpace(os.Getenv("GMAIL_CLIENT_SECRET"))
	if clientID != "" && clientSecret != "" {
		redirectURL := strings.TrimSpace(os.Getenv("OAUTH_REDIRECT_URL"))
		if redirectURL == "" {
			redirectURL = "http://localhost:8080/auth/google/callback"
		}
		tokens = security.NewTokenStore(rdb, clientID, clientSecret, redirectURL)
		google = security.NewGoogleClient(tokens)
		log.Printf("Initialized Gmail OAuth with client ID: %s", clientID)
	} else {
		log.Println("Gmail OAuth credentials not provided, mailbox access disabled")
	}

	srv := server.New(server.Options{
		Config:     cfg,
		Tokens:     tokens,
		Google:     google,
		Bus:        bus,
		Generator:  generatorFromEnv(),
		Dispatcher: dispatcherFromEnv(),
		Memory:     memory.NewFromEnv(),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	httpSrv := &http.Server{
		Handler:      srv.Router(),
		Addr:         "0.0.0.0:" + port,
		ReadTimeout:  180 * time.Second,
		WriteTimeout: 180 * time.Second,
	}

	log.Printf("MailPilot Cloud Server v%s starting on %s", server.Version, httpSrv.Addr)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	rdb.Close()
	log.Println("Server exited")
	return nil
}

// generatorFromEnv wires the LLM router from whatever providers the
// environment configures. Nil means template-only drafting.
func generatorFromEnv() draft.Generator {
	var primary, secondary llm.Client
	if c := llm.NewChatClientFromEnv(); c != nil {
		primary = c
	}
	if o := llm.NewOllamaFromEnv(); o != nil {
		secondary = o
	}
	if primary == nil && secondary == nil {
		log.Println("No LLM provider configured, drafting from templates only")
		return nil
	}
	return llm.NewRouter(primary, secondary)
}

func dispatcherFromEnv() *notify.Dispatcher {
	var chat notify.Chat
	if s := notify.NewSlackFromEnv(); s != nil {
		chat = s
	}
	var tracker notify.Tracker
	if n := notify.NewNotionFromEnv(); n != nil {
		tracker = n
	}
	if chat == nil && tracker == nil {
		return nil
	}
	return notify.NewDispatcher(chat, tracker)
}
