// Package server exposes the triage agent over HTTP: a run endpoint, Google
// OAuth for the mailbox, and live feed tails over SSE and websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"mailpilot-cloud/agent"
	"mailpilot-cloud/config"
	"mailpilot-cloud/draft"
	"mailpilot-cloud/mailbox"
	"mailpilot-cloud/memory"
	"mailpilot-cloud/notify"
	"mailpilot-cloud/security"
	"mailpilot-cloud/streams"
	"mailpilot-cloud/triage"
)

const Version = "0.1.0"

// Options collects the server's collaborators. Tokens and Google may be nil
// when OAuth is not configured; Bus may be nil when the feed is disabled.
type Options struct {
	Config     *config.Config
	Tokens     *security.TokenStore
	Google     *security.GoogleClient
	Bus        *streams.Bus
	Generator  draft.Generator
	Dispatcher *notify.Dispatcher
	Memory     *memory.VectorMemory
}

type Server struct {
	cfg        *config.Config
	tokens     *security.TokenStore
	google     *security.GoogleClient
	bus        *streams.Bus
	gen        draft.Generator
	dispatcher *notify.Dispatcher
	mem        *memory.VectorMemory

	// MailboxFor resolves the mailbox capability for a user. Tests
	// override it; the default builds a Gmail mailbox from the stored
	// OAuth token.
	MailboxFor func(ctx context.Context, userID string) (mailbox.Capability, error)
}

func New(opts Options) *Server {
	s := &Server{
		cfg:        opts.Config,
		tokens:     opts.Tokens,
		google:     opts.Google,
		bus:        opts.Bus,
		gen:        opts.Generator,
		dispatcher: opts.Dispatcher,
		mem:        opts.Memory,
	}
	s.MailboxFor = s.gmailMailbox
	return s
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/", s.handleRoot).Methods("GET")
	r.HandleFunc("/run", s.handleRun).Methods("POST")
	registerAuthRoutes(r, s.tokens)
	registerEventRoutes(r, s.bus)
	return r
}

func (s *Server) gmailMailbox(ctx context.Context, userID string) (mailbox.Capability, error) {
	if s.google == nil {
		return nil, errors.New("server: Google OAuth not configured")
	}
	svc, err := s.google.GmailService(ctx, userID)
	if err != nil {
		return nil, err
	}
	return mailbox.NewGmailMailbox(svc, security.GrantedScopes(security.GmailScopes)), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"version": Version,
		"service": "mailpilot-cloud",
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "MailPilot Cloud API Server",
		"version": Version,
	})
}

type runRequest struct {
	UserID        string `json:"user_id"`
	Command       string `json:"command"`
	Query         string `json:"query,omitempty"`
	MaxResults    int    `json:"max_results,omitempty"`
	TimeRangeDays int    `json:"time_range_days,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		req.UserID = "default"
	}

	box, err := s.MailboxFor(r.Context(), req.UserID)
	if err != nil {
		log.Printf("server: no mailbox for user %s: %v", req.UserID, err)
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "mailbox not available; authorize via /auth/google first",
		})
		return
	}

	runCfg := s.cfg
	if runCfg.OwnDomain == "" {
		// Own domain was not configured; derive it from the mailbox
		// profile on a per-request copy.
		clone := *s.cfg
		if addr, err := box.Profile(r.Context()); err == nil {
			clone.DiscoverOwnDomain(addr)
		} else {
			log.Printf("server: own-domain discovery failed for user %s: %v", req.UserID, err)
		}
		runCfg = &clone
	}

	ag := agent.New(agent.Options{
		Config:     runCfg,
		Mailbox:    box,
		Generator:  s.gen,
		Dispatcher: s.dispatcher,
		Bus:        s.bus,
		Memory:     s.mem,
		UserID:     req.UserID,
	})

	resp, err := ag.Run(r.Context(), req.Command, triage.UserScope{
		Query:         req.Query,
		MaxResults:    req.MaxResults,
		TimeRangeDays: req.TimeRangeDays,
	})
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, mailbox.ErrScopeMissing) {
			status = http.StatusForbidden
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}
