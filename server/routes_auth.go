package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"mailpilot-cloud/security"
)

type authHandler struct {
	tokens *security.TokenStore
}

func registerAuthRoutes(r *mux.Router, tokens *security.TokenStore) {
	h := &authHandler{tokens: tokens}
	r.HandleFunc("/auth/google", h.handleStart).Methods("GET")
	r.HandleFunc("/auth/google/callback", h.handleCallback).Methods("GET")
	r.HandleFunc("/auth/status", h.handleStatus).Methods("GET")
	r.HandleFunc("/auth/token", h.handleRevoke).Methods("DELETE")
}

func userIDParam(r *http.Request) string {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = "default"
	}
	return userID
}

func (h *authHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		http.Error(w, "OAuth not configured", http.StatusServiceUnavailable)
		return
	}
	userID := userIDParam(r)

	url, state, err := h.tokens.AuthURL(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"auth_url": url,
		"state":    state,
		"user_id":  userID,
	})
}

func (h *authHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		http.Error(w, "OAuth not configured", http.StatusServiceUnavailable)
		return
	}
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		http.Error(w, "code and state are required", http.StatusBadRequest)
		return
	}

	userID, err := h.tokens.Exchange(r.Context(), code, state)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"user_id": userID,
		"message": "Gmail authorized; POST /run to triage the inbox",
	})
}

func (h *authHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		http.Error(w, "OAuth not configured", http.StatusServiceUnavailable)
		return
	}
	userID := userIDParam(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":       userID,
		"authenticated": h.tokens.HasToken(r.Context(), userID),
	})
}

func (h *authHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		http.Error(w, "OAuth not configured", http.StatusServiceUnavailable)
		return
	}
	userID := userIDParam(r)
	if err := h.tokens.Delete(r.Context(), userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user_id": userID})
}
