package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"mailpilot-cloud/streams"
)

type eventsHandler struct {
	bus *streams.Bus
}

func registerEventRoutes(r *mux.Router, bus *streams.Bus) {
	h := &eventsHandler{bus: bus}
	r.HandleFunc("/events/stream", h.handleSSE).Methods("GET")
	r.HandleFunc("/events/ws", h.handleWebSocket).Methods("GET")
}

// handleSSE tails the user's triage feed as server-sent events. The optional
// kind query parameter filters by event kind; after resumes from a stream id.
func (h *eventsHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		http.Error(w, "event feed unavailable", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	userID := userIDParam(r)
	lastID := strings.TrimSpace(r.URL.Query().Get("after"))
	kindFilter := strings.TrimSpace(r.URL.Query().Get("kind"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
			continue
		default:
		}

		events, nextID, err := h.bus.Tail(ctx, userID, lastID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("server: feed tail for %s: %v", userID, err)
			time.Sleep(300 * time.Millisecond)
			continue
		}
		if len(events) == 0 {
			continue
		}

		lastID = nextID
		for _, evt := range events {
			if kindFilter != "" && evt.Kind != kindFilter {
				continue
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				log.Printf("server: encode feed event: %v", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\n", evt.ID)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		// Output-only surface, no state mutations over this socket.
		return true
	},
}

func (h *eventsHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		http.Error(w, "event feed unavailable", http.StatusServiceUnavailable)
		return
	}

	userID := userIDParam(r)
	lastID := strings.TrimSpace(r.URL.Query().Get("after"))
	kindFilter := strings.TrimSpace(r.URL.Query().Get("kind"))

	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		events, nextID, err := h.bus.Tail(ctx, userID, lastID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			time.Sleep(300 * time.Millisecond)
			continue
		}
		if len(events) == 0 {
			continue
		}

		lastID = nextID
		for _, evt := range events {
			if kindFilter != "" && evt.Kind != kindFilter {
				continue
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}
}
