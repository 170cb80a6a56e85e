package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// heartbeatInterval bounds how long an idle SSE connection can go
// without a frame. A session's queue can sit quiet for minutes between
// task completions; without a heartbeat, load balancers and browser
// idle timeouts drop the connection well before the session finishes.
const heartbeatInterval = 15 * time.Second

// SSEEvent is one server-sent event pushed to connected clients. ID is
// a monotonically increasing sequence number set by the hub on
// broadcast, sent as the SSE "id:" field so a reconnecting client's
// Last-Event-ID header tells the caller which events it already saw.
type SSEEvent struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EventStatus builds the periodic worker/queue snapshot event.
func EventStatus(view StatusView) SSEEvent {
	return SSEEvent{Type: "status", Data: view}
}

// EventSessionComplete builds the terminal event for a finished
// session.
func EventSessionComplete(report any) SSEEvent {
	return SSEEvent{Type: "session_complete", Data: report}
}

// EventWarning builds an event for a non-fatal condition worth
// surfacing live, e.g. a dropped worktree lease or a retried request.
func EventWarning(message string) SSEEvent {
	return SSEEvent{Type: "warning", Data: map[string]string{"message": message}}
}

// SSEHub fans a broadcast event out to every connected client channel.
type SSEHub struct {
	clients    map[chan SSEEvent]bool
	broadcast  chan SSEEvent
	register   chan chan SSEEvent
	unregister chan chan SSEEvent
	mu         sync.RWMutex
	seq        int64
}

// NewSSEHub creates an unstarted hub; call Run to begin serving.
func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients:    make(map[chan SSEEvent]bool),
		broadcast:  make(chan SSEEvent),
		register:   make(chan chan SSEEvent),
		unregister: make(chan chan SSEEvent),
	}
}

// Run services register/unregister/broadcast until the process exits.
func (h *SSEHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			event.ID = atomic.AddInt64(&h.seq, 1)
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client <- event:
				default:
					close(client)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends event to every connected client. The event's ID is
// overwritten by the hub, so callers need not set it.
func (h *SSEHub) Broadcast(event SSEEvent) {
	h.broadcast <- event
}

func (s *Server) sseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		client := make(chan SSEEvent)
		s.sseHub.register <- client
		// Send the headers now, so the client's request returns before
		// the first event or heartbeat.
		flusher.Flush()

		done := r.Context().Done()
		go func() {
			<-done
			s.sseHub.unregister <- client
		}()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case event, ok := <-client:
				if !ok {
					return
				}
				data, _ := json.Marshal(event.Data)
				fmt.Fprintf(w, "id: %d\n", event.ID)
				fmt.Fprintf(w, "event: %s\n", event.Type)
				fmt.Fprintf(w, "data: %s\n\n", data)
				flusher.Flush()

			case <-heartbeat.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				flusher.Flush()

			case <-done:
				return
			}
		}
	}
}
