package engine

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/heliogrid/heliogrid/internal/core/services"
)

// handleEventsSSE streams job lifecycle events to dashboard listeners as
// server-sent events. Subscribes to the broadcast channel; the connection
// closes when the client goes away.
// GET /events
func (s *Server) handleEventsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events, unsub := s.bus.Subscribe(services.BroadcastChannel)
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
