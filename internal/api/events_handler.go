package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/hookgw/internal/events"
)

var keepAliveInterval = 15 * time.Second

// handleEvents streams the live hook feed as server-sent events.
// Last-Event-ID resumes after a known event; ?types=a,b limits the feed.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	wanted := parseTypeFilter(r.URL.Query().Get("types"))
	send := func(ev events.Event) error {
		if len(wanted) > 0 && !wanted[ev.Type] {
			return nil
		}
		return writeSSE(w, ev)
	}

	// Subscribe before replaying so nothing published in between is lost.
	live, cancel := s.deps.Hub.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	lastSent := parseLastEventID(r.Header.Get("Last-Event-ID"))
	for _, ev := range s.deps.Hub.SnapshotSince(lastSent) {
		if err := send(ev); err != nil {
			return
		}
		lastSent = ev.ID
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-live:
			if !ok {
				return
			}
			if ev.ID <= lastSent {
				continue
			}
			if err := send(ev); err != nil {
				return
			}
			lastSent = ev.ID
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func parseLastEventID(v string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseTypeFilter(v string) map[string]bool {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, t := range strings.Split(v, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out[t] = true
		}
	}
	return out
}

// writeSSE writes one frame. Payloads are single-line JSON.
func writeSSE(w io.Writer, ev events.Event) error {
	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, ev.Data)
	return err
}
