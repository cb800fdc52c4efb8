package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// streamInterval is how often the job list is checked for changes.
var streamInterval = time.Second

// handleJobStream pushes the job list as server-sent events whenever it
// changes, with a comment line as keep-alive in between.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var last []byte
	send := func() bool {
		payload, err := json.Marshal(s.queue.List())
		if err != nil {
			return false
		}
		if bytes.Equal(payload, last) {
			_, err = fmt.Fprint(w, ": keep-alive\n\n")
		} else {
			_, err = fmt.Fprintf(w, "event: jobs\ndata: %s\n\n", payload)
			last = payload
		}
		if err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
