package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dieharders/ai-text-server-sub000/pkg/inference"
)

// sseSink writes events as server-sent events. Headers are committed on
// the first event so a request that fails before producing a token can
// still answer with a JSON envelope.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// newSSESink returns nil when w cannot flush, which makes the
// orchestrator buffer instead.
func newSSESink(w http.ResponseWriter) inference.EventSink {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil
	}
	return &sseSink{w: w, flusher: flusher}
}

func (s *sseSink) Send(ev inference.StreamEvent) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
