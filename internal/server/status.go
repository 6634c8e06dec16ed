package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eugener/golem/thread"
)

// Probe bodies are pre-allocated; the header value slice spares the
// []string{v} alloc from Header.Set.
var (
	okBody       = []byte("ok")
	notReadyBody = []byte("not ready")
	plainCT      = []string{"text/plain"}
)

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeProbe(w, http.StatusOK, okBody)
}

// handleReadyz reports ready only while the readiness check passes and
// no hosted worker has crashed.
func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.ready(r.Context()); err != nil {
		writeProbe(w, http.StatusServiceUnavailable, notReadyBody)
		return
	}
	writeProbe(w, http.StatusOK, okBody)
}

func (s *server) ready(ctx context.Context) error {
	if s.deps.ReadyCheck != nil {
		if err := s.deps.ReadyCheck(ctx); err != nil {
			return err
		}
	}
	for _, ws := range s.workers() {
		if ws.State == thread.StatePanicked.String() {
			return fmt.Errorf("worker %s panicked", ws.Name)
		}
	}
	return nil
}

// handleWorkers returns every hosted worker's state and queue depth.
func (s *server) handleWorkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.workers())
}

func (s *server) workers() []WorkerStatus {
	if s.deps.Workers == nil {
		return []WorkerStatus{}
	}
	return s.deps.Workers()
}

func writeProbe(w http.ResponseWriter, status int, body []byte) {
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(status)
	w.Write(body)
}
