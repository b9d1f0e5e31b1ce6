package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ReadinessChecker reports whether a dependency the worker needs is
// currently reachable. Used by ReadyzHandler for the store connection.
type ReadinessChecker func(ctx context.Context) error

// Server holds the handlers' dependencies: the readiness probe wired to the
// store connection. Liveness needs no state; /healthz always answers 200.
type Server struct {
	ready ReadinessChecker
}

// New constructs a Server. ready is consulted on every /readyz call; pass a
// func that pings the store.
func New(ready ReadinessChecker) *Server {
	return &Server{ready: ready}
}

// HealthzHandler always returns 200 while the process is alive. It never
// touches the store, so a slow or unreachable Redis never masks the process
// as dead.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyzHandler returns 200 once the store is reachable, 503 otherwise.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if s.ready == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
		if err := s.ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
