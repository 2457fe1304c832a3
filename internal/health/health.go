// Package health exposes the liveness and readiness endpoints of the
// analysis server.
//
// Liveness (/healthz) answers "is the process up"; readiness (/readyz)
// answers "can it currently serve an analysis request", which depends on
// external conditions like Google credentials resolving. Orchestrators use
// the distinction to restart a dead process without draining one that is
// merely waiting on an upstream.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// probeTimeout bounds each readiness probe so a hung upstream cannot stall
// the whole readiness response.
const probeTimeout = 5 * time.Second

// Checker is one readiness probe. Check returns nil when the named
// dependency can serve traffic.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler serves the liveness and readiness endpoints.
type Handler struct {
	checkers []Checker
}

// New builds a Handler running the given readiness probes. With no probes,
// readiness degenerates to liveness.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: checkers}
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz reports liveness. Reaching this handler at all is the signal, so
// it always answers ok.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz runs every probe and reports per-dependency results. Any failing
// probe makes the whole response a 503 so load balancers stop routing
// analysis requests here.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]string, len(h.checkers))
	ready := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			ready = false
			results[c.Name] = "fail"
			slog.Warn("readiness probe failed", "check", c.Name, "error", err)
			continue
		}
		results[c.Name] = "ok"
	}

	status := http.StatusOK
	body := map[string]any{"status": "ok", "checks": results}
	if !ready {
		status = http.StatusServiceUnavailable
		body["status"] = "fail"
	}
	writeStatus(w, status, body)
}

func writeStatus(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("writing health response", "error", err)
	}
}
