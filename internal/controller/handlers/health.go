package handlers

import (
	"context"
	"net/http"
	"time"

	"hubcredo/pkg/api"
)

const (
	serviceName = "hubcredo-loop-automation"

	// readyTimeout bounds the store ping.
	readyTimeout = 2 * time.Second
)

// Healthz reports that the process is up. It never touches the store.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	h.respondJson(w, http.StatusOK, h.health("online", ""))
}

// Readyz reports whether requests can be served, which needs the store.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log(r).Warn("readiness check failed", "error", err)
		h.respondJson(w, http.StatusServiceUnavailable, h.health("unavailable", "disconnected"))
		return
	}
	h.respondJson(w, http.StatusOK, h.health("ready", "connected"))
}

func (h *Handlers) health(status, store string) api.HealthResponse {
	return api.HealthResponse{
		Status:      status,
		Service:     serviceName,
		Store:       store,
		ActiveLoops: h.loops.CountRunning(),
		Timestamp:   time.Now().UTC(),
	}
}
