package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"hubcredo/internal/controller/middleware"
	"hubcredo/internal/loop"
	"hubcredo/pkg/api"

	"github.com/gorilla/websocket"
)

// StartLoop handles POST /api/loop/start.
// The loop runs in the background; the response only confirms registration.
func (h *Handlers) StartLoop(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.StartLoopRequest
	if err := decodeOptional(r, &req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cycles := api.DefaultLoopCycles
	if req.Cycles != nil {
		cycles = *req.Cycles
	}

	id, err := h.loops.Start(r.Context(), user.ID, cycles)
	switch {
	case errors.Is(err, loop.ErrInvalidCycleCount):
		h.httpError(w, "Cycles must be between 1 and 100", http.StatusBadRequest)
		return
	case errors.Is(err, loop.ErrTooManyLoops):
		h.httpError(w, "Too many active loops, try again later", http.StatusTooManyRequests)
		return
	case errors.Is(err, loop.ErrClosed):
		h.httpError(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	case err != nil:
		h.log(r).Error("start loop failed", "error", err)
		h.httpError(w, "Failed to start loop", http.StatusInternalServerError)
		return
	}

	h.log(r).Info("loop started", "loop_id", id, "cycles", cycles)
	h.respondJson(w, http.StatusAccepted, api.StartLoopResponse{
		LoopID:  id,
		Status:  "started",
		Cycles:  cycles,
		Message: fmt.Sprintf("Loop started with %d cycles", cycles),
	})
}

// StopLoop handles POST /api/loop/stop.
// Unknown loops, loops owned by someone else and loops that already ended
// are all reported as 404.
func (h *Handlers) StopLoop(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.StopLoopRequest
	if err := decodeOptional(r, &req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.LoopID == "" {
		h.httpError(w, "loopId is required", http.StatusBadRequest)
		return
	}

	rec, err := h.loops.Get(req.LoopID)
	if err != nil || rec.UserID != user.ID {
		h.httpError(w, "Loop not found or not running", http.StatusNotFound)
		return
	}
	if !h.loops.Stop(req.LoopID) {
		h.httpError(w, "Loop not found or not running", http.StatusNotFound)
		return
	}

	h.log(r).Info("loop stopped", "loop_id", req.LoopID)
	h.respondJson(w, http.StatusOK, api.StopLoopResponse{
		LoopID:  req.LoopID,
		Message: "Loop stopped successfully",
	})
}

// LoopStatus handles GET /api/loop/status/{loopId}.
func (h *Handlers) LoopStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rec, err := h.loops.Get(r.PathValue("loopId"))
	if err != nil || rec.UserID != user.ID {
		h.httpError(w, "Loop not found", http.StatusNotFound)
		return
	}
	h.respondJson(w, http.StatusOK, toAPILoop(rec))
}

// ListLoops handles GET /api/loop/all.
func (h *Handlers) ListLoops(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	h.respondJson(w, http.StatusOK, toAPILoops(h.loops.ListByUser(user.ID)))
}

// ListActiveLoops handles GET /api/loop/active.
func (h *Handlers) ListActiveLoops(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	h.respondJson(w, http.StatusOK, toAPILoops(running(h.loops.ListByUser(user.ID))))
}

// AdminListLoops handles GET /api/admin/loops across every user.
func (h *Handlers) AdminListLoops(w http.ResponseWriter, r *http.Request) {
	recs := h.loops.List()
	if r.URL.Query().Get("status") == string(loop.StatusRunning) {
		recs = running(recs)
	}
	h.respondJson(w, http.StatusOK, toAPILoops(recs))
}

// StreamLoops handles GET /api/loop/stream. After the websocket upgrade it
// pushes the caller's loops every streamInterval until the client goes away.
func (h *Handlers) StreamLoops(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.log(r).Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Drain client frames so close and pong control messages are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	for {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(toAPILoops(h.loops.ListByUser(user.ID))); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log(r).Debug("loop stream write failed", "error", err)
			}
			return
		}
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			return
		}

		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

const (
	writeWait = 5 * time.Second
	pongWait  = 60 * time.Second
)

func running(recs []loop.Record) []loop.Record {
	out := recs[:0:0]
	for _, rec := range recs {
		if rec.Status == loop.StatusRunning {
			out = append(out, rec)
		}
	}
	return out
}
