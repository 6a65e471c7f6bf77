package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"hubcredo/internal/automation"
	"hubcredo/internal/controller/middleware"
	"hubcredo/internal/store"
	"hubcredo/pkg/api"

	"golang.org/x/sync/errgroup"
)

const (
	defaultLogsLimit = 10
	maxLogsLimit     = 100
	maxTestPayload   = 1 << 20
)

// RunAutomation handles POST /api/automation/start-loop.
// The batch runs to completion before the response is written.
func (h *Handlers) RunAutomation(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.RunAutomationRequest
	if err := decodeOptional(r, &req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cycles := api.DefaultBatchCycles
	if req.Cycles != nil {
		cycles = *req.Cycles
	}

	// A full batch outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	res, err := h.automation.RunBatch(r.Context(), user, cycles, store.AutomationTypeManual)
	if err != nil {
		if errors.Is(err, automation.ErrInvalidCycleCount) {
			h.httpError(w, "Cycles must be between 1 and 20", http.StatusBadRequest)
			return
		}
		h.log(r).Error("automation batch failed", "error", err)
		h.httpError(w, "Failed to run automation", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, api.RunAutomationResponse{
		Message:         fmt.Sprintf("Automation finished (%d cycles)", cycles),
		LogID:           res.LogID.String(),
		Status:          string(res.Status),
		CyclesRequested: res.CyclesRequested,
		CyclesCompleted: res.CyclesCompleted,
		CyclesFailed:    res.CyclesFailed,
	})
}

// ListAutomationLogs handles GET /api/automation/logs?page=&limit=.
func (h *Handlers) ListAutomationLogs(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil || page < 1 {
		h.httpError(w, "page must be a positive integer", http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", defaultLogsLimit)
	if err != nil || limit < 1 {
		h.httpError(w, "limit must be a positive integer", http.StatusBadRequest)
		return
	}
	if limit > maxLogsLimit {
		limit = maxLogsLimit
	}

	var (
		logs  []store.AutomationLog
		total int64
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		logs, err = h.store.ListAutomationLogs(ctx, user.ID, limit, (page-1)*limit)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = h.store.CountAutomationLogs(ctx, store.LogFilter{UserID: user.ID})
		return err
	})
	if err := g.Wait(); err != nil {
		h.log(r).Error("list automation logs failed", "error", err)
		h.httpError(w, "Internal database error", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, api.AutomationLogsResponse{
		Logs: toAPILogs(logs),
		Pagination: api.Pagination{
			Total: total,
			Page:  page,
			Limit: limit,
			Pages: (total + int64(limit) - 1) / int64(limit),
		},
	})
}

// TestWebhook handles POST /api/automation/test-webhook. It stands in for
// the workflow engine during local development and echoes what it got.
func (h *Handlers) TestWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTestPayload))
	if err != nil {
		h.httpError(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	resp := api.TestWebhookResponse{Received: true, Timestamp: time.Now().UTC()}
	if len(body) > 0 {
		if !json.Valid(body) {
			h.httpError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		resp.Payload = body
	}

	h.log(r).Info("test webhook received",
		"event_source", r.Header.Get("X-Hubcredo-Source"),
		"bytes", len(body),
	)
	h.respondJson(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
