package handlers

import (
	"net/http"
	"time"

	"hubcredo/internal/controller/middleware"
	"hubcredo/internal/store"
	"hubcredo/pkg/api"

	"golang.org/x/sync/errgroup"
)

const recentLogsLimit = 5

// Stats handles GET /api/analytics/stats.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	var resp api.StatsResponse
	midnight := startOfDay(time.Now().UTC())

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		resp.TotalUsers, err = h.store.CountUsers(ctx, store.UserFilter{})
		return err
	})
	g.Go(func() (err error) {
		resp.ActiveUsers, err = h.store.CountUsers(ctx, store.UserFilter{Status: store.UserStatusActive})
		return err
	})
	g.Go(func() (err error) {
		resp.TodayRegistrations, err = h.store.CountUsers(ctx, store.UserFilter{CreatedSince: midnight})
		return err
	})
	g.Go(func() (err error) {
		resp.TotalAutomations, err = h.store.CountAutomationLogs(ctx, store.LogFilter{})
		return err
	})
	g.Go(func() (err error) {
		resp.CompletedAutomations, err = h.store.CountAutomationLogs(ctx, store.LogFilter{Status: store.AutomationStatusCompleted})
		return err
	})
	if err := g.Wait(); err != nil {
		h.log(r).Error("stats query failed", "error", err)
		h.httpError(w, "Internal database error", http.StatusInternalServerError)
		return
	}

	resp.ActiveLoops = h.loops.CountRunning()
	h.respondJson(w, http.StatusOK, resp)
}

// UserStats handles GET /api/analytics/user-stats.
func (h *Handlers) UserStats(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var (
		resp   api.UserStatsResponse
		recent []store.AutomationLog
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		resp.TotalAutomations, err = h.store.CountAutomationLogs(ctx, store.LogFilter{UserID: user.ID})
		return err
	})
	g.Go(func() (err error) {
		resp.SuccessfulCycles, resp.FailedCycles, err = h.store.SumCycles(ctx, user.ID)
		return err
	})
	g.Go(func() (err error) {
		recent, err = h.store.ListAutomationLogs(ctx, user.ID, recentLogsLimit, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		h.log(r).Error("user stats query failed", "error", err)
		h.httpError(w, "Internal database error", http.StatusInternalServerError)
		return
	}

	resp.RecentLogs = toAPILogs(recent)
	resp.RecentAutomations = len(resp.RecentLogs)
	h.respondJson(w, http.StatusOK, resp)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
