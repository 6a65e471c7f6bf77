package handlers

import (
	"hubcredo/internal/loop"
	"hubcredo/internal/store"
	"hubcredo/pkg/api"

	"github.com/google/uuid"
)

func toAPIUser(u *store.User) api.User {
	return api.User{
		ID:              u.ID.String(),
		Name:            u.Name,
		Email:           u.Email,
		Status:          string(u.Status),
		AutomationCount: u.AutomationCount,
		LastAutomation:  u.LastAutomation,
		CreatedAt:       u.CreatedAt,
	}
}

func toAPICycles(in []store.CycleOutcome) []api.Cycle {
	out := make([]api.Cycle, 0, len(in))
	for _, c := range in {
		steps := make([]api.Step, 0, len(c.Steps))
		for _, s := range c.Steps {
			steps = append(steps, api.Step{
				Type:      string(s.Type),
				Step:      s.Step,
				Status:    string(s.Status),
				Timestamp: s.Timestamp,
				Data:      s.Data,
			})
		}
		out = append(out, api.Cycle{
			CycleNumber: c.CycleNumber,
			Status:      string(c.Status),
			Steps:       steps,
			Error:       c.Error,
			StartedAt:   c.StartedAt,
			CompletedAt: c.CompletedAt,
			DurationMs:  c.DurationMs,
		})
	}
	return out
}

func toAPILoop(rec loop.Record) api.Loop {
	l := api.Loop{
		LoopID:          rec.ID,
		UserID:          rec.UserID.String(),
		UserEmail:       rec.UserEmail,
		TotalCycles:     rec.TotalCycles,
		CurrentCycle:    rec.CurrentCycle,
		Status:          string(rec.Status),
		StartTime:       rec.StartedAt,
		EndTime:         rec.EndedAt,
		CyclesCompleted: rec.CompletedCycles,
		CyclesFailed:    rec.FailedCycles,
		Error:           rec.Error,
		Cycles:          toAPICycles(rec.Cycles),
	}
	if rec.LogID != uuid.Nil {
		l.LogID = rec.LogID.String()
	}
	return l
}

func toAPILoops(recs []loop.Record) api.LoopListResponse {
	loops := make([]api.Loop, 0, len(recs))
	for _, rec := range recs {
		loops = append(loops, toAPILoop(rec))
	}
	return api.LoopListResponse{Loops: loops, Count: len(loops)}
}

func toAPILog(l store.AutomationLog) api.AutomationLog {
	return api.AutomationLog{
		ID:              l.ID.String(),
		UserID:          l.UserID.String(),
		UserEmail:       l.UserEmail,
		TotalCycles:     l.TotalCycles,
		CyclesCompleted: l.CyclesCompleted,
		CyclesFailed:    l.CyclesFailed,
		Status:          string(l.Status),
		AutomationType:  string(l.AutomationType),
		Cycles:          toAPICycles(l.Cycles),
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

func toAPILogs(in []store.AutomationLog) []api.AutomationLog {
	out := make([]api.AutomationLog, 0, len(in))
	for _, l := range in {
		out = append(out, toAPILog(l))
	}
	return out
}
