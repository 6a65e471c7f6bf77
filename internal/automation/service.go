package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"hubcredo/internal/store"
	"hubcredo/internal/webhook"

	"github.com/google/uuid"
)

const (
	// MaxBatchCycles bounds a synchronous batch; the HTTP caller waits for it.
	MaxBatchCycles = 20

	// RegistrationCycles is the size of the batch started for new users.
	RegistrationCycles = 3

	// DefaultCycleDelay separates consecutive cycles.
	DefaultCycleDelay = 2 * time.Second
)

// ErrInvalidCycleCount is returned when a batch size is outside 1..MaxBatchCycles.
var ErrInvalidCycleCount = errors.New("cycles must be between 1 and 20")

// CycleRunner runs one automation cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context, user *store.User, number, total int) store.CycleOutcome
}

// Store is the persistence the service writes to.
type Store interface {
	store.UserStore
	store.AutomationLogStore
}

// BatchResult summarizes a finished batch.
type BatchResult struct {
	LogID           uuid.UUID              `json:"logId"`
	Status          store.AutomationStatus `json:"status"`
	CyclesRequested int                    `json:"cyclesRequested"`
	CyclesCompleted int                    `json:"cyclesCompleted"`
	CyclesFailed    int                    `json:"cyclesFailed"`
}

// Service runs batches of cycles and records them as automation logs.
type Service struct {
	runner     CycleRunner
	dispatcher Dispatcher
	store      Store
	cycleDelay time.Duration
	logger     *slog.Logger
	now        func() time.Time

	// ctx bounds background registration batches; cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a Service. A negative cycleDelay means DefaultCycleDelay.
func NewService(runner CycleRunner, dispatcher Dispatcher, st Store, cycleDelay time.Duration, logger *slog.Logger) *Service {
	if cycleDelay < 0 {
		cycleDelay = DefaultCycleDelay
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		runner:     runner,
		dispatcher: dispatcher,
		store:      st,
		cycleDelay: cycleDelay,
		logger:     logger.With("component", "automation"),
		now:        func() time.Time { return time.Now().UTC() },
		ctx:        ctx,
		cancel:     cancel,
	}
}

// RunBatch runs cycles sequentially for user and blocks until they finish.
// Cycle failures are recorded, not returned; an error means the batch could
// not start or ctx ended before the first cycle.
func (s *Service) RunBatch(ctx context.Context, user *store.User, cycles int, kind store.AutomationType) (BatchResult, error) {
	if cycles < 1 || cycles > MaxBatchCycles {
		return BatchResult{}, ErrInvalidCycleCount
	}

	started := s.now()
	log := &store.AutomationLog{
		ID:             uuid.New(),
		UserID:         user.ID,
		UserEmail:      user.Email,
		TotalCycles:    cycles,
		Status:         store.AutomationStatusRunning,
		AutomationType: kind,
		CreatedAt:      started,
		UpdatedAt:      started,
	}
	if err := s.store.CreateAutomationLog(ctx, log); err != nil {
		return BatchResult{}, fmt.Errorf("create automation log: %w", err)
	}

	s.logger.Info("batch started", "user_id", user.ID, "log_id", log.ID, "cycles", cycles, "type", kind)

	result := BatchResult{LogID: log.ID, CyclesRequested: cycles}
	for i := 1; i <= cycles; i++ {
		outcome := s.runner.RunCycle(ctx, user, i, cycles)
		if outcome.Status == store.CycleStatusCompleted {
			result.CyclesCompleted++
		} else {
			result.CyclesFailed++
		}

		if err := s.store.AppendCycle(context.WithoutCancel(ctx), log.ID, outcome); err != nil {
			s.logger.Error("failed to append cycle", "log_id", log.ID, "cycle", i, "error", err)
		}

		if i < cycles && !sleep(ctx, s.cycleDelay) {
			s.logger.Warn("batch interrupted", "log_id", log.ID, "after_cycle", i, "error", ctx.Err())
			break
		}
	}

	// Finish on a context that survives a caller that has gone away.
	finishCtx := context.WithoutCancel(ctx)

	result.Status = store.AutomationStatusFailed
	if result.CyclesCompleted > 0 {
		result.Status = store.AutomationStatusCompleted
	}
	if err := s.store.FinishAutomationLog(finishCtx, log.ID, result.Status); err != nil {
		s.logger.Error("failed to finish automation log", "log_id", log.ID, "error", err)
	}
	if err := s.store.RecordAutomation(finishCtx, user.ID, s.now()); err != nil {
		s.logger.Error("failed to update user stats", "user_id", user.ID, "error", err)
	}

	attempted := result.CyclesCompleted + result.CyclesFailed
	s.dispatcher.Dispatch(finishCtx,
		webhook.NewEvent(webhook.EventAutomationCompleted, webhookUser(user)).
			WithMetadata("automation", map[string]any{
				"type":             kind,
				"total_cycles":     cycles,
				"completed_cycles": result.CyclesCompleted,
				"failed_cycles":    result.CyclesFailed,
				"duration_seconds": s.now().Sub(started).Seconds(),
				"success_rate":     successRate(result.CyclesCompleted, attempted),
			}),
		webhook.Options{FireAndForget: true},
	)

	s.logger.Info("batch finished", "user_id", user.ID, "log_id", log.ID,
		"completed", result.CyclesCompleted, "failed", result.CyclesFailed, "status", result.Status)

	return result, nil
}

// StartRegistration announces a new user and runs the registration batch
// in the background. It returns immediately.
func (s *Service) StartRegistration(user *store.User) {
	s.dispatcher.Dispatch(s.ctx,
		webhook.NewEvent(webhook.EventUserRegistered, webhookUser(user)).
			WithMetadata("createdAt", user.CreatedAt).
			WithMetadata("automation", map[string]any{
				"type":     store.AutomationTypeRegistration,
				"cycles":   RegistrationCycles,
				"platform": "Hubcredo AI",
			}),
		webhook.Options{FireAndForget: true},
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("registration batch panicked", "user_id", user.ID, "panic", r)
			}
		}()

		if _, err := s.RunBatch(s.ctx, user, RegistrationCycles, store.AutomationTypeRegistration); err != nil {
			s.logger.Error("registration batch failed", "user_id", user.ID, "error", err)
		}
	}()
}

// Wait blocks until background batches have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown interrupts background batches between cycles and waits for them
// until ctx expires.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleep waits for d and reports whether it ran to completion.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func successRate(completed, attempted int) float64 {
	if attempted == 0 {
		return 0
	}
	return float64(completed) / float64(attempted) * 100
}
