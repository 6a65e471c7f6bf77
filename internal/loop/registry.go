// Package loop keeps the in-memory registry of background automation loops.
//
// Each loop is driven by its own goroutine which runs cycles one at a time,
// waits between them and stops early when its owner asks. Loop state lives
// only in process memory and is lost on restart; the automation log written
// alongside each loop is what survives.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"hubcredo/internal/logger"
	"hubcredo/internal/store"
	"hubcredo/internal/webhook"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// MaxCycles bounds the cycle count of a single loop.
	MaxCycles = 100

	// DefaultCycleDelay separates consecutive cycles of a loop.
	DefaultCycleDelay = 2 * time.Second
)

var (
	// ErrInvalidCycleCount is returned when a loop is started with a cycle
	// count outside 1..MaxCycles.
	ErrInvalidCycleCount = errors.New("cycles must be between 1 and 100")

	// ErrLoopNotFound is returned for unknown loop IDs.
	ErrLoopNotFound = errors.New("loop not found")

	// ErrTooManyLoops is returned when MaxActive loops are already running.
	ErrTooManyLoops = errors.New("too many active loops")

	// ErrClosed is returned by Start after Shutdown.
	ErrClosed = errors.New("loop registry is shut down")
)

// CycleRunner runs one automation cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context, user *store.User, number, total int) store.CycleOutcome
}

// Dispatcher sends webhook events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev webhook.Event, opts webhook.Options) webhook.Result
}

// Store is the persistence a loop reads users from and writes its log to.
type Store interface {
	store.UserStore
	store.AutomationLogStore
}

// Config configures a Registry.
type Config struct {
	// CycleDelay is the pause between cycles. Negative means DefaultCycleDelay.
	CycleDelay time.Duration
	// MaxActive caps concurrently running loops; 0 means unlimited.
	MaxActive int
}

// Registry owns every loop started in this process.
type Registry struct {
	runner     CycleRunner
	store      Store
	dispatcher Dispatcher
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.RWMutex
	loops map[string]*entry

	// ctx is the parent of every driving goroutine; cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started metric.Int64Counter
	cycles  metric.Int64Counter
}

// New creates a Registry.
func New(runner CycleRunner, st Store, dispatcher Dispatcher, cfg Config, log *slog.Logger) *Registry {
	if cfg.CycleDelay < 0 {
		cfg.CycleDelay = DefaultCycleDelay
	}
	if cfg.MaxActive < 0 {
		cfg.MaxActive = 0
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		runner:     runner,
		store:      st,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     log.With("component", "loop"),
		now:        func() time.Time { return time.Now().UTC() },
		loops:      make(map[string]*entry),
		ctx:        ctx,
		cancel:     cancel,
	}
	r.initMetrics()
	return r
}

func (r *Registry) initMetrics() {
	meter := otel.Meter("hubcredo/loop")

	var err error
	if r.started, err = meter.Int64Counter("hubcredo.loops.started",
		metric.WithDescription("Loops started"),
	); err != nil {
		r.logger.Warn("failed to create loops started counter", "error", err)
	}
	if r.cycles, err = meter.Int64Counter("hubcredo.loop.cycles",
		metric.WithDescription("Loop cycles run, by status"),
	); err != nil {
		r.logger.Warn("failed to create loop cycles counter", "error", err)
	}

	// Observed only when scraped.
	if _, err = meter.Int64ObservableGauge("hubcredo.loops.running",
		metric.WithDescription("Loops currently running"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(r.CountRunning()))
			return nil
		}),
	); err != nil {
		r.logger.Warn("failed to register running loops gauge", "error", err)
	}
}

// Start registers a new loop for userID and launches its driving goroutine.
// It returns as soon as the loop is registered; no cycle has run yet.
func (r *Registry) Start(ctx context.Context, userID uuid.UUID, totalCycles int) (string, error) {
	if totalCycles < 1 || totalCycles > MaxCycles {
		return "", ErrInvalidCycleCount
	}

	r.mu.Lock()
	if r.ctx.Err() != nil {
		r.mu.Unlock()
		return "", ErrClosed
	}
	if r.cfg.MaxActive > 0 && r.countRunningLocked() >= r.cfg.MaxActive {
		r.mu.Unlock()
		return "", ErrTooManyLoops
	}

	now := r.now()
	id := r.allocateIDLocked(userID, now)
	e := newEntry(Record{
		ID:          id,
		UserID:      userID,
		TotalCycles: totalCycles,
		Status:      StatusRunning,
		StartedAt:   now,
		Cycles:      []store.CycleOutcome{},
	})
	r.loops[id] = e
	r.wg.Add(1)
	r.mu.Unlock()

	go r.drive(e, userID, totalCycles)

	if r.started != nil {
		r.started.Add(ctx, 1)
	}
	logger.FromContext(ctx, r.logger).Info("loop started", "loop_id", id, "user_id", userID, "cycles", totalCycles)
	return id, nil
}

// allocateIDLocked builds loop_<userId>_<millis>, bumping the millisecond
// part while it collides with an existing loop.
func (r *Registry) allocateIDLocked(userID uuid.UUID, at time.Time) string {
	ms := at.UnixMilli()
	for {
		id := fmt.Sprintf("loop_%s_%d", userID, ms)
		if _, taken := r.loops[id]; !taken {
			return id
		}
		ms++
	}
}

// Get returns a snapshot of the loop with the given ID.
func (r *Registry) Get(id string) (Record, error) {
	r.mu.RLock()
	e, ok := r.loops[id]
	r.mu.RUnlock()

	if !ok {
		return Record{}, ErrLoopNotFound
	}
	return e.snapshot(), nil
}

// List returns snapshots of every loop, oldest first.
func (r *Registry) List() []Record {
	return r.collect(func(*entry) bool { return true })
}

// ListByUser returns snapshots of userID's loops, oldest first.
func (r *Registry) ListByUser(userID uuid.UUID) []Record {
	return r.collect(func(e *entry) bool { return e.userID == userID })
}

func (r *Registry) collect(match func(*entry) bool) []Record {
	r.mu.RLock()
	matched := make([]*entry, 0, len(r.loops))
	for _, e := range r.loops {
		if match(e) {
			matched = append(matched, e)
		}
	}
	r.mu.RUnlock()

	out := make([]Record, 0, len(matched))
	for _, e := range matched {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CountRunning returns the number of loops still running.
func (r *Registry) CountRunning() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countRunningLocked()
}

func (r *Registry) countRunningLocked() int {
	n := 0
	for _, e := range r.loops {
		if e.status() == StatusRunning {
			n++
		}
	}
	return n
}

// Stop asks a running loop to stop. The loop is marked stopped at once and
// its goroutine exits at the next cycle boundary; a cycle already in
// progress is not interrupted. Stop reports false if the loop is unknown or
// no longer running.
func (r *Registry) Stop(id string) bool {
	r.mu.RLock()
	e, ok := r.loops[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	if !e.transition(StatusStopped, r.now(), "") {
		return false
	}
	e.signalStop()

	r.logger.Info("loop stop requested", "loop_id", id)
	return true
}

// Shutdown stops every running loop and waits for their goroutines until
// ctx expires. Start fails with ErrClosed afterwards.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.cancel()
	ids := make([]string, 0, len(r.loops))
	for id := range r.loops {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Stop(id)
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for loops: %w", ctx.Err())
	}
}

// drive runs the loop's cycles. A panic anywhere below is recovered here and
// only affects this loop.
func (r *Registry) drive(e *entry, userID uuid.UUID, total int) {
	defer r.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			r.fail(e, fmt.Sprintf("loop panicked: %v", p))
		}
	}()

	ctx := r.ctx
	log := r.logger.With("loop_id", e.id, "user_id", userID)

	user, err := r.store.GetUserByID(ctx, userID)
	if err != nil {
		r.fail(e, fmt.Sprintf("resolve user: %v", err))
		return
	}
	e.update(func(rec *Record) { rec.UserEmail = user.Email })

	logID := r.createLog(ctx, e, user, total, log)

	for n := 1; n <= total; n++ {
		if e.status() != StatusRunning {
			break
		}

		outcome := r.runner.RunCycle(ctx, user, n, total)

		e.update(func(rec *Record) {
			rec.Cycles = append(rec.Cycles, outcome)
			if outcome.Status == store.CycleStatusCompleted {
				rec.CompletedCycles++
			} else {
				rec.FailedCycles++
			}
			rec.CurrentCycle = n
		})
		if r.cycles != nil {
			r.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(outcome.Status))))
		}

		if logID != uuid.Nil {
			if err := r.store.AppendCycle(context.WithoutCancel(ctx), logID, outcome); err != nil {
				log.Error("failed to append loop cycle", "cycle", n, "error", err)
			}
		}

		// Loops count every successful cycle towards the user's total.
		if outcome.Status == store.CycleStatusCompleted {
			if err := r.store.RecordAutomation(context.WithoutCancel(ctx), user.ID, r.now()); err != nil {
				log.Error("failed to update user stats", "cycle", n, "error", err)
			}
		}

		if n < total && !r.wait(e) {
			break
		}
	}

	e.transition(StatusCompleted, r.now(), "")
	r.finish(e, user, log)
}

// createLog writes the automation log backing the loop. A store failure
// is logged and the loop carries on without a log.
func (r *Registry) createLog(ctx context.Context, e *entry, user *store.User, total int, log *slog.Logger) uuid.UUID {
	now := r.now()
	al := &store.AutomationLog{
		ID:             uuid.New(),
		UserID:         user.ID,
		UserEmail:      user.Email,
		TotalCycles:    total,
		Status:         store.AutomationStatusRunning,
		AutomationType: store.AutomationTypeInfinite,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.store.CreateAutomationLog(context.WithoutCancel(ctx), al); err != nil {
		log.Error("failed to create loop automation log", "error", err)
		return uuid.Nil
	}
	e.update(func(rec *Record) { rec.LogID = al.ID })
	return al.ID
}

// wait sleeps for the cycle delay. It returns false if the loop was stopped
// or the registry shut down in the meantime.
func (r *Registry) wait(e *entry) bool {
	if r.cfg.CycleDelay <= 0 {
		select {
		case <-e.stop:
			return false
		case <-r.ctx.Done():
			return false
		default:
			return true
		}
	}

	t := time.NewTimer(r.cfg.CycleDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-e.stop:
		return false
	case <-r.ctx.Done():
		return false
	}
}

// finish records the terminal state of a loop that exited normally.
func (r *Registry) finish(e *entry, user *store.User, log *slog.Logger) {
	rec := e.snapshot()
	ctx := context.WithoutCancel(r.ctx)

	r.finishLog(ctx, rec, log)

	event := webhook.EventLoopCompleted
	if rec.Status == StatusStopped {
		event = webhook.EventLoopStopped
	}
	r.dispatcher.Dispatch(ctx,
		webhook.NewEvent(event, webhook.User{ID: user.ID.String(), Email: user.Email, Name: user.Name}).
			WithMetadata("loop", map[string]any{
				"id":               rec.ID,
				"status":           rec.Status,
				"total_cycles":     rec.TotalCycles,
				"attempted_cycles": len(rec.Cycles),
				"completed_cycles": rec.CompletedCycles,
				"failed_cycles":    rec.FailedCycles,
			}),
		webhook.Options{FireAndForget: true},
	)

	log.Info("loop finished", "status", rec.Status,
		"completed", rec.CompletedCycles, "failed", rec.FailedCycles, "total", rec.TotalCycles)
}

// fail marks a loop failed after an unexpected error in its goroutine.
// A loop already stopped by its owner keeps that status.
func (r *Registry) fail(e *entry, msg string) {
	if !e.transition(StatusFailed, r.now(), msg) {
		e.update(func(rec *Record) { rec.Error = msg })
	}

	rec := e.snapshot()
	log := r.logger.With("loop_id", e.id, "user_id", e.userID)
	log.Error("loop failed", "error", msg)

	r.finishLog(context.WithoutCancel(r.ctx), rec, log)
}

func (r *Registry) finishLog(ctx context.Context, rec Record, log *slog.Logger) {
	if rec.LogID == uuid.Nil {
		return
	}

	status := store.AutomationStatusCompleted
	switch rec.Status {
	case StatusStopped:
		status = store.AutomationStatusStopped
	case StatusFailed:
		status = store.AutomationStatusFailed
	}
	if err := r.store.FinishAutomationLog(ctx, rec.LogID, status); err != nil {
		log.Error("failed to finish loop automation log", "error", err)
	}
}
