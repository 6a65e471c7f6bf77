package loop

import (
	"sync"
	"time"

	"hubcredo/internal/store"

	"github.com/google/uuid"
)

// Status is the lifetime state of a loop.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s != StatusRunning
}

// Record is a point-in-time copy of a loop's state.
type Record struct {
	ID              string               `json:"loopId"`
	UserID          uuid.UUID            `json:"userId"`
	UserEmail       string               `json:"userEmail,omitempty"`
	TotalCycles     int                  `json:"totalCycles"`
	CurrentCycle    int                  `json:"currentCycle"`
	Status          Status               `json:"status"`
	StartedAt       time.Time            `json:"startTime"`
	EndedAt         *time.Time           `json:"endTime,omitempty"`
	Cycles          []store.CycleOutcome `json:"cycles"`
	CompletedCycles int                  `json:"cyclesCompleted"`
	FailedCycles    int                  `json:"cyclesFailed"`
	Error           string               `json:"error,omitempty"`
	LogID           uuid.UUID            `json:"logId,omitempty"`
}

// entry is the registry's live view of one loop. Only the loop's driving
// goroutine writes rec, except for the running->stopped flip done by Stop.
type entry struct {
	// Fixed at creation; readable without mu.
	id     string
	userID uuid.UUID

	mu  sync.RWMutex
	rec Record

	stop     chan struct{}
	stopOnce sync.Once
}

func newEntry(rec Record) *entry {
	return &entry{id: rec.ID, userID: rec.UserID, rec: rec, stop: make(chan struct{})}
}

// snapshot returns a copy that shares nothing mutable with the entry.
func (e *entry) snapshot() Record {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rec := e.rec
	// Outcomes are immutable once appended; copying the slice is enough.
	rec.Cycles = make([]store.CycleOutcome, len(e.rec.Cycles))
	copy(rec.Cycles, e.rec.Cycles)
	if e.rec.EndedAt != nil {
		ended := *e.rec.EndedAt
		rec.EndedAt = &ended
	}
	return rec
}

func (e *entry) status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rec.Status
}

func (e *entry) update(fn func(rec *Record)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.rec)
}

// transition moves a running loop to a terminal status. It reports false
// when the loop had already left the running state.
func (e *entry) transition(to Status, at time.Time, errMsg string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec.Status != StatusRunning {
		return false
	}
	e.rec.Status = to
	e.rec.EndedAt = &at
	if errMsg != "" {
		e.rec.Error = errMsg
	}
	return true
}

func (e *entry) signalStop() {
	e.stopOnce.Do(func() { close(e.stop) })
}
