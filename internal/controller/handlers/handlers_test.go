package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"hubcredo/internal/automation"
	"hubcredo/internal/controller/middleware"
	"hubcredo/internal/loop"
	"hubcredo/internal/store"

	"github.com/google/uuid"
)

// Mock Store
type mockStore struct {
	pingErr error

	// User Hooks
	createUserErr  error
	getUserResp    *store.User
	getUserErr     error
	createdUser    *store.User
	createdKeyHash string

	// Log Hooks
	listLogsResp []store.AutomationLog
	listLogsErr  error
	countLogsErr error

	// Stats Hooks
	totalUsers, activeUsers, todayUsers int64
	totalLogs, completedLogs, userLogs  int64
	countUsersErr                       error
	sumCompleted  int64
	sumFailed     int64
	sumErr        error

	// Spies (to verify arguments passed by handlers)
	mu              sync.Mutex
	capturedLimit   int
	capturedOffset  int
	capturedFilters []store.UserFilter
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockStore) CreateUser(ctx context.Context, user *store.User, hashedKey string) error {
	m.createdUser = user
	m.createdKeyHash = hashedKey
	return m.createUserErr
}

func (m *mockStore) GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	return m.getUserResp, m.getUserErr
}

func (m *mockStore) GetUserByAPIKeyHash(ctx context.Context, hash string) (*store.User, error) {
	return nil, store.ErrNotFound // Handled by Auth Middleware, not Handlers
}

func (m *mockStore) RecordAutomation(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

func (m *mockStore) CreateAutomationLog(ctx context.Context, log *store.AutomationLog) error {
	return nil
}

func (m *mockStore) AppendCycle(ctx context.Context, logID uuid.UUID, outcome store.CycleOutcome) error {
	return nil
}

func (m *mockStore) FinishAutomationLog(ctx context.Context, logID uuid.UUID, status store.AutomationStatus) error {
	return nil
}

func (m *mockStore) GetAutomationLog(ctx context.Context, id uuid.UUID) (*store.AutomationLog, error) {
	return nil, store.ErrNotFound
}

func (m *mockStore) ListAutomationLogs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]store.AutomationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capturedLimit = limit
	m.capturedOffset = offset
	return m.listLogsResp, m.listLogsErr
}

func (m *mockStore) CountUsers(ctx context.Context, filter store.UserFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capturedFilters = append(m.capturedFilters, filter)
	if m.countUsersErr != nil {
		return 0, m.countUsersErr
	}
	switch {
	case !filter.CreatedSince.IsZero():
		return m.todayUsers, nil
	case filter.Status == store.UserStatusActive:
		return m.activeUsers, nil
	default:
		return m.totalUsers, nil
	}
}

func (m *mockStore) CountAutomationLogs(ctx context.Context, filter store.LogFilter) (int64, error) {
	if m.countLogsErr != nil {
		return 0, m.countLogsErr
	}
	switch {
	case filter.UserID != uuid.Nil:
		return m.userLogs, nil
	case filter.Status == store.AutomationStatusCompleted:
		return m.completedLogs, nil
	default:
		return m.totalLogs, nil
	}
}

func (m *mockStore) SumCycles(ctx context.Context, userID uuid.UUID) (int64, int64, error) {
	return m.sumCompleted, m.sumFailed, m.sumErr
}

// Mock loop registry
type mockLoops struct {
	mu       sync.Mutex
	records  map[string]loop.Record
	startID  string
	startErr error
	started  []int
	stopped  []string
}

func newMockLoops(recs ...loop.Record) *mockLoops {
	m := &mockLoops{records: make(map[string]loop.Record), startID: "loop_test_1"}
	for _, rec := range recs {
		m.records[rec.ID] = rec
	}
	return m
}

func (m *mockLoops) Start(ctx context.Context, userID uuid.UUID, totalCycles int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return "", m.startErr
	}
	m.started = append(m.started, totalCycles)
	return m.startID, nil
}

func (m *mockLoops) Get(id string) (loop.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return loop.Record{}, loop.ErrLoopNotFound
	}
	return rec, nil
}

func (m *mockLoops) List() []loop.Record {
	return m.collect(func(loop.Record) bool { return true })
}

func (m *mockLoops) ListByUser(userID uuid.UUID) []loop.Record {
	return m.collect(func(rec loop.Record) bool { return rec.UserID == userID })
}

func (m *mockLoops) collect(match func(loop.Record) bool) []loop.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []loop.Record{}
	for _, rec := range m.records {
		if match(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *mockLoops) CountRunning() int {
	return len(m.collect(func(rec loop.Record) bool { return rec.Status == loop.StatusRunning }))
}

func (m *mockLoops) Stop(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.Status != loop.StatusRunning {
		return false
	}
	rec.Status = loop.StatusStopped
	m.records[id] = rec
	m.stopped = append(m.stopped, id)
	return true
}

// Mock automation service
type mockAutomation struct {
	batchResp     automation.BatchResult
	batchErr      error
	batchCycles   int
	registrations []*store.User
}

func (m *mockAutomation) RunBatch(ctx context.Context, user *store.User, cycles int, kind store.AutomationType) (automation.BatchResult, error) {
	m.batchCycles = cycles
	if m.batchErr != nil {
		return automation.BatchResult{}, m.batchErr
	}
	res := m.batchResp
	res.CyclesRequested = cycles
	return res, nil
}

func (m *mockAutomation) StartRegistration(user *store.User) {
	m.registrations = append(m.registrations, user)
}

func newTestHandlers(s *mockStore, l *mockLoops, a *mockAutomation) *Handlers {
	if s == nil {
		s = &mockStore{}
	}
	if l == nil {
		l = newMockLoops()
	}
	if a == nil {
		a = &mockAutomation{}
	}
	return New(s, l, a, nil, WithStreamInterval(10*time.Millisecond))
}

func withUser(ctx context.Context, user *store.User) context.Context {
	return middleware.NewContextWithUser(ctx, user)
}

func testUser() *store.User {
	return &store.User{
		ID:        uuid.New(),
		Name:      "Ada",
		Email:     "ada@example.com",
		Status:    store.UserStatusActive,
		CreatedAt: time.Now().UTC(),
	}
}
