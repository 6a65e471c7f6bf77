// Package memory implements the store interfaces in process memory.
// It backs the server when no DATABASE_URL is configured; nothing
// survives a restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"hubcredo/internal/store"

	"github.com/google/uuid"
)

// Store is a mutex-guarded, map-backed store.
type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]store.User
	keys     map[string]uuid.UUID // api key hash -> user id
	emails   map[string]uuid.UUID
	logs     map[uuid.UUID]store.AutomationLog
	logOrder []uuid.UUID
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:  make(map[uuid.UUID]store.User),
		keys:   make(map[string]uuid.UUID),
		emails: make(map[string]uuid.UUID),
		logs:   make(map[uuid.UUID]store.AutomationLog),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user *store.User, hashedKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := s.emails[email]; ok {
		return store.ErrEmailTaken
	}

	u := *user
	u.Email = email
	s.users[u.ID] = u
	s.keys[hashedKey] = u.ID
	s.emails[email] = u.ID
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByAPIKeyHash(ctx context.Context, hash string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keys[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) RecordAutomation(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.AutomationCount++
	u.LastAutomation = &at
	s.users[id] = u
	return nil
}

func (s *Store) CreateAutomationLog(ctx context.Context, log *store.AutomationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := *log
	l.Cycles = append([]store.CycleOutcome(nil), log.Cycles...)
	s.logs[l.ID] = l
	s.logOrder = append(s.logOrder, l.ID)
	return nil
}

func (s *Store) AppendCycle(ctx context.Context, logID uuid.UUID, outcome store.CycleOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[logID]
	if !ok {
		return store.ErrNotFound
	}

	// Copy-on-write so slices handed out by readers never change underneath them.
	cycles := make([]store.CycleOutcome, len(l.Cycles), len(l.Cycles)+1)
	copy(cycles, l.Cycles)
	l.Cycles = append(cycles, outcome)

	if outcome.Status == store.CycleStatusCompleted {
		l.CyclesCompleted++
	} else {
		l.CyclesFailed++
	}
	l.UpdatedAt = s.now()
	s.logs[logID] = l
	return nil
}

func (s *Store) FinishAutomationLog(ctx context.Context, logID uuid.UUID, status store.AutomationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[logID]
	if !ok {
		return store.ErrNotFound
	}
	l.Status = status
	l.UpdatedAt = s.now()
	s.logs[logID] = l
	return nil
}

func (s *Store) GetAutomationLog(ctx context.Context, id uuid.UUID) (*store.AutomationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.logs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &l, nil
}

func (s *Store) ListAutomationLogs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]store.AutomationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Walk insertion order backwards so later inserts win ties on CreatedAt.
	var matched []store.AutomationLog
	for i := len(s.logOrder) - 1; i >= 0; i-- {
		if l := s.logs[s.logOrder[i]]; l.UserID == userID {
			matched = append(matched, l)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (s *Store) CountUsers(ctx context.Context, filter store.UserFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, u := range s.users {
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		if !filter.CreatedSince.IsZero() && u.CreatedAt.Before(filter.CreatedSince) {
			continue
		}
		n++
	}
	return n, nil
}

func (s *Store) CountAutomationLogs(ctx context.Context, filter store.LogFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, l := range s.logs {
		if filter.UserID != uuid.Nil && l.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		n++
	}
	return n, nil
}

func (s *Store) SumCycles(ctx context.Context, userID uuid.UUID) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var completed, failed int64
	for _, l := range s.logs {
		if l.UserID == userID {
			completed += int64(l.CyclesCompleted)
			failed += int64(l.CyclesFailed)
		}
	}
	return completed, failed, nil
}
