package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned when a user registers with an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
)

// UserStore handles user accounts and API key lookups.
type UserStore interface {
	// CreateUser inserts a new user with the hash of its API key.
	// Returns ErrEmailTaken if the email is already registered.
	CreateUser(ctx context.Context, user *User, hashedKey string) error

	// GetUserByID returns a user by its ID.
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetUserByAPIKeyHash returns a user by its API key hash.
	GetUserByAPIKeyHash(ctx context.Context, hash string) (*User, error)

	// RecordAutomation bumps the lifetime automation counter and stamps the last automation time.
	RecordAutomation(ctx context.Context, id uuid.UUID, at time.Time) error
}

// AutomationLogStore persists one row per automation invocation.
// Rows are appended to and updated, never deleted.
type AutomationLogStore interface {
	// CreateAutomationLog inserts the initial state of an invocation.
	CreateAutomationLog(ctx context.Context, log *AutomationLog) error

	// AppendCycle adds a cycle outcome to the log and bumps the matching counter.
	AppendCycle(ctx context.Context, logID uuid.UUID, outcome CycleOutcome) error

	// FinishAutomationLog stamps the terminal status of the invocation.
	FinishAutomationLog(ctx context.Context, logID uuid.UUID, status AutomationStatus) error

	// GetAutomationLog returns a log by its ID.
	GetAutomationLog(ctx context.Context, id uuid.UUID) (*AutomationLog, error)

	// ListAutomationLogs returns a user's logs, newest first.
	ListAutomationLogs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]AutomationLog, error)
}

// UserFilter narrows CountUsers. Zero values match everything.
type UserFilter struct {
	Status       UserStatus
	CreatedSince time.Time
}

// LogFilter narrows CountAutomationLogs. Zero values match everything.
type LogFilter struct {
	UserID uuid.UUID
	Status AutomationStatus
}

// StatsStore answers the aggregate queries behind the analytics endpoints.
type StatsStore interface {
	CountUsers(ctx context.Context, filter UserFilter) (int64, error)
	CountAutomationLogs(ctx context.Context, filter LogFilter) (int64, error)

	// SumCycles returns the completed and failed cycle totals across a user's logs.
	SumCycles(ctx context.Context, userID uuid.UUID) (completed int64, failed int64, err error)
}

// Store combines everything the HTTP layer and the automation services need.
type Store interface {
	Ping(ctx context.Context) error
	UserStore
	AutomationLogStore
	StatsStore
}
