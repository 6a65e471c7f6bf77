// Package store contains the database layer for hubcredo.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User is a registered account. Users authenticate with an API key whose
// SHA-256 hash is stored alongside the row.
type User struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Status          UserStatus `json:"status"`
	AutomationCount int        `json:"automationCount"`
	LastAutomation  *time.Time `json:"lastAutomation,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// UserStatus represents the lifecycle state of an account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

// AutomationType tells which feature created an AutomationLog.
type AutomationType string

const (
	AutomationTypeRegistration AutomationType = "registration"
	AutomationTypeManual       AutomationType = "manual"
	AutomationTypeInfinite     AutomationType = "infinite"
)

// AutomationStatus represents the state of one automation invocation.
type AutomationStatus string

const (
	AutomationStatusRunning   AutomationStatus = "running"
	AutomationStatusCompleted AutomationStatus = "completed"
	AutomationStatusFailed    AutomationStatus = "failed"
	AutomationStatusStopped   AutomationStatus = "stopped"
)

// AutomationLog is the durable record of one invocation of the automation
// feature (a manual batch, a registration batch or a loop).
type AutomationLog struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"userId"`
	UserEmail       string           `json:"userEmail"`
	TotalCycles     int              `json:"totalCycles"`
	CyclesCompleted int              `json:"cyclesCompleted"`
	CyclesFailed    int              `json:"cyclesFailed"`
	Status          AutomationStatus `json:"status"`
	AutomationType  AutomationType   `json:"automationType"`
	Cycles          []CycleOutcome   `json:"cycles"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// CycleStatus is the outcome of a single cycle.
type CycleStatus string

const (
	CycleStatusCompleted CycleStatus = "completed"
	CycleStatusFailed    CycleStatus = "failed"
)

// CycleOutcome is the result of one automation cycle. It is never mutated
// after it has been appended to a loop or a log.
type CycleOutcome struct {
	CycleNumber int         `json:"cycleNumber"`
	Status      CycleStatus `json:"status"`
	Steps       []Step      `json:"steps"`
	Error       string      `json:"error,omitempty"`
	StartedAt   time.Time   `json:"startedAt"`
	CompletedAt time.Time   `json:"completedAt"`
	DurationMs  int64       `json:"duration"`
}

// StepType identifies what a cycle step did.
type StepType string

const (
	StepTypeWebhook StepType = "webhook"
	StepTypeEmail   StepType = "email"
)

// StepStatus is the outcome of a single step.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
)

// Step records one webhook call or email send inside a cycle.
type Step struct {
	Type      StepType        `json:"type"`
	Step      string          `json:"step"`
	Status    StepStatus      `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Stats holds the global counters shown on the admin dashboard.
type Stats struct {
	TotalUsers           int64
	ActiveUsers          int64
	TodayRegistrations   int64
	TotalAutomations     int64
	CompletedAutomations int64
}

// UserStats holds the per-user counters shown on the user dashboard.
type UserStats struct {
	TotalAutomations int64
	SuccessfulCycles int64
	FailedCycles     int64
}
