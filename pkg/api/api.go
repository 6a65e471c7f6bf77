// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and the server.
package api

import (
	"encoding/json"
	"time"
)

// RegisterRequest is the request body for creating an account.
type RegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RegisterResponse returns the new account and its raw API key.
// The key is never shown again.
type RegisterResponse struct {
	User   User   `json:"user"`
	APIKey string `json:"apiKey"`
}

// User is the public view of an account.
type User struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Status          string     `json:"status"`
	AutomationCount int        `json:"automationCount"`
	LastAutomation  *time.Time `json:"lastAutomation,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// StartLoopRequest is the request body for POST /api/loop/start.
// Cycles defaults to 10 when omitted.
type StartLoopRequest struct {
	Cycles *int `json:"cycles,omitempty"`
}

// StartLoopResponse is returned once the loop is registered.
type StartLoopResponse struct {
	LoopID  string `json:"loopId"`
	Status  string `json:"status"`
	Cycles  int    `json:"cycles"`
	Message string `json:"message"`
}

// StopLoopRequest is the request body for POST /api/loop/stop.
type StopLoopRequest struct {
	LoopID string `json:"loopId"`
}

// StopLoopResponse confirms a stop request.
type StopLoopResponse struct {
	LoopID  string `json:"loopId"`
	Message string `json:"message"`
}

// Step is one webhook call or email send inside a cycle.
type Step struct {
	Type      string          `json:"type"`
	Step      string          `json:"step"`
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Cycle is the outcome of one automation cycle.
type Cycle struct {
	CycleNumber int       `json:"cycleNumber"`
	Status      string    `json:"status"`
	Steps       []Step    `json:"steps"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
	DurationMs  int64     `json:"duration"`
}

// Loop is a snapshot of a background loop.
type Loop struct {
	LoopID          string     `json:"loopId"`
	UserID          string     `json:"userId"`
	UserEmail       string     `json:"userEmail,omitempty"`
	TotalCycles     int        `json:"totalCycles"`
	CurrentCycle    int        `json:"currentCycle"`
	Status          string     `json:"status"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	CyclesCompleted int        `json:"cyclesCompleted"`
	CyclesFailed    int        `json:"cyclesFailed"`
	Error           string     `json:"error,omitempty"`
	LogID           string     `json:"logId,omitempty"`
	Cycles          []Cycle    `json:"cycles"`
}

// LoopListResponse wraps a list of loops.
type LoopListResponse struct {
	Loops []Loop `json:"loops"`
	Count int    `json:"count"`
}

// RunAutomationRequest is the request body for POST /api/automation/start-loop.
// Cycles defaults to 3 when omitted.
type RunAutomationRequest struct {
	Cycles *int `json:"cycles,omitempty"`
}

// RunAutomationResponse summarizes a finished manual batch.
type RunAutomationResponse struct {
	Message         string `json:"message"`
	LogID           string `json:"logId"`
	Status          string `json:"status"`
	CyclesRequested int    `json:"cyclesRequested"`
	CyclesCompleted int    `json:"cyclesCompleted"`
	CyclesFailed    int    `json:"cyclesFailed"`
}

// AutomationLog is the durable record of one automation invocation.
type AutomationLog struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	UserEmail       string    `json:"userEmail"`
	TotalCycles     int       `json:"totalCycles"`
	CyclesCompleted int       `json:"cyclesCompleted"`
	CyclesFailed    int       `json:"cyclesFailed"`
	Status          string    `json:"status"`
	AutomationType  string    `json:"automationType"`
	Cycles          []Cycle   `json:"cycles"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int64 `json:"pages"`
}

// AutomationLogsResponse is one page of the caller's automation logs.
type AutomationLogsResponse struct {
	Logs       []AutomationLog `json:"logs"`
	Pagination Pagination      `json:"pagination"`
}

// StatsResponse holds the global dashboard counters.
type StatsResponse struct {
	TotalUsers           int64 `json:"totalUsers"`
	ActiveUsers          int64 `json:"activeUsers"`
	TodayRegistrations   int64 `json:"todayRegistrations"`
	TotalAutomations     int64 `json:"totalAutomations"`
	CompletedAutomations int64 `json:"completedAutomations"`
	ActiveLoops          int   `json:"activeLoops"`
}

// UserStatsResponse holds the caller's dashboard counters.
type UserStatsResponse struct {
	TotalAutomations  int64           `json:"totalAutomations"`
	SuccessfulCycles  int64           `json:"successfulCycles"`
	FailedCycles      int64           `json:"failedCycles"`
	RecentAutomations int             `json:"recentAutomations"`
	RecentLogs        []AutomationLog `json:"recentLogs"`
}

// TestWebhookResponse echoes what the test receiver got.
type TestWebhookResponse struct {
	Received  bool            `json:"received"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// HealthResponse is returned by the liveness and readiness probes.
type HealthResponse struct {
	Status      string    `json:"status"`
	Service     string    `json:"service"`
	Store       string    `json:"store,omitempty"`
	ActiveLoops int       `json:"activeLoops"`
	Timestamp   time.Time `json:"timestamp"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Cycle count limits enforced by the server.
const (
	DefaultLoopCycles  = 10
	MaxLoopCycles      = 100
	DefaultBatchCycles = 3
	MaxBatchCycles     = 20
)
