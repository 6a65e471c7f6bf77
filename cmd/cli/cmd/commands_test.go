package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"hubcredo/pkg/api"
)

func TestCommands_MissingToken(t *testing.T) {
	commands := [][]string{
		{"loop", "start"},
		{"loop", "stop", "loop_1"},
		{"loop", "status", "loop_1"},
		{"loop", "list"},
		{"automate"},
		{"logs"},
		{"stats"},
	}

	for _, args := range commands {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			output := execute(t, "http://localhost:5000", "", args...)
			if !strings.Contains(output, "API token not found") {
				t.Errorf("expected token error message, got: %s", output)
			}
		})
	}
}

func TestRegisterCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/register" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("register should not send a token")
		}

		var req api.RegisterRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "ada@example.com" {
			t.Errorf("unexpected email: %s", req.Email)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(api.RegisterResponse{
			User:   api.User{ID: "u-1", Name: req.Name, Email: req.Email},
			APIKey: "hc_secret",
		})
	}))
	defer server.Close()

	output := execute(t, server.URL, "", "register", "--name", "Ada", "--email", "ada@example.com")
	if !strings.Contains(output, "hc_secret") {
		t.Errorf("expected API key in output, got: %s", output)
	}
}

func TestRegisterCommand_RequiresFlags(t *testing.T) {
	output := execute(t, "http://localhost:5000", "", "register", "--name", "Ada")
	if !strings.Contains(output, "--email are required") {
		t.Errorf("expected missing flag message, got: %s", output)
	}
}

func TestRegisterCommand_Conflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Email already registered", Code: "409"})
	}))
	defer server.Close()

	output := execute(t, server.URL, "", "register", "--name", "Ada", "--email", "ada@example.com")
	if !strings.Contains(output, "Email already registered") {
		t.Errorf("expected conflict message, got: %s", output)
	}
}

func TestLoopStartCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.StartLoopRequest
		json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(api.StartLoopResponse{LoopID: "loop_42", Status: "running", Cycles: *req.Cycles})
	}))
	defer server.Close()

	output := execute(t, server.URL, "test-token", "loop", "start", "--cycles", "4")
	if !strings.Contains(output, "loop_42") {
		t.Errorf("expected loop id, got: %s", output)
	}
	if !strings.Contains(output, "4") {
		t.Errorf("expected cycle count, got: %s", output)
	}
}

func TestLoopStopCommand_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Loop not found or not running", Code: "404"})
	}))
	defer server.Close()

	output := execute(t, server.URL, "test-token", "loop", "stop", "loop_x")
	if !strings.Contains(output, "Loop not found or not running") {
		t.Errorf("expected not found message, got: %s", output)
	}
}

func TestLoopStatusCommand(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	end := start.Add(30 * time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/loop/status/loop_1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(api.Loop{
			LoopID:          "loop_1",
			Status:          "completed",
			TotalCycles:     3,
			CurrentCycle:    3,
			CyclesCompleted: 2,
			CyclesFailed:    1,
			StartTime:       start,
			EndTime:         &end,
			LogID:           "log-9",
		})
	}))
	defer server.Close()

	output := execute(t, server.URL, "test-token", "loop", "status", "loop_1")

	for _, want := range []string{"loop_1", "completed", "3/3", "log-9", "30.0s"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestLoopStatusCommand_Watch(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		status := "running"
		if n >= 3 {
			status = "stopped"
		}
		json.NewEncoder(w).Encode(api.Loop{LoopID: "loop_1", Status: status, StartTime: time.Now()})
	}))
	defer server.Close()

	output := execute(t, server.URL, "test-token", "loop", "status", "loop_1", "--watch")

	if calls.Load() != 3 {
		t.Errorf("expected 3 polls, got %d", calls.Load())
	}
	if !strings.Contains(output, "stopped") {
		t.Errorf("expected final status, got: %s", output)
	}
}

func TestLoopListCommand_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.LoopListResponse{Loops: []api.Loop{}})
	}))
	defer server.Close()

	output := execute(t, server.URL, "test-token", "loop", "list", "--active")
	if !strings.Contains(output, "No loops found") {
		t.Errorf("expected empty message, got: %s", output)
	}
}

func TestAutomateCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/automation/start-loop" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req api.RunAutomationRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Cycles == nil || *req.Cycles != api.DefaultBatchCycles {
			t.Errorf("expected default cycles, got %v", req.Cycles)
		}
		json.NewEncoder(w).Encode(api.RunAutomationResponse{
			Message:         "Automation completed",
			LogID:           "log-1",
			Status:          "completed",
			CyclesRequested: 3,
			CyclesCompleted: 3,
		})
	}))
	defer server.Close()

	output := execute(t, server.URL, "test-token", "automate")
	if !strings.Contains(output, "log-1") || !strings.Contains(output, "3/3") {
		t.Errorf("unexpected output: %s", output)
	}
}

func TestLogsCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.AutomationLogsResponse{
			Logs: []api.AutomationLog{
				{ID: "log-1", AutomationType: "manual", Status: "completed", TotalCycles: 3, CyclesCompleted: 3, CreatedAt: time.Now()},
			},
			Pagination: api.Pagination{Total: 1, Page: 1, Limit: 10, Pages: 1},
		})
	}))
	defer server.Close()

	output := execute(t, server.URL, "test-token", "logs")
	if !strings.Contains(output, "log-1") || !strings.Contains(output, "manual") {
		t.Errorf("expected log row, got: %s", output)
	}
	if !strings.Contains(output, "Page 1 of 1") {
		t.Errorf("expected pagination footer, got: %s", output)
	}
}

func TestStatsCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/analytics/stats":
			json.NewEncoder(w).Encode(api.StatsResponse{TotalUsers: 12, ActiveUsers: 10, ActiveLoops: 2})
		case "/api/analytics/user-stats":
			json.NewEncoder(w).Encode(api.UserStatsResponse{TotalAutomations: 4, SuccessfulCycles: 11, FailedCycles: 1})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	output := execute(t, server.URL, "test-token", "stats")
	if !strings.Contains(output, "12 (10 active)") {
		t.Errorf("expected user counts, got: %s", output)
	}

	output = execute(t, server.URL, "test-token", "stats", "--me")
	if !strings.Contains(output, "11") {
		t.Errorf("expected successful cycles, got: %s", output)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{2500 * time.Millisecond, "2.5s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestColorizeStatus(t *testing.T) {
	for _, status := range []string{"running", "completed", "stopped", "failed"} {
		got := colorizeStatus(status)
		if !strings.Contains(got, status) {
			t.Errorf("colorizeStatus(%q) = %q, missing status text", status, got)
		}
	}
	if got := colorizeStatus("unknown"); got != "unknown" {
		t.Errorf("expected unknown status unchanged, got %q", got)
	}
}
