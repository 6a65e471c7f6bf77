package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"hubcredo/internal/logger"
	"hubcredo/internal/store"

	"github.com/google/uuid"
)

func TestRequestLogger_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "info")

	var seen string
	handler := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/loop/all", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if seen == "" {
		t.Fatal("expected a request id in the handler context")
	}
	if got := rr.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("got response header %q, want %q", got, seen)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["request_id"] != seen {
		t.Errorf("got logged request_id %v, want %q", entry["request_id"], seen)
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("got logged status %v, want %d", entry["status"], http.StatusTeapot)
	}
	if entry["path"] != "/api/loop/all" {
		t.Errorf("got logged path %v", entry["path"])
	}
}

func TestRequestLogger_KeepsClientRequestID(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogger(logger.NewWithWriter(&buf, "info"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("got %q, want %q", got, "req-123")
	}
}

func TestRequestLogger_LogsAuthenticatedUser(t *testing.T) {
	var buf bytes.Buffer
	userID := uuid.New()
	users := &mockUserStore{user: &store.User{ID: userID, Status: store.UserStatusActive}}

	inner := AuthMiddleware(users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler := RequestLogger(logger.NewWithWriter(&buf, "info"))(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer hc_key")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["user_id"] != userID.String() {
		t.Errorf("got logged user_id %v, want %s", entry["user_id"], userID)
	}
}

func TestCORS(t *testing.T) {
	const origin = "http://localhost:5173"

	tests := []struct {
		name        string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantAllowed string
		wantNext    bool
	}{
		{"allowed origin", http.MethodGet, origin, false, http.StatusOK, origin, true},
		{"other origin", http.MethodGet, "http://evil.example", false, http.StatusOK, "", true},
		{"preflight", http.MethodOptions, origin, true, http.StatusNoContent, origin, false},
		{"no origin", http.MethodGet, "", false, http.StatusOK, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := CORS(origin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(tt.method, "/api/loop/start", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("got status %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllowed {
				t.Errorf("got allow-origin %q, want %q", got, tt.wantAllowed)
			}
			if called != tt.wantNext {
				t.Errorf("next called = %v, want %v", called, tt.wantNext)
			}
		})
	}
}
