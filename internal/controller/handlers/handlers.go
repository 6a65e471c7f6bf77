// Package handlers contains HTTP handlers for the hubcredo API.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"hubcredo/internal/automation"
	"hubcredo/internal/logger"
	"hubcredo/internal/loop"
	"hubcredo/internal/store"
	"hubcredo/pkg/api"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// StoreFactory combines the interfaces needed for the API to function.
type StoreFactory interface {
	Ping(ctx context.Context) error
	store.UserStore
	store.AutomationLogStore
	store.StatsStore
}

// LoopRegistry is the subset of loop.Registry the handlers use.
type LoopRegistry interface {
	Start(ctx context.Context, userID uuid.UUID, totalCycles int) (string, error)
	Get(id string) (loop.Record, error)
	List() []loop.Record
	ListByUser(userID uuid.UUID) []loop.Record
	CountRunning() int
	Stop(id string) bool
}

// Automation runs manual and registration batches.
type Automation interface {
	RunBatch(ctx context.Context, user *store.User, cycles int, kind store.AutomationType) (automation.BatchResult, error)
	StartRegistration(user *store.User)
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	store      StoreFactory
	loops      LoopRegistry
	automation Automation
	logger     *slog.Logger

	upgrader       websocket.Upgrader
	streamInterval time.Duration
}

// Option configures Handlers.
type Option func(*Handlers)

// WithStreamInterval sets how often /api/loop/stream pushes snapshots.
func WithStreamInterval(d time.Duration) Option {
	return func(h *Handlers) { h.streamInterval = d }
}

// WithAllowedOrigin restricts websocket upgrades to origin. "*" allows any.
func WithAllowedOrigin(origin string) Option {
	return func(h *Handlers) {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			got := r.Header.Get("Origin")
			return got == "" || origin == "*" || got == origin
		}
	}
}

// New creates a new Handlers instance with the given dependencies.
func New(s StoreFactory, loops LoopRegistry, auto Automation, log *slog.Logger, opts ...Option) *Handlers {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Handlers{
		store:          s,
		loops:          loops,
		automation:     auto,
		logger:         log,
		streamInterval: time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

func (h *Handlers) log(r *http.Request) *slog.Logger {
	return logger.FromContext(r.Context(), h.logger)
}

// decodeOptional decodes a JSON body, treating an empty body as {}.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}
