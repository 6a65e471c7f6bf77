package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"hubcredo/internal/auth"
	"hubcredo/internal/controller/middleware"
	"hubcredo/internal/store"
	"hubcredo/pkg/api"

	"github.com/google/uuid"
)

// Register handles POST /api/auth/register.
// It creates the account, returns the raw API key ONCE and kicks off the
// background registration automation.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" {
		h.httpError(w, "Name and email are required", http.StatusBadRequest)
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		h.httpError(w, "Invalid email address", http.StatusBadRequest)
		return
	}

	apiKey, err := auth.GenerateKey()
	if err != nil {
		h.httpError(w, "Entropy failure", http.StatusInternalServerError)
		return
	}

	user := &store.User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Status:    store.UserStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateUser(ctx, user, auth.HashKey(apiKey)); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			h.httpError(w, "Email already registered", http.StatusConflict)
			return
		}
		h.log(r).Error("create user failed", "error", err)
		h.httpError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	h.automation.StartRegistration(user)
	h.log(r).Info("user registered", "user_id", user.ID)

	// Return the Raw Key (This is the only time the user sees it)
	h.respondJson(w, http.StatusCreated, api.RegisterResponse{
		User:   toAPIUser(user),
		APIKey: apiKey,
	})
}

// Profile handles GET /api/auth/profile.
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Reload so the automation counters are current.
	fresh, err := h.store.GetUserByID(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.httpError(w, "User not found", http.StatusNotFound)
			return
		}
		h.httpError(w, "Internal database error", http.StatusInternalServerError)
		return
	}
	h.respondJson(w, http.StatusOK, toAPIUser(fresh))
}
