// Package middleware contains HTTP middleware for the controller.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"hubcredo/internal/auth"
	"hubcredo/internal/logger"
	"hubcredo/internal/store"
	"hubcredo/pkg/api"
)

// bearerToken extracts the token from "Authorization: Bearer <token>".
// On failure it returns the message to send back instead.
func bearerToken(r *http.Request) (token, problem string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "Missing authorization header"
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", "Invalid authorization header"
	}
	return parts[1], ""
}

// userKey is the context key for the authenticated user.
type userKey struct{}

// AuthMiddleware resolves the bearer API key to a user and stores it in the
// request context. Every user-scoped route sits behind it.
func AuthMiddleware(s store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r)
			if problem != "" {
				unauthorized(w, problem)
				return
			}

			user, err := s.GetUserByAPIKeyHash(r.Context(), auth.HashKey(token))
			if errors.Is(err, store.ErrNotFound) || (err == nil && user == nil) {
				unauthorized(w, "Invalid API key")
				return
			}
			if err != nil {
				writeError(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if user.Status != "" && user.Status != store.UserStatusActive {
				writeError(w, "Account is not active", http.StatusForbidden)
				return
			}

			if rec, ok := w.(*statusRecorder); ok {
				rec.userID = user.ID.String()
			}
			ctx := NewContextWithUser(r.Context(), user)
			ctx = logger.WithUserID(ctx, user.ID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewContextWithUser returns a copy of ctx carrying user.
func NewContextWithUser(ctx context.Context, user *store.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*store.User, bool) {
	user, ok := ctx.Value(userKey{}).(*store.User)
	return user, ok && user != nil
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, message, http.StatusUnauthorized)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}
