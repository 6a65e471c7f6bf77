package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hubcredo/internal/store"

	"github.com/google/uuid"
)

const userColumns = "id, name, email, status, automation_count, last_automation, created_at"

func (s *Store) CreateUser(ctx context.Context, user *store.User, hashedKey string) error {
	query := `
		INSERT INTO users (id, name, email, api_key_hash, status, automation_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		strings.ToLower(user.Email),
		hashedKey,
		user.Status,
		user.AutomationCount,
		user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.ID, err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = $1"

	var u store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Status,
		&u.AutomationCount,
		&u.LastAutomation,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	return &u, nil
}

func (s *Store) GetUserByAPIKeyHash(ctx context.Context, hash string) (*store.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE api_key_hash = $1"

	var u store.User
	err := s.db.QueryRowContext(ctx, query, hash).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Status,
		&u.AutomationCount,
		&u.LastAutomation,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	return &u, nil
}

func (s *Store) RecordAutomation(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE users SET automation_count = automation_count + 1, last_automation = $2 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to record automation for user %s: %w", id, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
