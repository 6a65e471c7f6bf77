package postgres

import (
	"context"
	"fmt"
	"strings"

	"hubcredo/internal/store"

	"github.com/google/uuid"
)

func (s *Store) CountUsers(ctx context.Context, filter store.UserFilter) (int64, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.CreatedSince.IsZero() {
		args = append(args, filter.CreatedSince)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	return s.count(ctx, "users", conds, args)
}

func (s *Store) CountAutomationLogs(ctx context.Context, filter store.LogFilter) (int64, error) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != uuid.Nil {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	return s.count(ctx, "automation_logs", conds, args)
}

func (s *Store) SumCycles(ctx context.Context, userID uuid.UUID) (int64, int64, error) {
	query := `
		SELECT COALESCE(SUM(cycles_completed), 0), COALESCE(SUM(cycles_failed), 0)
		FROM automation_logs
		WHERE user_id = $1
	`

	var completed, failed int64
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&completed, &failed); err != nil {
		return 0, 0, err
	}
	return completed, failed, nil
}

func (s *Store) count(ctx context.Context, table string, conds []string, args []any) (int64, error) {
	query := "SELECT COUNT(*) FROM " + table
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
