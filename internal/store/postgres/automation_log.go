package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hubcredo/internal/store"

	"github.com/google/uuid"
)

const logColumns = "id, user_id, user_email, total_cycles, cycles_completed, cycles_failed, status, automation_type, cycles, created_at, updated_at"

func (s *Store) CreateAutomationLog(ctx context.Context, log *store.AutomationLog) error {
	cycles := log.Cycles
	if cycles == nil {
		cycles = []store.CycleOutcome{}
	}
	cyclesJSON, err := json.Marshal(cycles)
	if err != nil {
		return fmt.Errorf("failed to encode cycles: %w", err)
	}

	query := `
		INSERT INTO automation_logs (id, user_id, user_email, total_cycles, cycles_completed, cycles_failed, status, automation_type, cycles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.db.ExecContext(ctx, query,
		log.ID, log.UserID, log.UserEmail,
		log.TotalCycles, log.CyclesCompleted, log.CyclesFailed,
		log.Status, log.AutomationType, cyclesJSON,
		log.CreatedAt, log.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create automation log %s: %w", log.ID, err)
	}
	return nil
}

// AppendCycle concatenates the outcome onto the JSONB cycles array so
// concurrent readers never see a half-written list.
func (s *Store) AppendCycle(ctx context.Context, logID uuid.UUID, outcome store.CycleOutcome) error {
	entry, err := json.Marshal([]store.CycleOutcome{outcome})
	if err != nil {
		return fmt.Errorf("failed to encode cycle: %w", err)
	}

	completed, failed := 0, 0
	if outcome.Status == store.CycleStatusCompleted {
		completed = 1
	} else {
		failed = 1
	}

	query := `
		UPDATE automation_logs
		SET cycles = cycles || $2::jsonb,
			cycles_completed = cycles_completed + $3,
			cycles_failed = cycles_failed + $4,
			updated_at = $5
		WHERE id = $1
	`

	res, err := s.db.ExecContext(ctx, query, logID, entry, completed, failed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to append cycle to log %s: %w", logID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FinishAutomationLog(ctx context.Context, logID uuid.UUID, status store.AutomationStatus) error {
	query := `UPDATE automation_logs SET status = $2, updated_at = $3 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, logID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to finish automation log %s: %w", logID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetAutomationLog(ctx context.Context, id uuid.UUID) (*store.AutomationLog, error) {
	query := "SELECT " + logColumns + " FROM automation_logs WHERE id = $1"

	log, err := scanLog(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return log, nil
}

func (s *Store) ListAutomationLogs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]store.AutomationLog, error) {
	query := `
		SELECT ` + logColumns + `
		FROM automation_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []store.AutomationLog
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *log)
	}

	return logs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLog(row rowScanner) (*store.AutomationLog, error) {
	var (
		log        store.AutomationLog
		cyclesJSON []byte
	)
	err := row.Scan(
		&log.ID, &log.UserID, &log.UserEmail,
		&log.TotalCycles, &log.CyclesCompleted, &log.CyclesFailed,
		&log.Status, &log.AutomationType, &cyclesJSON,
		&log.CreatedAt, &log.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(cyclesJSON) > 0 {
		if err := json.Unmarshal(cyclesJSON, &log.Cycles); err != nil {
			return nil, fmt.Errorf("failed to decode cycles of log %s: %w", log.ID, err)
		}
	}
	return &log, nil
}
