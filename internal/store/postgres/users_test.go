package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"hubcredo/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return &Store{db: db}, mock
}

var userRowColumns = []string{"id", "name", "email", "status", "automation_count", "last_automation", "created_at"}

func TestCreateUser_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	user := &store.User{
		ID:        uuid.New(),
		Name:      "Ada",
		Email:     "Ada@Example.com",
		Status:    store.UserStatusActive,
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(user.ID, "Ada", "ada@example.com", "hash", store.UserStatusActive, 0, user.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.CreateUser(context.Background(), user, "hash"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.CreateUser(context.Background(), &store.User{ID: uuid.New(), Email: "dup@example.com"}, "hash")
	if !errors.Is(err, store.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestGetUserByAPIKeyHash_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	userID := uuid.New()
	createdAt := time.Now().Truncate(time.Second)

	mock.ExpectQuery(`SELECT id, name, email, status, automation_count, last_automation, created_at FROM users WHERE api_key_hash = \$1`).
		WithArgs("abc123hash").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(userID.String(), "Ada", "ada@example.com", "active", 4, nil, createdAt))

	user, err := s.GetUserByAPIKeyHash(context.Background(), "abc123hash")
	if err != nil {
		t.Fatalf("GetUserByAPIKeyHash failed: %v", err)
	}
	if user.ID != userID {
		t.Errorf("got ID %v, want %v", user.ID, userID)
	}
	if user.AutomationCount != 4 {
		t.Errorf("got AutomationCount %d, want 4", user.AutomationCount)
	}
	if user.LastAutomation != nil {
		t.Errorf("expected nil LastAutomation, got %v", user.LastAutomation)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	userID := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs(userID).
		WillReturnError(sql.ErrNoRows)

	user, err := s.GetUserByID(context.Background(), userID)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected store.ErrNotFound, got %v", err)
	}
	if user != nil {
		t.Error("expected nil user")
	}
}

func TestRecordAutomation(t *testing.T) {
	tests := []struct {
		name    string
		result  sql.Result
		wantErr error
	}{
		{"updated", sqlmock.NewResult(0, 1), nil},
		{"unknown user", sqlmock.NewResult(0, 0), store.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			defer s.db.Close()

			userID := uuid.New()
			at := time.Now().UTC()

			mock.ExpectExec(`UPDATE users SET automation_count = automation_count \+ 1`).
				WithArgs(userID, at).
				WillReturnResult(tt.result)

			err := s.RecordAutomation(context.Background(), userID, at)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got err %v, want %v", err, tt.wantErr)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}
