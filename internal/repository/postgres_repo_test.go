package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/hitoshi/authgate/internal/model"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db, mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

var createdAt = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

// --- PostgresIdentityRepo ---

func TestPostgresIdentityRepo_Create_AssignsID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresIdentityRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO identities (id, email, password_hash, created_at)")).
		WithArgs(sqlmock.AnyArg(), "a@x.com", "hash", createdAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	identity := &model.Identity{Email: "a@x.com", PasswordHash: "hash", CreatedAt: createdAt}
	if err := repo.Create(context.Background(), identity); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if len(identity.ID) != 36 {
		t.Errorf("ID = %q, want a UUID", identity.ID)
	}
	expectationsMet(t, mock)
}

func TestPostgresIdentityRepo_Create_UniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresIdentityRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO identities")).
		WillReturnError(&pq.Error{Code: pq.ErrorCode(pgerrcode.UniqueViolation), Constraint: "identities_email_unique"})

	identity := &model.Identity{Email: "a@x.com", PasswordHash: "hash", CreatedAt: createdAt}
	err := repo.Create(context.Background(), identity)
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}
	if identity.ID != "" {
		t.Errorf("ID = %q, want empty on failure", identity.ID)
	}
	expectationsMet(t, mock)
}

func TestPostgresIdentityRepo_Create_OtherError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresIdentityRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO identities")).
		WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), &model.Identity{Email: "a@x.com"})
	if err == nil || errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("err = %v, want non-duplicate error", err)
	}
	expectationsMet(t, mock)
}

func TestPostgresIdentityRepo_FindByEmail_Found(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresIdentityRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, created_at")).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
			AddRow("11111111-1111-1111-1111-111111111111", "a@x.com", "hash", createdAt))

	identity, err := repo.FindByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("FindByEmail returned error: %v", err)
	}
	if identity == nil {
		t.Fatal("expected identity, got nil")
	}
	if identity.ID != "11111111-1111-1111-1111-111111111111" || identity.PasswordHash != "hash" {
		t.Errorf("identity = %+v", identity)
	}
	if !identity.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt = %v, want %v", identity.CreatedAt, createdAt)
	}
	expectationsMet(t, mock)
}

func TestPostgresIdentityRepo_FindByEmail_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresIdentityRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM identities")).
		WithArgs("nobody@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}))

	identity, err := repo.FindByEmail(context.Background(), "nobody@x.com")
	if err != nil {
		t.Fatalf("FindByEmail returned error: %v", err)
	}
	if identity != nil {
		t.Errorf("identity = %+v, want nil", identity)
	}
	expectationsMet(t, mock)
}

func TestPostgresIdentityRepo_FindByEmail_Error(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresIdentityRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM identities")).
		WillReturnError(context.DeadlineExceeded)

	_, err := repo.FindByEmail(context.Background(), "a@x.com")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want wrapped context.DeadlineExceeded", err)
	}
	expectationsMet(t, mock)
}

func TestPostgresIdentityRepo_Ping(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresIdentityRepo(db)

	mock.ExpectPing()
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping returned error: %v", err)
	}

	mock.ExpectPing().WillReturnError(errors.New("down"))
	if err := repo.Ping(context.Background()); err == nil {
		t.Error("expected ping error, got nil")
	}
	expectationsMet(t, mock)
}

// --- PostgresRevocationRepo ---

func TestPostgresRevocationRepo_Revoke(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRevocationRepo(db)

	expiresAt := createdAt.Add(time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (token_id) DO NOTHING")).
		WithArgs("jti-1", expiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Revoke(context.Background(), "jti-1", expiresAt); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestPostgresRevocationRepo_Revoke_Error(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRevocationRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO revoked_tokens")).
		WillReturnError(errors.New("down"))

	if err := repo.Revoke(context.Background(), "jti-1", createdAt); err == nil {
		t.Error("expected error, got nil")
	}
	expectationsMet(t, mock)
}

func TestPostgresRevocationRepo_IsRevoked(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{"revoked", true},
		{"not revoked", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewPostgresRevocationRepo(db)

			mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
				WithArgs("jti-1").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			got, err := repo.IsRevoked(context.Background(), "jti-1")
			if err != nil {
				t.Fatalf("IsRevoked returned error: %v", err)
			}
			if got != tt.exists {
				t.Errorf("IsRevoked = %v, want %v", got, tt.exists)
			}
			expectationsMet(t, mock)
		})
	}
}

func TestPostgresRevocationRepo_DeleteExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRevocationRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM revoked_tokens WHERE expires_at < $1")).
		WithArgs(createdAt).
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := repo.DeleteExpired(context.Background(), createdAt)
	if err != nil {
		t.Fatalf("DeleteExpired returned error: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}
	expectationsMet(t, mock)
}
