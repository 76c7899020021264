package care

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into care_profiles").
		WithArgs("u-1", "a@example.org", "Alice", "patient").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	err = store.Upsert(context.Background(), &Profile{
		UserID: "u-1", Email: "a@example.org", FullName: "Alice", Role: "patient",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreRecordLogin(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec("insert into care_profiles").
		WithArgs("u-1", "a@example.org", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	if err := store.RecordLogin(context.Background(), "u-1", "a@example.org", at); err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreFindByUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	login := now.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{
		"user_id", "email", "full_name", "role", "last_login_at", "last_logout_at", "created_at", "updated_at",
	}).AddRow("u-1", "a@example.org", "Alice", "patient", login, nil, now, now)
	mock.ExpectQuery("from care_profiles where user_id").
		WithArgs("u-1").
		WillReturnRows(rows)

	store := NewPGStore(db)
	p, err := store.FindByUserID(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("FindByUserID: %v", err)
	}
	if p.Email != "a@example.org" || p.FullName != "Alice" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.LastLoginAt == nil || !p.LastLoginAt.Equal(login) {
		t.Fatalf("unexpected login stamp: %v", p.LastLoginAt)
	}
	if p.LastLogoutAt != nil {
		t.Fatalf("expected nil logout stamp, got %v", p.LastLogoutAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreFindByUserIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("from care_profiles where user_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "email", "full_name", "role", "last_login_at", "last_logout_at", "created_at", "updated_at",
		}))

	store := NewPGStore(db)
	if _, err := store.FindByUserID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
