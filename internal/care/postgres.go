package care

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PGStore is the Postgres profile shadow store.
type PGStore struct {
	db *sql.DB
}

var _ ProfileStore = (*PGStore)(nil)

// OpenPG opens a pooled connection for the profile store.
func OpenPG(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PGStore{db: db}, nil
}

// NewPGStore wraps an existing handle (tests, shared pools).
func NewPGStore(db *sql.DB) *PGStore { return &PGStore{db: db} }

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) DB() *sql.DB { return s.db }

// Upsert creates or refreshes a profile without clobbering activity
// timestamps written by login/logout events.
func (s *PGStore) Upsert(ctx context.Context, p *Profile) error {
	_, err := s.db.ExecContext(ctx, `
		insert into care_profiles(user_id, email, full_name, role, created_at, updated_at)
		values ($1,$2,$3,$4, now(), now())
		on conflict (user_id) do update
		set email = excluded.email,
		    full_name = excluded.full_name,
		    role = excluded.role,
		    updated_at = now()
	`, p.UserID, p.Email, p.FullName, p.Role)
	return err
}

// RecordLogin stamps the last login. A stub profile is created when the
// login event outruns the registration event.
func (s *PGStore) RecordLogin(ctx context.Context, userID, email string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		insert into care_profiles(user_id, email, last_login_at, created_at, updated_at)
		values ($1,$2,$3, now(), now())
		on conflict (user_id) do update
		set last_login_at = greatest(coalesce(care_profiles.last_login_at, 'epoch'), excluded.last_login_at),
		    updated_at = now()
	`, userID, email, at.UTC())
	return err
}

// RecordLogout stamps the last logout, with the same stub-on-miss behavior.
func (s *PGStore) RecordLogout(ctx context.Context, userID, email string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		insert into care_profiles(user_id, email, last_logout_at, created_at, updated_at)
		values ($1,$2,$3, now(), now())
		on conflict (user_id) do update
		set last_logout_at = greatest(coalesce(care_profiles.last_logout_at, 'epoch'), excluded.last_logout_at),
		    updated_at = now()
	`, userID, email, at.UTC())
	return err
}

func (s *PGStore) FindByUserID(ctx context.Context, userID string) (*Profile, error) {
	var (
		p        Profile
		lastIn   sql.NullTime
		lastOut  sql.NullTime
		fullName sql.NullString
		role     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select user_id, email, full_name, role, last_login_at, last_logout_at, created_at, updated_at
		from care_profiles where user_id = $1
	`, userID).Scan(&p.UserID, &p.Email, &fullName, &role, &lastIn, &lastOut, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.FullName = fullName.String
	p.Role = role.String
	if lastIn.Valid {
		t := lastIn.Time
		p.LastLoginAt = &t
	}
	if lastOut.Valid {
		t := lastOut.Time
		p.LastLogoutAt = &t
	}
	return &p, nil
}
