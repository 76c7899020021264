package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PGStore is the Postgres credential store.
type PGStore struct {
	db *sql.DB
}

var _ UserStore = (*PGStore)(nil)

// OpenPG opens a pooled connection for the credential store.
func OpenPG(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PGStore{db: db}, nil
}

// NewPGStore wraps an existing handle (tests, shared pools).
func NewPGStore(db *sql.DB) *PGStore { return &PGStore{db: db} }

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) DB() *sql.DB { return s.db }

// Create inserts a new identity. The unique index on email makes the insert
// atomic with respect to concurrent registrations.
func (s *PGStore) Create(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		insert into users(id, full_name, email, password_hash, role, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, u.ID, u.FullName, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt, u.UpdatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == "23505" {
		return ErrDuplicateIdentity
	}
	return err
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, `
		select id, full_name, email, password_hash, role, created_at, updated_at
		from users where email = $1
	`, email)
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*User, error) {
	return s.findOne(ctx, `
		select id, full_name, email, password_hash, role, created_at, updated_at
		from users where id = $1
	`, id)
}

func (s *PGStore) findOne(ctx context.Context, query, arg string) (*User, error) {
	var (
		u    User
		role string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	if err == nil {
		return nil, false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
