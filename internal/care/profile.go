// Package care holds the downstream service's local shadow of identity
// state, kept eventually consistent by the identity event consumer.
package care

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("care: not found")

// Profile mirrors an identity owned by the auth service. It is never
// authoritative; the event stream is the only writer.
type Profile struct {
	UserID       string
	Email        string
	FullName     string
	Role         string
	LastLoginAt  *time.Time
	LastLogoutAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProfileStore persists the identity shadow. Every write is keyed by user id
// and must be an upsert: events arrive at-least-once and may arrive out of
// order across topics, so a login can precede the registration it follows.
type ProfileStore interface {
	Upsert(ctx context.Context, p *Profile) error
	RecordLogin(ctx context.Context, userID, email string, at time.Time) error
	RecordLogout(ctx context.Context, userID, email string, at time.Time) error
	FindByUserID(ctx context.Context, userID string) (*Profile, error)
}
