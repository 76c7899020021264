package auth

import "context"

// UserStore describes the credential store operations required by the auth
// subsystem. Concurrency safety is delegated to the implementation; Create
// must be atomic so concurrent registrations cannot both succeed.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
}
