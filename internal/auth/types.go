package auth

import "time"

// User represents an identity held by the credential store. The password hash
// never leaves this package.
type User struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenPair carries the credentials returned by register, login and refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
