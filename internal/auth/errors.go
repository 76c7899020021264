package auth

import "errors"

var (
	ErrNotFound             = errors.New("auth: not found")
	ErrInvalidInput         = errors.New("auth: invalid input")
	ErrDuplicateIdentity    = errors.New("auth: identity already exists")
	ErrAuthenticationFailed = errors.New("auth: authentication failed")
	ErrUnauthorized         = errors.New("auth: unauthorized")

	// ErrInvalidToken covers malformed, forged and expired tokens. The split
	// below exists for logging and tests; callers surface only ErrInvalidToken.
	ErrInvalidToken = errors.New("auth: invalid token")

	ErrSubjectNotResolvable = errors.New("auth: token subject not resolvable")
)
