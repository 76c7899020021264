package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes access tokens from refresh tokens. The kind claim
// is checked on every verification, so a long-lived refresh token can never
// pass as an access credential and vice versa.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

const defaultIssuer = "caremesh-auth"

// Fine-grained verification failures. All of them match ErrInvalidToken via
// errors.Is; HTTP responses must not reveal which one occurred.
var (
	ErrTokenMalformed   = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrSignatureInvalid = fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	ErrTokenExpired     = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrWrongTokenKind   = fmt.Errorf("%w: wrong token kind", ErrInvalidToken)
)

type tokenClaims struct {
	Kind TokenKind `json:"kind"`
	Role string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenClaims is the verified view of a token.
type TokenClaims struct {
	Subject   string
	Role      Role
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

// Codec issues and verifies HS256-signed bearer tokens. Symmetric signing is
// deliberate: every service holding the secret can verify tokens without a
// key-distribution protocol. The cost is that any holder of the secret can
// also forge tokens, which is scoped by who is allowed to hold it, not by
// this type.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// CodecOption configures Codec behavior.
type CodecOption func(*Codec)

// WithCodecIssuer overrides the issuer claim.
func WithCodecIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		if s := strings.TrimSpace(issuer); s != "" {
			c.issuer = s
		}
	}
}

// WithCodecClock overrides the time source (useful for tests).
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec. A missing secret is fatal for the process:
// nothing can be issued or verified until it is configured.
func NewCodec(secret []byte, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is not configured")
	}
	c := &Codec{secret: secret, issuer: defaultIssuer, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue produces a signed token with subject, kind and role claims,
// issued-at now and expiry now+lifetime.
func (c *Codec) Issue(subject string, role Role, kind TokenKind, lifetime time.Duration) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}
	if lifetime <= 0 {
		return "", time.Time{}, errors.New("auth: lifetime must be greater than zero")
	}
	now := c.now().UTC()
	exp := now.Add(lifetime)
	claims := tokenClaims{
		Kind: kind,
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses the token and checks signature, expiry and kind.
func (c *Codec) Verify(token string, want TokenKind) (TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenClaims{}, ErrTokenMalformed
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	parsed, err := parser.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return TokenClaims{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return TokenClaims{}, ErrSignatureInvalid
		default:
			return TokenClaims{}, ErrTokenMalformed
		}
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return TokenClaims{}, ErrTokenMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return TokenClaims{}, ErrTokenMalformed
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return TokenClaims{}, ErrTokenMalformed
	}
	if claims.Kind != want {
		return TokenClaims{}, ErrWrongTokenKind
	}
	role, _ := ParseRole(claims.Role)
	out := TokenClaims{
		Subject: claims.Subject,
		Role:    role,
		Kind:    claims.Kind,
		ID:      claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
