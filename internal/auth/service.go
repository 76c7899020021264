package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"caremesh.org/internal/event"
	"caremesh.org/internal/ids"
	"caremesh.org/internal/obs"
)

const (
	defaultAccessTTL  = 24 * time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Service orchestrates credential verification and token issuance. It owns
// the only write path to the credential store and emits one identity event
// per state transition.
type Service struct {
	store  UserStore
	codec  *Codec
	events event.Publisher
	now    func() time.Time

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithPublisher wires the identity event publisher.
func WithPublisher(p event.Publisher) ServiceOption {
	return func(s *Service) error {
		if p != nil {
			s.events = p
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store UserStore, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	svc := &Service{
		store:      store,
		codec:      codec,
		events:     event.NopPublisher{},
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Registration carries the candidate identity supplied at sign-up.
type Registration struct {
	FullName string
	Email    string
	Password string
	Role     Role
}

// Register creates a new identity and issues its first token pair. The email
// must be unused; a duplicate leaves the existing record untouched.
func (s *Service) Register(ctx context.Context, reg Registration) (TokenPair, error) {
	email := normalizeEmail(reg.Email)
	if email == "" || reg.Password == "" {
		return TokenPair{}, ErrInvalidInput
	}
	role, ok := ParseRole(string(reg.Role))
	if !ok {
		return TokenPair{}, ErrInvalidInput
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		obs.AuthRegistrations.WithLabelValues("duplicate").Inc()
		return TokenPair{}, ErrDuplicateIdentity
	} else if !errors.Is(err, ErrNotFound) {
		return TokenPair{}, err
	}

	hash, err := HashPassword(reg.Password)
	if err != nil {
		return TokenPair{}, err
	}
	now := s.now().UTC()
	user := &User{
		ID:           ids.New(),
		FullName:     strings.TrimSpace(reg.FullName),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			// Lost a registration race; same outcome as the pre-check.
			obs.AuthRegistrations.WithLabelValues("duplicate").Inc()
			return TokenPair{}, ErrDuplicateIdentity
		}
		return TokenPair{}, err
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return TokenPair{}, err
	}
	s.emit(ctx, event.Registered(user.ID, user.Email, user.FullName, string(user.Role), s.now()))
	obs.AuthRegistrations.WithLabelValues("ok").Inc()
	return pair, nil
}

// Login verifies credentials and issues a fresh token pair. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		obs.AuthLogins.WithLabelValues("failed").Inc()
		return TokenPair{}, ErrAuthenticationFailed
	}
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		obs.AuthLogins.WithLabelValues("failed").Inc()
		return TokenPair{}, ErrAuthenticationFailed
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		obs.AuthLogins.WithLabelValues("failed").Inc()
		return TokenPair{}, ErrAuthenticationFailed
	}
	pair, err := s.issuePair(user)
	if err != nil {
		return TokenPair{}, err
	}
	s.emit(ctx, event.LoggedIn(user.ID, user.Email, s.now()))
	obs.AuthLogins.WithLabelValues("ok").Inc()
	return pair, nil
}

// Refresh issues a new access token against a valid refresh token. The
// refresh token itself is not rotated: the caller keeps presenting the same
// one until it expires. The underlying credential is not re-checked; only the
// token's validity and the subject's continued existence are.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken, TokenKindRefresh)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	user, err := s.store.FindByEmail(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	access, accessExp, err := s.codec.Issue(user.Email, user.Role, TokenKindAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	s.emit(ctx, event.TokenRefreshed(user.ID, user.Email, s.now()))
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: claims.ExpiresAt,
	}, nil
}

// Logout emits the user.loggedOut event. Bearer tokens are self-contained and
// stay valid until expiry; downstream services react to the event instead.
func (s *Service) Logout(ctx context.Context, user *User) error {
	if user == nil {
		return ErrUnauthorized
	}
	s.emit(ctx, event.LoggedOut(user.ID, user.Email, s.now()))
	return nil
}

// UserInfo resolves an identity by its login identifier.
func (s *Service) UserInfo(ctx context.Context, email string) (*User, error) {
	return s.store.FindByEmail(ctx, normalizeEmail(email))
}

func (s *Service) issuePair(user *User) (TokenPair, error) {
	access, accessExp, err := s.codec.Issue(user.Email, user.Role, TokenKindAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.codec.Issue(user.Email, user.Role, TokenKindRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// emit publishes an identity event. Publish failures are logged and never
// fail the auth operation; the event path is best-effort from the caller's
// perspective, at-least-once from the broker's.
func (s *Service) emit(ctx context.Context, evt event.Identity) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		obs.Warn("identity event publish failed", map[string]any{
			"topic":   evt.Topic(),
			"user_id": evt.UserID,
			"error":   err.Error(),
		})
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
