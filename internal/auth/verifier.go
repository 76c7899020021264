package auth

import (
	"context"
	"errors"

	"caremesh.org/internal/obs"
)

// Verifier resolves a bearer token to an authenticated identity. Exactly one
// implementation is chosen per service instance at startup: LocalVerifier on
// the issuing service, the remote variant on services that hold neither the
// signing secret nor the credential store. The two are never mixed per
// request.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (*User, error)
}

// LocalVerifier verifies tokens with the shared secret and resolves subjects
// against this service's own credential store.
type LocalVerifier struct {
	codec *Codec
	store UserStore
}

func NewLocalVerifier(codec *Codec, store UserStore) *LocalVerifier {
	return &LocalVerifier{codec: codec, store: store}
}

func (v *LocalVerifier) VerifyToken(ctx context.Context, token string) (*User, error) {
	claims, err := v.codec.Verify(token, TokenKindAccess)
	if err != nil {
		obs.TokenValidations.WithLabelValues("local", "invalid").Inc()
		return nil, err
	}
	user, err := v.store.FindByEmail(ctx, claims.Subject)
	if err != nil {
		obs.TokenValidations.WithLabelValues("local", "unresolvable").Inc()
		if errors.Is(err, ErrNotFound) {
			// Stale or foreign token whose subject no longer exists.
			return nil, ErrSubjectNotResolvable
		}
		return nil, err
	}
	obs.TokenValidations.WithLabelValues("local", "ok").Inc()
	return user, nil
}
