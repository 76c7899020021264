package remote

import (
	"context"

	"caremesh.org/internal/auth"
	"caremesh.org/internal/obs"
)

// Verifier adapts Client to the auth.Verifier capability for services running
// in delegated-trust mode.
type Verifier struct {
	client *Client
}

var _ auth.Verifier = (*Verifier)(nil)

func NewVerifier(client *Client) *Verifier { return &Verifier{client: client} }

// VerifyToken validates the token with the issuing service, then fetches the
// subject's identity. Any failure means "not authenticated" to the gate.
func (v *Verifier) VerifyToken(ctx context.Context, token string) (*auth.User, error) {
	if result := v.client.Validate(ctx, token); !result.Valid {
		obs.TokenValidations.WithLabelValues("remote", "invalid").Inc()
		return nil, auth.ErrInvalidToken
	}
	info, err := v.client.FetchIdentity(ctx, token)
	if err != nil {
		obs.TokenValidations.WithLabelValues("remote", "peer_unavailable").Inc()
		return nil, err
	}
	role, _ := auth.ParseRole(info.Role)
	obs.TokenValidations.WithLabelValues("remote", "ok").Inc()
	return &auth.User{
		ID:       info.ID,
		FullName: info.FullName,
		Email:    info.Email,
		Role:     role,
	}, nil
}
