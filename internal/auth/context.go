package auth

import "context"

type ctxKey string

const (
	userKey  ctxKey = "auth_user"
	tokenKey ctxKey = "auth_token"
)

// ContextWithUser binds the authenticated identity to the request context.
// The binding lives for one request only and is never shared across requests.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext extracts the authenticated identity, if any.
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey).(*User)
	if !ok || u == nil {
		return nil, false
	}
	return u, true
}

// ContextWithToken keeps the raw bearer token available for outbound calls
// that need to forward the caller's credential to a peer service.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext returns the raw bearer token attached to the request.
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey).(string)
	if !ok || t == "" {
		return "", false
	}
	return t, true
}

// HasCapabilityCtx reports whether the authenticated identity, if present,
// holds the capability.
func HasCapabilityCtx(ctx context.Context, cap Capability) bool {
	u, ok := UserFromContext(ctx)
	if !ok {
		return false
	}
	return HasCapability(u.Role, cap)
}
