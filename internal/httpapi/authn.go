package httpapi

import (
	"fmt"
	"net/http"

	"caremesh.org/internal/auth"
	"caremesh.org/internal/obs"
)

// Authenticate is the per-request authentication gate. It extracts a bearer
// token, verifies it through the configured Verifier and binds the resolved
// identity to the request context.
//
// The gate never rejects. Requests without a token, with an unverifiable
// token, with an unresolvable subject, or hit by any fault inside the
// verifier proceed unauthenticated; route-level policy (RequireAuth,
// RequireRole) decides whether anonymous access is acceptable.
func Authenticate(v auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r.Header.Get("Authorization"))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			user, err := verifyToken(r, v, token)
			if err != nil {
				obs.Warn("request downgraded to anonymous", map[string]any{
					"path":  r.URL.Path,
					"error": err.Error(),
				})
				next.ServeHTTP(w, r)
				return
			}
			ctx := auth.ContextWithUser(r.Context(), user)
			ctx = auth.ContextWithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// verifyToken shields the request from verifier faults: a panic inside the
// verifier must degrade to "unauthenticated", never abort the request.
func verifyToken(r *http.Request, v auth.Verifier, token string) (user *auth.User, err error) {
	defer func() {
		if p := recover(); p != nil {
			user, err = nil, fmt.Errorf("verifier panic: %v", p)
		}
	}()
	return v.VerifyToken(r.Context(), token)
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFromContext(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="caremesh"`)
			WriteError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests whose identity does not carry the role:
// 401 when anonymous, 403 when authenticated with a different role.
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="caremesh"`)
				WriteError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if user.Role != role {
				w.Header().Set("WWW-Authenticate", `Bearer realm="caremesh"`)
				WriteError(w, r, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCapability enforces a role-derived capability.
func RequireCapability(cap auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="caremesh"`)
				WriteError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if !auth.HasCapability(user.Role, cap) {
				WriteError(w, r, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
