// Package careapi is the HTTP layer of the downstream care service. It holds
// no signing secret: every bearer token is verified by delegation to the
// issuing service.
package careapi

import (
	"errors"
	"net/http"
	"time"

	"caremesh.org/internal/auth"
	"caremesh.org/internal/care"
	"caremesh.org/internal/httpapi"
	"caremesh.org/internal/obs"
)

// API serves the care service endpoints.
type API struct {
	mux        *http.ServeMux
	readyProbe httpapi.ReadyProbe
	version    string
	verifier   auth.Verifier
	profiles   care.ProfileStore
}

// New wires the care endpoints. The verifier is the delegated-trust variant
// in every deployment of this service.
func New(verifier auth.Verifier, profiles care.ProfileStore, rp httpapi.ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		verifier:   verifier,
		profiles:   profiles,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.Handle("/care/me", httpapi.RequireAuth(http.HandlerFunc(a.handleMe)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the delegated-trust gate.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = httpapi.Authenticate(a.verifier)(h)
	h = httpapi.MaxBodyBytes(h, 1<<20)
	h = httpapi.SecurityHeaders(h)
	h = httpapi.CORS(h)
	h = httpapi.RateLimit(h, 20, 10)
	h = httpapi.LoggingJSON(h)
	h = httpapi.RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "caremesh-care-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		httpapi.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type profileResponse struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	FullName    string `json:"fullName,omitempty"`
	Role        string `json:"role,omitempty"`
	LastLoginAt string `json:"lastLoginAt,omitempty"`
}

// handleMe returns the caller's mirrored profile. A 404 here is the visible
// edge of eventual consistency: the registration event has not been applied
// yet.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpapi.WriteError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, _ := auth.UserFromContext(r.Context())
	profile, err := a.profiles.FindByUserID(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, care.ErrNotFound) {
			httpapi.WriteError(w, r, http.StatusNotFound, "profile not provisioned yet")
			return
		}
		httpapi.WriteError(w, r, http.StatusInternalServerError, "profile lookup failed")
		return
	}
	resp := profileResponse{
		UserID:   profile.UserID,
		Email:    profile.Email,
		FullName: profile.FullName,
		Role:     profile.Role,
	}
	if profile.LastLoginAt != nil {
		resp.LastLoginAt = profile.LastLoginAt.UTC().Format(time.RFC3339)
	}
	httpapi.WriteJSON(w, http.StatusOK, resp)
}
