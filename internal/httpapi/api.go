package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/redis/go-redis/v9"

	"caremesh.org/internal/auth"
	"caremesh.org/internal/obs"
)

// ReadyProbe checks the dependencies a service needs before taking traffic.
type ReadyProbe struct {
	DB    *sql.DB
	Redis *redis.Client
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Redis != nil {
		if err := rp.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// API is the HTTP layer of the issuing service.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	svc        *auth.Service
	verifier   auth.Verifier
}

// New wires the auth endpoints. The verifier is the local-trust variant in
// every deployment of this service; it is injected so tests can substitute
// their own.
func New(svc *auth.Service, verifier auth.Verifier, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		svc:        svc,
		verifier:   verifier,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/auth/register", a.handleRegister)
	a.mux.HandleFunc("/auth/login", a.handleLogin)
	a.mux.HandleFunc("/auth/refresh-token", a.handleRefresh)
	a.mux.Handle("/auth/logout", RequireAuth(http.HandlerFunc(a.handleLogout)))
	a.mux.Handle("/auth/me", RequireAuth(http.HandlerFunc(a.handleMe)))
	a.mux.Handle("/auth/validate", RequireAuth(http.HandlerFunc(a.handleValidate)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain. The authentication gate wraps the
// whole mux and runs once per request, before any business logic.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = Authenticate(a.verifier)(h)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = RateLimit(h, 20, 10)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "caremesh-auth-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"service": "caremesh-auth-api",
		"version": a.version,
	})
}
