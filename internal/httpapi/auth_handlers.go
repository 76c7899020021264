package httpapi

import (
	"errors"
	"net/http"
	"time"

	"caremesh.org/internal/audit"
	"caremesh.org/internal/auth"
)

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

type userInfoResponse struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type validationResponse struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, ok := auth.ParseRole(req.Role)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "unknown role")
		return
	}
	pair, err := a.svc.Register(r.Context(), auth.Registration{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateIdentity):
			WriteError(w, r, http.StatusConflict, "email already in use")
		case errors.Is(err, auth.ErrInvalidInput):
			WriteError(w, r, http.StatusBadRequest, "email and password are required")
		default:
			WriteError(w, r, http.StatusInternalServerError, "registration failed")
		}
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.user.registered", map[string]any{"email": req.Email, "role": string(role)})
	WriteJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Unknown user and wrong password produce the same response.
		if errors.Is(err, auth.ErrAuthenticationFailed) {
			WriteError(w, r, http.StatusUnauthorized, "authentication failed")
			return
		}
		WriteError(w, r, http.StatusInternalServerError, "authentication failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.user.login", map[string]any{"email": req.Email})
	WriteJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		// Expired, forged and malformed all collapse to one answer.
		if errors.Is(err, auth.ErrInvalidToken) {
			WriteError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		WriteError(w, r, http.StatusInternalServerError, "token refresh failed")
		return
	}
	WriteJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	user, _ := auth.UserFromContext(r.Context())
	if err := a.svc.Logout(r.Context(), user); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "logout failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.user.logout", nil)
	WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, _ := auth.UserFromContext(r.Context())
	WriteJSON(w, http.StatusOK, userInfoResponse{
		ID:       user.ID,
		FullName: user.FullName,
		Email:    user.Email,
		Role:     string(user.Role),
	})
}

// handleValidate vouches for a peer-submitted token. Reaching this handler
// means the gate already verified the bearer credential; an invalid token
// never gets past RequireAuth.
func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, _ := auth.UserFromContext(r.Context())
	WriteJSON(w, http.StatusOK, validationResponse{
		Valid:  true,
		UserID: user.ID,
		Email:  user.Email,
	})
}

func toTokenResponse(pair auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt.UTC(),
		RefreshExpiresAt: pair.RefreshExpiresAt.UTC(),
	}
}
