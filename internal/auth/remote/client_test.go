package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"caremesh.org/internal/auth"
)

func peerServer(t *testing.T, validateStatus int, validateBody string, meStatus int, meBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("unexpected Authorization header: %q", got)
		}
		w.WriteHeader(validateStatus)
		_, _ = w.Write([]byte(validateBody))
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(meStatus)
		_, _ = w.Write([]byte(meBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestValidateSuccess(t *testing.T) {
	srv := peerServer(t, http.StatusOK, `{"valid":true,"userId":"u-1","email":"a@example.org"}`, http.StatusOK, `{}`)
	client := New(srv.URL, 0, 0)

	v := client.Validate(context.Background(), "token-1")
	if !v.Valid || v.UserID != "u-1" || v.Email != "a@example.org" {
		t.Fatalf("unexpected validation: %+v", v)
	}
}

func TestValidateFailuresCollapseToInvalid(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		srv := peerServer(t, http.StatusInternalServerError, `boom`, http.StatusOK, `{}`)
		client := New(srv.URL, 0, 0)
		if v := client.Validate(context.Background(), "token-1"); v.Valid {
			t.Fatalf("expected invalid, got %+v", v)
		}
	})

	t.Run("undecodable body", func(t *testing.T) {
		srv := peerServer(t, http.StatusOK, `not json`, http.StatusOK, `{}`)
		client := New(srv.URL, 0, 0)
		if v := client.Validate(context.Background(), "token-1"); v.Valid {
			t.Fatalf("expected invalid, got %+v", v)
		}
	})

	t.Run("unreachable peer", func(t *testing.T) {
		client := New("http://127.0.0.1:1", time.Second, time.Second)
		start := time.Now()
		if v := client.Validate(context.Background(), "token-1"); v.Valid {
			t.Fatalf("expected invalid, got %+v", v)
		}
		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Fatalf("validate blocked too long: %v", elapsed)
		}
	})
}

func TestFetchIdentitySuccess(t *testing.T) {
	srv := peerServer(t, http.StatusOK, `{}`, http.StatusOK,
		`{"id":"u-2","fullName":"Bob","email":"b@example.org","role":"patient"}`)
	client := New(srv.URL, 0, 0)

	info, err := client.FetchIdentity(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("FetchIdentity: %v", err)
	}
	if info.ID != "u-2" || info.Role != "patient" {
		t.Fatalf("unexpected identity: %+v", info)
	}
}

func TestFetchIdentitySurfacesFailure(t *testing.T) {
	srv := peerServer(t, http.StatusOK, `{}`, http.StatusUnauthorized, `{}`)
	client := New(srv.URL, 0, 0)

	if _, err := client.FetchIdentity(context.Background(), "token-1"); !errors.Is(err, ErrPeerUnavailable) {
		t.Fatalf("expected ErrPeerUnavailable, got %v", err)
	}
}

func TestVerifierRejectsInvalidToken(t *testing.T) {
	srv := peerServer(t, http.StatusOK, `{"valid":false}`, http.StatusOK, `{}`)
	v := NewVerifier(New(srv.URL, 0, 0))

	if _, err := v.VerifyToken(context.Background(), "token-1"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected auth.ErrInvalidToken, got %v", err)
	}
}

func TestVerifierResolvesIdentity(t *testing.T) {
	srv := peerServer(t, http.StatusOK, `{"valid":true,"userId":"u-3","email":"c@example.org"}`, http.StatusOK,
		`{"id":"u-3","fullName":"Carol","email":"c@example.org","role":"clinician"}`)
	v := NewVerifier(New(srv.URL, 0, 0))

	user, err := v.VerifyToken(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if user.ID != "u-3" || user.Role != auth.RoleClinician {
		t.Fatalf("unexpected user: %+v", user)
	}
}
