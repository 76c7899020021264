package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError responds with a JSON error body carrying the request id when one
// was assigned by the RequestID middleware.
func WriteError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	body := map[string]any{"error": msg}
	if rid := requestIDFrom(r); rid != "" {
		body["request_id"] = rid
	}
	WriteJSON(w, code, body)
}

// DecodeJSON reads a JSON request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	WriteError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

var errMissingBearer = errors.New("missing bearer token")

const bearerPrefix = "Bearer "

// bearerToken extracts the token from an Authorization header.
func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingBearer
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", errMissingBearer
	}
	return token, nil
}
