// Package remote lets a service without the signing secret establish trust in
// a token by asking the issuing service to vouch for it over HTTP.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"caremesh.org/internal/obs"
)

const (
	defaultConnectTimeout = 5 * time.Second
	defaultReadTimeout    = 10 * time.Second

	validatePath = "/auth/validate"
	userInfoPath = "/auth/me"
)

// ErrPeerUnavailable indicates the issuing service could not be reached or
// did not answer usefully.
var ErrPeerUnavailable = errors.New("remote: auth peer unavailable")

// Client calls the issuing service's verification endpoints. Both timeouts
// are mandatory: without them every request on the calling service would
// block on a partitioned peer.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a client for the peer at baseURL. Zero timeouts fall back
// to 5s connect / 10s read.
func New(baseURL string, connectTimeout, readTimeout time.Duration) *Client {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		MaxIdleConnsPerHost:   16,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: transport,
			Timeout:   connectTimeout + readTimeout,
		},
	}
}

// Validation mirrors the issuing service's /auth/validate response.
type Validation struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Validate asks the issuing service whether the token is valid and who its
// subject is. Transport failures, non-2xx statuses and undecodable bodies all
// come back as Valid=false: an unverifiable token and an invalid one are
// deliberately indistinguishable here, both mean "treat as unauthenticated".
func (c *Client) Validate(ctx context.Context, token string) Validation {
	resp, err := c.get(ctx, validatePath, token)
	if err != nil {
		obs.Warn("token validation call failed", map[string]any{"error": err.Error()})
		return Validation{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Validation{}
	}
	var v Validation
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		obs.Warn("token validation decode failed", map[string]any{"error": err.Error()})
		return Validation{}
	}
	return v
}

// IdentityInfo mirrors the issuing service's /auth/me response.
type IdentityInfo struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// FetchIdentity resolves the token's subject via the issuing service. Unlike
// Validate, failure surfaces as an error: the caller has already decided the
// token is valid and cannot silently downgrade to anonymous.
func (c *Client) FetchIdentity(ctx context.Context, token string) (IdentityInfo, error) {
	resp, err := c.get(ctx, userInfoPath, token)
	if err != nil {
		return IdentityInfo{}, fmt.Errorf("%w: %v", ErrPeerUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return IdentityInfo{}, fmt.Errorf("%w: status %d", ErrPeerUnavailable, resp.StatusCode)
	}
	var info IdentityInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return IdentityInfo{}, fmt.Errorf("%w: decode: %v", ErrPeerUnavailable, err)
	}
	return info, nil
}

func (c *Client) get(ctx context.Context, path, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}
