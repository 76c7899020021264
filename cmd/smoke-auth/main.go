// Command smoke-auth exercises a running auth-api end to end:
// register, login, me, refresh, validate.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("CAREMESH_AUTH_URL")
	if base == "" {
		base = "http://localhost:8082"
	}

	client := &http.Client{Timeout: 10 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	email := fmt.Sprintf("smoke-%d@example.org", rand.Int63())
	password := "smoke-test-password"

	var tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := post(ctx, client, base+"/auth/register", map[string]string{
		"fullName": "Smoke Test",
		"email":    email,
		"password": password,
		"role":     "patient",
	}, "", &tokens); err != nil {
		log.Fatalf("register: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		log.Fatal("register: empty token pair")
	}

	if err := post(ctx, client, base+"/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "", &tokens); err != nil {
		log.Fatalf("login: %v", err)
	}

	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := get(ctx, client, base+"/auth/me", tokens.AccessToken, &me); err != nil {
		log.Fatalf("me: %v", err)
	}
	if me.Email != email {
		log.Fatalf("me: got email %q, want %q", me.Email, email)
	}

	var refreshed struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := post(ctx, client, base+"/auth/refresh-token", map[string]string{
		"refreshToken": tokens.RefreshToken,
	}, "", &refreshed); err != nil {
		log.Fatalf("refresh: %v", err)
	}
	if refreshed.AccessToken == "" {
		log.Fatal("refresh: empty access token")
	}
	if refreshed.RefreshToken != tokens.RefreshToken {
		log.Fatal("refresh: refresh token was rotated unexpectedly")
	}

	var validation struct {
		Valid bool   `json:"valid"`
		Email string `json:"email"`
	}
	if err := get(ctx, client, base+"/auth/validate", refreshed.AccessToken, &validation); err != nil {
		log.Fatalf("validate: %v", err)
	}
	if !validation.Valid || validation.Email != email {
		log.Fatalf("validate: unexpected result %+v", validation)
	}

	fmt.Printf("✅ auth smoke test passed: %s\n", email)
}

func post(ctx context.Context, client *http.Client, url string, body any, token string, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(client, req, token, out)
}

func get(ctx context.Context, client *http.Client, url, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return do(client, req, token, out)
}

func do(client *http.Client, req *http.Request, token string, out any) error {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
