package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestCodec(t *testing.T, opts ...CodecOption) *Codec {
	t.Helper()
	codec, err := NewCodec([]byte("test-secret"), opts...)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

func TestCodecIssueAndVerify(t *testing.T) {
	codec := newTestCodec(t)

	token, exp, err := codec.Issue("alice@example.org", RoleClinician, TokenKindAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected future expiry, got %v", exp)
	}

	claims, err := codec.Verify(token, TokenKindAccess)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "alice@example.org" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Role != RoleClinician {
		t.Fatalf("unexpected role: %s", claims.Role)
	}
	if claims.Kind != TokenKindAccess {
		t.Fatalf("unexpected kind: %s", claims.Kind)
	}
	if claims.ID == "" {
		t.Fatal("expected a token id")
	}
}

func TestCodecRequiresSecret(t *testing.T) {
	if _, err := NewCodec(nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestCodecRejectsWrongKind(t *testing.T) {
	codec := newTestCodec(t)

	refresh, _, err := codec.Issue("alice@example.org", RoleClinician, TokenKindRefresh, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = codec.Verify(refresh, TokenKindAccess)
	if !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("expected ErrWrongTokenKind, got %v", err)
	}
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected kind mismatch to match ErrInvalidToken, got %v", err)
	}
}

func TestCodecRejectsExpiredToken(t *testing.T) {
	current := time.Now()
	codec := newTestCodec(t, WithCodecClock(func() time.Time { return current }))

	token, _, err := codec.Issue("alice@example.org", RolePatient, TokenKindAccess, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	current = current.Add(2 * time.Minute)

	_, err = codec.Verify(token, TokenKindAccess)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expiry to match ErrInvalidToken, got %v", err)
	}
}

func TestCodecRejectsTamperedSignature(t *testing.T) {
	codec := newTestCodec(t)

	token, _, err := codec.Issue("alice@example.org", RolePatient, TokenKindAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other, err := NewCodec([]byte("different-secret"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	_, err = other.Verify(token, TokenKindAccess)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestCodecRejectsGarbage(t *testing.T) {
	codec := newTestCodec(t)
	for _, token := range []string{"", "   ", "not.a.jwt", strings.Repeat("x", 64)} {
		if _, err := codec.Verify(token, TokenKindAccess); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify(%q): expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestCodecRejectsForeignIssuer(t *testing.T) {
	issuerA := newTestCodec(t, WithCodecIssuer("service-a"))
	issuerB := newTestCodec(t, WithCodecIssuer("service-b"))

	token, _, err := issuerA.Issue("alice@example.org", RolePatient, TokenKindAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuerB.Verify(token, TokenKindAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected issuer mismatch rejection, got %v", err)
	}
}
