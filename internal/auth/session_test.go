package auth

import (
	"strings"
	"testing"
	"time"
)

func TestSessionService_IssueAndValidate(t *testing.T) {
	svc := NewSessionService("test-session-secret-32-chars-long!", time.Hour)

	token, err := svc.Issue("admin-1", "admin@example.com", "admin")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if token == "" {
		t.Fatal("Issue() returned empty token")
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if claims.AdminID != "admin-1" {
		t.Errorf("AdminID = %q, want admin-1", claims.AdminID)
	}
	if claims.Email != "admin@example.com" {
		t.Errorf("Email = %q, want admin@example.com", claims.Email)
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q, want admin", claims.Role)
	}
	if claims.Subject != "admin-1" {
		t.Errorf("Subject = %q, want admin-1", claims.Subject)
	}
}

func TestSessionService_RejectsWrongSecret(t *testing.T) {
	issuer := NewSessionService("secret-one-abcdefghijklmnopqrstuv", time.Hour)
	verifier := NewSessionService("secret-two-abcdefghijklmnopqrstuv", time.Hour)

	token, err := issuer.Issue("admin-1", "admin@example.com", "admin")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if _, err := verifier.Validate(token); err == nil {
		t.Error("Validate() expected error for wrong secret, got nil")
	}
}

func TestSessionService_RejectsExpiredToken(t *testing.T) {
	svc := NewSessionService("test-session-secret-32-chars-long!", -time.Minute)

	token, err := svc.Issue("admin-1", "admin@example.com", "operator")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if _, err := svc.Validate(token); err == nil {
		t.Error("Validate() expected error for expired token, got nil")
	}
}

func TestSessionService_RejectsGarbage(t *testing.T) {
	svc := NewSessionService("test-session-secret-32-chars-long!", time.Hour)

	for _, token := range []string{"", "not.a.jwt", "aaaa.bbbb.cccc"} {
		if _, err := svc.Validate(token); err == nil {
			t.Errorf("Validate(%q) expected error, got nil", token)
		}
	}
}

func TestSessionService_DefaultTTL(t *testing.T) {
	svc := NewSessionService("test-session-secret-32-chars-long!", 0)

	token, err := svc.Issue("admin-1", "admin@example.com", "admin")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining < 11*time.Hour || remaining > 13*time.Hour {
		t.Errorf("default ttl ≈ %v, want about 12h", remaining)
	}
}

func TestSessionToken_HasThreeSegments(t *testing.T) {
	svc := NewSessionService("test-session-secret-32-chars-long!", time.Hour)
	token, err := svc.Issue("admin-1", "admin@example.com", "admin")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if got := len(strings.Split(token, ".")); got != 3 {
		t.Errorf("token segments = %d, want 3", got)
	}
}
