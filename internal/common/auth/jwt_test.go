package auth

import (
	"testing"
	"time"

	"github.com/TallerLink/TallerLink/internal/common/config"
)

func TestGenerateAndParseAccessToken(t *testing.T) {
	cfg := config.AuthConfig{
		JWTSecret: "test-secret",
		Issuer:    "tallerlink",
		Audience:  "taller-service",
	}

	token, expiresAt, err := GenerateAccessToken(cfg, "admin-001", "admin", time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.Subject != "admin-001" || claims.Rol != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := ParseAccessToken(config.AuthConfig{JWTSecret: "other"}, token); err == nil {
		t.Fatalf("expected wrong secret to fail")
	}
}

func TestGenerateAccessTokenRequiresSubjectAndSecret(t *testing.T) {
	if _, _, err := GenerateAccessToken(config.AuthConfig{JWTSecret: "x"}, "", "admin", time.Hour); err == nil {
		t.Fatalf("expected empty subject to fail")
	}
	if _, _, err := GenerateAccessToken(config.AuthConfig{}, "admin-001", "admin", time.Hour); err == nil {
		t.Fatalf("expected empty secret to fail")
	}
}

func TestFromAuthorizationHeader(t *testing.T) {
	if got := FromAuthorizationHeader("Bearer abc.def"); got != "abc.def" {
		t.Fatalf("expected token, got %q", got)
	}
	if got := FromAuthorizationHeader("Basic abc"); got != "" {
		t.Fatalf("expected empty for non-bearer, got %q", got)
	}
}
