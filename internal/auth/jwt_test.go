package auth

import (
	"errors"
	"testing"
	"time"

	"learnly/config"
)

func jwtConfig() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret: "test-secret",
		AccessExpiry: time.Minute,
		Issuer:       "learnly",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := jwtConfig()
	token, err := GenerateAccessToken(cfg, 42, "user@example.com", "ADMIN")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "user@example.com" || claims.Role != "ADMIN" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseAccessTokenRejectsBadInput(t *testing.T) {
	cfg := jwtConfig()
	token, err := GenerateAccessToken(cfg, 1, "user@example.com", "LEARNER")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	other := &config.JWTConfig{AccessSecret: "different-secret", AccessExpiry: time.Minute}
	if _, err := ParseAccessToken(other, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret error = %v, want ErrInvalidToken", err)
	}
	if _, err := ParseAccessToken(cfg, "not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token error = %v, want ErrInvalidToken", err)
	}

	expired := &config.JWTConfig{AccessSecret: "test-secret", AccessExpiry: -time.Minute, Issuer: "learnly"}
	token, err = GenerateAccessToken(expired, 1, "user@example.com", "LEARNER")
	if err != nil {
		t.Fatalf("generate expired: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token error = %v, want ErrInvalidToken", err)
	}
}
