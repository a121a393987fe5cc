package services

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/config"
)

func TestAuthenticate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	plain, err := NewAuthService(config.AuthConfig{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	hashed, err := NewAuthService(config.AuthConfig{Username: "ops", Password: "ignored", PasswordHash: string(hash)})
	if err != nil {
		t.Fatalf("NewAuthService(hash): %v", err)
	}

	tests := []struct {
		name     string
		svc      *AuthService
		username string
		password string
		expected error
	}{
		{"plain match", plain, "admin", "admin123", nil},
		{"wrong password", plain, "admin", "admin124", entities.ErrUnauthorized},
		{"wrong username", plain, "root", "admin123", entities.ErrUnauthorized},
		{"empty", plain, "", "", entities.ErrUnauthorized},
		{"hash match", hashed, "ops", "hashed-secret", nil},
		{"hash ignores plain password", hashed, "ops", "ignored", entities.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.svc.Authenticate(tt.username, tt.password); !errors.Is(err, tt.expected) {
				t.Errorf("Authenticate(%q, %q) = %v, expected %v", tt.username, tt.password, err, tt.expected)
			}
		})
	}

	if _, err := NewAuthService(config.AuthConfig{Username: "x", PasswordHash: "not-a-hash"}); err == nil {
		t.Error("NewAuthService accepted a malformed hash")
	}
}
