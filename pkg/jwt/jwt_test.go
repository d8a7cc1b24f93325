package jwt

import (
	"testing"
	"time"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		expiration time.Duration
		secret     string
	}{
		{name: "access token", userID: "user-123", expiration: 15 * time.Minute, secret: "test-secret-key-32-characters!"},
		{name: "short expiration", userID: "user-456", expiration: time.Second, secret: "test-secret"},
		{name: "long expiration", userID: "user-789", expiration: 24 * time.Hour, secret: "test-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.userID, tt.expiration, tt.secret)
			if err != nil {
				t.Fatalf("GenerateToken() error = %v", err)
			}

			claims, err := ValidateToken(token, tt.secret)
			if err != nil {
				t.Fatalf("ValidateToken() error = %v", err)
			}
			if claims.UserID != tt.userID {
				t.Errorf("ValidateToken() userID = %v, want %v", claims.UserID, tt.userID)
			}
			if claims.Kind != "access" {
				t.Errorf("ValidateToken() kind = %v, want access", claims.Kind)
			}
		})
	}
}

func TestGenerateRefreshToken_Unique(t *testing.T) {
	first, err := GenerateRefreshToken("user-refresh-test", 7*24*time.Hour, "refresh-secret")
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	second, _ := GenerateRefreshToken("user-refresh-test", 7*24*time.Hour, "refresh-secret")

	if first == second {
		t.Error("GenerateRefreshToken() returned identical tokens for consecutive calls")
	}

	claims, err := ValidateToken(first, "refresh-secret")
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Kind != "refresh" {
		t.Errorf("ValidateToken() kind = %v, want refresh", claims.Kind)
	}
}

func TestValidateToken(t *testing.T) {
	secret := "validation-secret-key-32-chars"
	validToken, _ := GenerateToken("test-user-id", time.Hour, secret)
	expiredToken, _ := GenerateToken("test-user-id", -time.Hour, secret)

	tests := []struct {
		name    string
		token   string
		secret  string
		wantErr bool
	}{
		{name: "valid token", token: validToken, secret: secret, wantErr: false},
		{name: "expired token", token: expiredToken, secret: secret, wantErr: true},
		{name: "wrong secret", token: validToken, secret: "wrong-secret", wantErr: true},
		{name: "invalid token format", token: "invalid.token.format", secret: secret, wantErr: true},
		{name: "empty token", token: "", secret: secret, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(tt.token, tt.secret)
			if tt.wantErr && err == nil {
				t.Error("ValidateToken() expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateToken() error = %v", err)
			}
		})
	}
}

func TestExpiresAt(t *testing.T) {
	before := time.Now().Add(-time.Second)
	token, err := GenerateToken("user-1", time.Hour, "some-secret")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	after := time.Now().Add(time.Second)

	exp, err := ExpiresAt(token)
	if err != nil {
		t.Fatalf("ExpiresAt() error = %v", err)
	}
	if exp.Before(before.Add(time.Hour)) || exp.After(after.Add(time.Hour)) {
		t.Errorf("ExpiresAt() = %v, want within [%v, %v]", exp, before.Add(time.Hour), after.Add(time.Hour))
	}

	expired, _ := GenerateToken("user-1", -time.Hour, "some-secret")
	if _, err := ExpiresAt(expired); err != nil {
		t.Errorf("ExpiresAt() on expired token error = %v, want nil", err)
	}

	if _, err := ExpiresAt("T1"); err == nil {
		t.Error("ExpiresAt() expected error for opaque token")
	}
}
