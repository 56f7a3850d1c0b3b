package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/you/findmyseat/domain"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestTokenInspector_Inspect(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	inspector := NewTokenInspector(func() time.Time { return now })

	tests := []struct {
		name          string
		token         string
		expectedError error
		expectedSub   string
		expectedRole  string
	}{
		{
			name:          "empty token",
			token:         "",
			expectedError: domain.ErrNoToken,
		},
		{
			name:  "opaque token accepted",
			token: "opaque-session-token",
		},
		{
			name: "valid jwt",
			token: signToken(t, jwt.MapClaims{
				"sub":  "42",
				"role": "user",
				"exp":  now.Add(time.Hour).Unix(),
			}),
			expectedSub:  "42",
			expectedRole: "user",
		},
		{
			name: "numeric user_id claim",
			token: signToken(t, jwt.MapClaims{
				"user_id": 7,
				"role":    "admin",
				"exp":     now.Add(time.Minute).Unix(),
			}),
			expectedSub:  "7",
			expectedRole: "admin",
		},
		{
			name: "jwt without exp never expires client-side",
			token: signToken(t, jwt.MapClaims{
				"sub": "1",
			}),
			expectedSub: "1",
		},
		{
			name: "expired jwt",
			token: signToken(t, jwt.MapClaims{
				"sub": "42",
				"exp": now.Add(-time.Second).Unix(),
			}),
			expectedError: domain.ErrTokenExpired,
		},
		{
			name:          "garbage with dots",
			token:         "a.b.c",
			expectedError: domain.ErrTokenMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := inspector.Inspect(tt.token)
			if tt.expectedError != nil {
				if !errors.Is(err, tt.expectedError) {
					t.Fatalf("expected error %v, got %v", tt.expectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if claims.Subject != tt.expectedSub {
				t.Errorf("expected subject %q, got %q", tt.expectedSub, claims.Subject)
			}
			if claims.Role != tt.expectedRole {
				t.Errorf("expected role %q, got %q", tt.expectedRole, claims.Role)
			}
		})
	}
}
