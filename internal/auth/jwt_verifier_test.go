package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"postflow/internal/domain"
	"postflow/internal/domain/models"
)

func testVerifier(t *testing.T) (*SupabaseJWTVerifier, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	kf := func(*jwt.Token) (any, error) { return &key.PublicKey, nil }
	return newVerifier(kf, nil, slog.New(slog.NewTextHandler(io.Discard, nil))), key
}

func sign(t *testing.T, key *ecdsa.PrivateKey, claims *models.SupabaseClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func claimsFor(sub, role string, exp time.Time) *models.SupabaseClaims {
	return &models.SupabaseClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(exp)},
		Role:             role,
	}
}

func TestVerifyToken(t *testing.T) {
	v, key := testVerifier(t)
	later := time.Now().Add(time.Hour)

	tests := []struct {
		name    string
		token   func() string
		wantSub string
	}{
		{
			name:    "valid",
			token:   func() string { return sign(t, key, claimsFor("user-1", "authenticated", later)) },
			wantSub: "user-1",
		},
		{
			name:  "anonymous role",
			token: func() string { return sign(t, key, claimsFor("user-1", "anon", later)) },
		},
		{
			name:  "missing subject",
			token: func() string { return sign(t, key, claimsFor("", "authenticated", later)) },
		},
		{
			name:  "expired",
			token: func() string { return sign(t, key, claimsFor("user-1", "authenticated", time.Now().Add(-time.Minute))) },
		},
		{
			name: "symmetric algorithm",
			token: func() string {
				s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claimsFor("user-1", "authenticated", later)).SignedString([]byte("secret"))
				return s
			},
		},
		{
			name:  "garbage",
			token: func() string { return "not.a.token" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.VerifyToken(tt.token())
			if tt.wantSub == "" {
				if !errors.Is(err, domain.ErrUnauthorized) {
					t.Fatalf("err = %v, want ErrUnauthorized", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if claims.GetUserID() != tt.wantSub {
				t.Errorf("subject = %q, want %q", claims.GetUserID(), tt.wantSub)
			}
		})
	}
}
