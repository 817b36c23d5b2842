package middleware

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"postflow/internal/domain"
	"postflow/internal/domain/models"
	"postflow/internal/httputil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeVerifier map[string]string

func (f fakeVerifier) VerifyToken(token string) (*models.SupabaseClaims, error) {
	sub, ok := f[token]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	c := &models.SupabaseClaims{}
	c.Subject = sub
	return c, nil
}

func (f fakeVerifier) Close() error { return nil }

// echoUser writes the actor id the chain resolved
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, httputil.GetUserID(r))
})

func TestAuthMiddleware(t *testing.T) {
	verifier := fakeVerifier{"good": "user-1"}

	tests := []struct {
		name     string
		dev      string
		path     string
		header   string
		wantCode int
		wantUser string
	}{
		{name: "valid header", path: "/api/posts", header: "Bearer good", wantCode: 200, wantUser: "user-1"},
		{name: "query token", path: "/api/posts/stream?access_token=good", wantCode: 200, wantUser: "user-1"},
		{name: "bad token", path: "/api/posts", header: "Bearer bad", wantCode: 401},
		{name: "wrong scheme", path: "/api/posts", header: "Basic good", wantCode: 401},
		{name: "missing", path: "/api/posts", wantCode: 401},
		{name: "health is public", path: "/health", wantCode: 200},
		{name: "dev bypass", dev: "dev-user", path: "/api/posts", wantCode: 200, wantUser: "dev-user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AuthMiddleware(verifier, tt.dev, discard)(echoUser)
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			if w.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode == 200 && w.Body.String() != tt.wantUser {
				t.Errorf("user = %q, want %q", w.Body.String(), tt.wantUser)
			}
		})
	}
}

type fakeAuthz map[string]error

func (f fakeAuthz) CanAccessBoard(_ context.Context, userID string) error {
	if err, ok := f[userID]; ok {
		return err
	}
	return nil
}

func TestRequireBoardAccess(t *testing.T) {
	authz := fakeAuthz{
		"stranger": fmt.Errorf("no role: %w", domain.ErrForbidden),
		"broken":   fmt.Errorf("db down"),
	}
	h := RequireBoardAccess(authz, discard)(echoUser)

	for user, want := range map[string]int{"member": 200, "stranger": 403, "broken": 500} {
		r := httputil.WithUserID(httptest.NewRequest(http.MethodGet, "/api/posts", nil), user)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != want {
			t.Errorf("%s: code = %d, want %d", user, w.Code, want)
		}
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(discard)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("code = %d, want 500", w.Code)
	}
}
