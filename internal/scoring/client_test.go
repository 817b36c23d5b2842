package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postflow/internal/domain/models/content"
)

func TestClient_Score(t *testing.T) {
	var got ScoreRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/score", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ai_score": 12, "tov_score": 88}`))
	}))
	defer srv.Close()

	post := &content.Post{Title: "Launch", Content: "body", Platform: content.PlatformLinkedIn, Account: "@acme"}
	ai, tov, err := NewClient(srv.URL+"/", "key").Score(context.Background(), post)

	require.NoError(t, err)
	assert.Equal(t, 12, ai)
	assert.Equal(t, 88, tov)
	assert.Equal(t, ScoreRequest{Title: "Launch", Content: "body", Platform: "linkedin", Account: "@acme"}, got)
}

func TestClient_ScoreErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "boom"},
		{"missing score", http.StatusOK, `{"ai_score": 10}`},
		{"not json", http.StatusOK, `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, _, err := NewClient(srv.URL, "").Score(context.Background(), &content.Post{})
			assert.Error(t, err)
		})
	}
}
