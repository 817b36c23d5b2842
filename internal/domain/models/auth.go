package models

import "github.com/golang-jwt/jwt/v5"

// SupabaseClaims is the subset of a Supabase Auth access token the service
// reads. The subject is the user id that profiles are keyed by.
type SupabaseClaims struct {
	jwt.RegisteredClaims
	Email       string         `json:"email"`
	Role        string         `json:"role"` // "authenticated" or "anon"
	SessionID   string         `json:"session_id"`
	IsAnonymous bool           `json:"is_anonymous"`
	AppMetadata map[string]any `json:"app_metadata"`
}

// GetUserID returns the user id from the subject claim.
func (c *SupabaseClaims) GetUserID() string {
	return c.Subject
}
