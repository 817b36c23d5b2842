package auth

import "postflow/internal/domain/models"

// JWTVerifier validates bearer tokens. The HTTP auth middleware depends on
// this interface only.
type JWTVerifier interface {
	// VerifyToken returns the token's claims, or domain.ErrUnauthorized when
	// it is malformed, expired, badly signed or anonymous.
	VerifyToken(tokenString string) (*models.SupabaseClaims, error)

	Close() error
}
