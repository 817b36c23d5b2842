package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"postflow/internal/domain"
	"postflow/internal/domain/services"
	"postflow/internal/httputil"
)

// RequireBoardAccess rejects authenticated users who are not team members.
// Public paths pass through untouched.
func RequireBoardAccess(authz services.BoardAuthorizer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if err := authz.CanAccessBoard(r.Context(), httputil.GetUserID(r)); err != nil {
				if errors.Is(err, domain.ErrForbidden) {
					httputil.RespondError(w, http.StatusForbidden, "not a member of this board")
					return
				}
				logger.Error("board access check failed", "error", err)
				httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
