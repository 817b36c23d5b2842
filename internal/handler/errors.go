package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"postflow/internal/domain"
	"postflow/internal/httputil"
)

// handleError converts domain errors to RFC 7807 responses. Typed domain
// errors carry their own status; wrapped sentinels are matched after that.
func handleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var (
		mutationErr   *domain.MutationError
		transitionErr *domain.TransitionError
		httpErr       domain.HTTPError
	)

	switch {
	case errors.As(err, &mutationErr):
		// Local state was already rolled back; the client should refetch
		httputil.RespondErrorWithExtras(w, mutationErr.StatusCode(), mutationErr.Error(), map[string]any{
			"op": mutationErr.Op,
		})
	case errors.As(err, &transitionErr):
		httputil.RespondErrorWithExtras(w, transitionErr.StatusCode(), transitionErr.Error(), map[string]any{
			"post_id": transitionErr.PostID,
			"from":    transitionErr.From,
		})
	case errors.As(err, &httpErr):
		httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("unhandled request error", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
