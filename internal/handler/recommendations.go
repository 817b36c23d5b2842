package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"postflow/internal/domain/models/content"
	"postflow/internal/httputil"
	"postflow/internal/service/advisor"
)

const (
	defaultSuggestions = 5
	maxSuggestions     = 50
)

// Advisor rates publish instants. *advisor.Advisor satisfies it.
type Advisor interface {
	Recommend(platform content.Platform, at time.Time) (advisor.Recommendation, error)
	NextRecommendedTimes(platform content.Platform, from time.Time, n int) ([]advisor.Recommendation, error)
	Location() *time.Location
}

// RecommendationHandler serves posting-time advice.
type RecommendationHandler struct {
	advisor Advisor
	now     func() time.Time
	logger  *slog.Logger
}

// NewRecommendationHandler creates a new recommendation handler
func NewRecommendationHandler(a Advisor, logger *slog.Logger) *RecommendationHandler {
	return &RecommendationHandler{advisor: a, now: time.Now, logger: logger}
}

// Recommend rates one instant.
// GET /api/recommendations?platform=instagram&at=2025-03-11T11:30:00Z
//
// at also accepts human forms such as "2025-03-11 11:30", read in the
// advisor's timezone.
func (h *RecommendationHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	platform, ok := h.platform(w, r)
	if !ok {
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("at"))
	if raw == "" {
		httputil.RespondError(w, http.StatusBadRequest, "at is required")
		return
	}
	at, err := dateparse.ParseIn(raw, h.advisor.Location())
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("invalid at %q", raw))
		return
	}

	rec, err := h.advisor.Recommend(platform, at)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.RespondJSON(w, http.StatusOK, rec)
}

// NextTimes suggests upcoming slots, best first.
// GET /api/recommendations/next?platform=linkedin&n=5&from=...
func (h *RecommendationHandler) NextTimes(w http.ResponseWriter, r *http.Request) {
	platform, ok := h.platform(w, r)
	if !ok {
		return
	}

	n := defaultSuggestions
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			httputil.RespondError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = min(v, maxSuggestions)
	}

	from := h.now()
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		t, err := dateparse.ParseIn(raw, h.advisor.Location())
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("invalid from %q", raw))
			return
		}
		from = t
	}

	recs, err := h.advisor.NextRecommendedTimes(platform, from, n)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.RespondJSON(w, http.StatusOK, recs)
}

func (h *RecommendationHandler) platform(w http.ResponseWriter, r *http.Request) (content.Platform, bool) {
	p := content.Platform(strings.ToLower(r.URL.Query().Get("platform")))
	if !p.Valid() {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("unknown platform %q", p))
		return "", false
	}
	return p, true
}
