package workflow

import (
	"strings"

	"postflow/internal/config"
	"postflow/internal/domain"
	"postflow/internal/domain/models/content"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Submission guard messages, shown to the author verbatim.
const (
	ReasonTitleRequired   = "Title is required"
	ReasonContentTooShort = "Content must be at least 50 characters"
	ReasonAccountRequired = "Account is required"
	ReasonAIScoreTooHigh  = "AI score must be below 60"
	ReasonTOVScoreTooLow  = "Tone of voice score must be at least 70"
)

// guardCheck is one submission rule. Rules run in declaration order and the
// first failure is reported.
type guardCheck struct {
	value any
	rules []validation.Rule
}

// ValidateSubmission checks whether a draft may leave for review. It returns a
// *domain.ValidationError carrying the first unmet rule's reason.
func ValidateSubmission(p *content.Post) error {
	checks := []guardCheck{
		{strings.TrimSpace(p.Title), []validation.Rule{
			validation.Required.Error(ReasonTitleRequired),
		}},
		{strings.TrimSpace(p.Content), []validation.Rule{
			validation.Required.Error(ReasonContentTooShort),
			validation.RuneLength(config.MinContentLength, 0).Error(ReasonContentTooShort),
		}},
		{strings.TrimSpace(p.Account), []validation.Rule{
			validation.Required.Error(ReasonAccountRequired),
		}},
		{p.AIScore, []validation.Rule{
			validation.Max(config.MaxAIScore).Exclusive().Error(ReasonAIScoreTooHigh),
		}},
		// Min skips the zero value, so an unscored post (0) passes
		{p.TOVScore, []validation.Rule{
			validation.Min(config.MinTOVScore).Error(ReasonTOVScoreTooLow),
		}},
	}

	for _, c := range checks {
		if err := validation.Validate(c.value, c.rules...); err != nil {
			return &domain.ValidationError{Message: err.Error()}
		}
	}
	return nil
}
