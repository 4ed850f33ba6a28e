package services

import (
	"fmt"
	"unicode/utf8"

	"survey-voice-api/models"
)

// ReasonRequired is returned for an empty answer to a required question
const ReasonRequired = "required"

// ValidationResult is the outcome of ValidateResponse. Reason is empty when
// Valid is true.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ValidateResponse checks an answer against the question's rules in order:
// required, min_length, max_length. Length counts characters, not bytes.
// It has no side effects.
func ValidateResponse(q *models.Question, text string) ValidationResult {
	if text == "" {
		if q.IsRequired {
			return ValidationResult{Valid: false, Reason: ReasonRequired}
		}
		return ValidationResult{Valid: true}
	}

	n := utf8.RuneCountInString(text)
	if q.MinLength != nil && n < *q.MinLength {
		return ValidationResult{Valid: false, Reason: fmt.Sprintf("response must be at least %d characters", *q.MinLength)}
	}
	if q.MaxLength != nil && n > *q.MaxLength {
		return ValidationResult{Valid: false, Reason: fmt.Sprintf("response must be at most %d characters", *q.MaxLength)}
	}
	return ValidationResult{Valid: true}
}
