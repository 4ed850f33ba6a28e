package models

import "time"

type QuestionType string

const (
	QuestionText           QuestionType = "text"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionYesNo          QuestionType = "yes_no"
	QuestionRating         QuestionType = "rating"
	QuestionNumber         QuestionType = "number"
	QuestionDate           QuestionType = "date"
	QuestionEmail          QuestionType = "email"
	QuestionPhone          QuestionType = "phone"
)

func (t QuestionType) IsValid() bool {
	switch t {
	case QuestionText, QuestionMultipleChoice, QuestionYesNo, QuestionRating,
		QuestionNumber, QuestionDate, QuestionEmail, QuestionPhone:
		return true
	}
	return false
}

// Question belongs to a survey. OrderNumber is unique within the survey and
// defines the order questions are asked in.
type Question struct {
	ID                     uint             `gorm:"primaryKey" json:"id"`
	SurveyID               uint             `gorm:"not null;uniqueIndex:idx_questions_survey_order" json:"survey_id"`
	QuestionText           string           `gorm:"type:text;not null" json:"question_text"`
	QuestionTranslations   LocalizedText    `gorm:"serializer:json;type:text" json:"question_translations,omitempty"`
	QuestionType           QuestionType     `gorm:"size:30;not null" json:"question_type"`
	OrderNumber            int              `gorm:"not null;uniqueIndex:idx_questions_survey_order" json:"order_number"`
	IsRequired             bool             `json:"is_required"`
	IsConditional          bool             `json:"is_conditional"`
	ConditionalLogic       map[string]any   `gorm:"serializer:json;type:text" json:"conditional_logic,omitempty"`
	Options                []string         `gorm:"serializer:json;type:text" json:"options,omitempty"`
	OptionsTranslations    LocalizedOptions `gorm:"serializer:json;type:text" json:"options_translations,omitempty"`
	MinLength              *int             `json:"min_length,omitempty"`
	MaxLength              *int             `json:"max_length,omitempty"`
	AIClarificationEnabled bool             `json:"ai_clarification_enabled"`
	ClarificationPrompts   LocalizedText    `gorm:"serializer:json;type:text" json:"clarification_prompts,omitempty"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// TextIn returns the question text in lang, falling back to QuestionText
func (q *Question) TextIn(lang string) string {
	return q.QuestionTranslations.Resolve(lang, q.QuestionText)
}

// OptionsIn returns the answer options in lang, falling back to Options
func (q *Question) OptionsIn(lang string) []string {
	return q.OptionsTranslations.Resolve(lang, q.Options)
}

// ClarificationPromptIn returns the re-ask prompt for lang, or "" when the
// question has none
func (q *Question) ClarificationPromptIn(lang string) string {
	return q.ClarificationPrompts.Resolve(lang, q.ClarificationPrompts[DefaultLanguage])
}

func (q *Question) Validate() error {
	if q.QuestionText == "" {
		return NewValidationError("question_text", "must not be empty")
	}
	if !q.QuestionType.IsValid() {
		return NewValidationError("question_type", "unknown type "+string(q.QuestionType))
	}
	if q.OrderNumber < 1 {
		return NewValidationError("order_number", "must be at least 1")
	}
	if q.MinLength != nil && *q.MinLength < 0 {
		return NewValidationError("min_length", "must not be negative")
	}
	if q.MaxLength != nil && *q.MaxLength < 0 {
		return NewValidationError("max_length", "must not be negative")
	}
	if q.MinLength != nil && q.MaxLength != nil && *q.MinLength > *q.MaxLength {
		return NewValidationError("min_length", "must not exceed max_length")
	}
	if q.QuestionType == QuestionMultipleChoice && len(q.Options) == 0 {
		return NewValidationError("options", "multiple_choice questions need options")
	}
	for lang := range q.QuestionTranslations {
		if !IsSupportedLanguage(lang) {
			return NewValidationError("question_translations", "unsupported language "+lang)
		}
	}
	return nil
}
