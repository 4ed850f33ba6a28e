package models

import "time"

type SurveyStatus string

const (
	SurveyDraft     SurveyStatus = "draft"
	SurveyActive    SurveyStatus = "active"
	SurveyPaused    SurveyStatus = "paused"
	SurveyCompleted SurveyStatus = "completed"
)

var surveyTransitions = transitionTable[SurveyStatus]{
	SurveyDraft:  {SurveyActive},
	SurveyActive: {SurveyPaused, SurveyCompleted},
	SurveyPaused: {SurveyActive, SurveyCompleted},
}

func (s SurveyStatus) String() string { return string(s) }

func (s SurveyStatus) IsValid() bool {
	switch s {
	case SurveyDraft, SurveyActive, SurveyPaused, SurveyCompleted:
		return true
	}
	return false
}

func (s SurveyStatus) CanTransitionTo(next SurveyStatus) bool {
	return surveyTransitions.allows(s, next)
}

// Survey defaults applied by ApplyDefaults when a field is left zero
const (
	DefaultRetryAttempts       = 3
	DefaultRetryIntervalHours  = 24
	DefaultConfidenceThreshold = 70
	DefaultMaxQuestions        = 10
	DefaultEstimatedDuration   = 5
)

// Survey is the container for questions, contacts, responses and call logs.
// Children are removed with it.
type Survey struct {
	ID                     uint           `gorm:"primaryKey" json:"id"`
	Title                  string         `gorm:"not null" json:"title"`
	Description            string         `gorm:"type:text" json:"description"`
	CreatedBy              uint           `gorm:"index;not null" json:"created_by"`
	PrimaryLanguage        string         `gorm:"size:10;not null" json:"primary_language"`
	SupportedLanguages     []string       `gorm:"serializer:json;type:text" json:"supported_languages"`
	MaxQuestions           int            `json:"max_questions"`
	EstimatedDuration      int            `json:"estimated_duration"`
	CallSchedule           map[string]any `gorm:"serializer:json;type:text" json:"call_schedule,omitempty"`
	RetryAttempts          int            `gorm:"not null" json:"retry_attempts"`
	RetryInterval          int            `gorm:"not null" json:"retry_interval"`
	AIClarificationEnabled bool           `json:"ai_clarification_enabled"`
	AISummaryEnabled       bool           `json:"ai_summary_enabled"`
	ConfidenceThreshold    int            `gorm:"not null" json:"confidence_threshold"`
	Status                 SurveyStatus   `gorm:"size:20;index;not null" json:"status"`
	IsActive               bool           `json:"is_active"`
	ScheduledAt            *time.Time     `json:"scheduled_at,omitempty"`
	CompletedAt            *time.Time     `json:"completed_at,omitempty"`
	Version                int            `gorm:"not null;default:1" json:"version"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`

	Questions []Question `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Contacts  []Contact  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Responses []Response `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CallLogs  []CallLog  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Survey) TableName() string {
	return "surveys"
}

func (s *Survey) GetVersion() int { return s.Version }
func (s *Survey) BumpVersion() { s.Version++ }

// ApplyDefaults fills zero-valued settings for a survey about to be created
func (s *Survey) ApplyDefaults() {
	s.PrimaryLanguage = NormalizeLanguage(s.PrimaryLanguage)
	if len(s.SupportedLanguages) == 0 {
		s.SupportedLanguages = []string{s.PrimaryLanguage}
	}
	if s.MaxQuestions == 0 {
		s.MaxQuestions = DefaultMaxQuestions
	}
	if s.EstimatedDuration == 0 {
		s.EstimatedDuration = DefaultEstimatedDuration
	}
	if s.RetryAttempts == 0 {
		s.RetryAttempts = DefaultRetryAttempts
	}
	if s.RetryInterval == 0 {
		s.RetryInterval = DefaultRetryIntervalHours
	}
	if s.ConfidenceThreshold == 0 {
		s.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if s.Status == "" {
		s.Status = SurveyDraft
	}
	if s.Version == 0 {
		s.Version = 1
	}
}

// Validate checks field constraints that do not depend on other rows
func (s *Survey) Validate() error {
	if s.Title == "" {
		return NewValidationError("title", "must not be empty")
	}
	if !IsSupportedLanguage(s.PrimaryLanguage) {
		return NewValidationError("primary_language", "unsupported language "+s.PrimaryLanguage)
	}
	for _, lang := range s.SupportedLanguages {
		if !IsSupportedLanguage(lang) {
			return NewValidationError("supported_languages", "unsupported language "+lang)
		}
	}
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 100 {
		return NewValidationError("confidence_threshold", "must be between 0 and 100")
	}
	if s.RetryAttempts < 0 {
		return NewValidationError("retry_attempts", "must not be negative")
	}
	if s.RetryInterval < 0 {
		return NewValidationError("retry_interval", "must not be negative")
	}
	if !s.Status.IsValid() {
		return NewValidationError("status", "unknown status "+string(s.Status))
	}
	return nil
}

// Transition moves the survey to next. Completing stamps CompletedAt.
func (s *Survey) Transition(next SurveyStatus, now time.Time) error {
	if !s.Status.CanTransitionTo(next) {
		return invalidTransition("survey", s.Status, next)
	}
	s.Status = next
	switch next {
	case SurveyActive:
		s.IsActive = true
	case SurveyPaused:
		s.IsActive = false
	case SurveyCompleted:
		s.IsActive = false
		s.CompletedAt = &now
	}
	return nil
}

// ConfidenceCutoff returns the reporting threshold as a 0..1 fraction
func (s *Survey) ConfidenceCutoff() float64 {
	return float64(s.ConfidenceThreshold) / 100
}
