package models

import (
	"strings"
	"time"
)

// LowConfidenceCutoff is the clarifier confidence below which a response is
// flagged for clarification. It is independent of Survey.ConfidenceThreshold,
// which only drives reporting buckets.
const LowConfidenceCutoff = 0.7

type ResponseStatus string

const (
	ResponsePending            ResponseStatus = "pending"
	ResponseCompleted          ResponseStatus = "completed"
	ResponseFailed             ResponseStatus = "failed"
	ResponseNeedsClarification ResponseStatus = "needs_clarification"
)

var responseTransitions = transitionTable[ResponseStatus]{
	ResponsePending:            {ResponseCompleted, ResponseFailed, ResponseNeedsClarification},
	ResponseNeedsClarification: {ResponseCompleted, ResponseFailed, ResponseNeedsClarification},
	ResponseFailed:             {ResponseCompleted, ResponseFailed, ResponseNeedsClarification},
}

func (s ResponseStatus) String() string { return string(s) }

func (s ResponseStatus) IsValid() bool {
	switch s {
	case ResponsePending, ResponseCompleted, ResponseFailed, ResponseNeedsClarification:
		return true
	}
	return false
}

func (s ResponseStatus) CanTransitionTo(next ResponseStatus) bool {
	return responseTransitions.allows(s, next)
}

type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// processing -> pending is used only when a worker gives up a stale claim
var processingTransitions = transitionTable[ProcessingStatus]{
	ProcessingPending:    {ProcessingInProgress, ProcessingFailed},
	ProcessingInProgress: {ProcessingCompleted, ProcessingFailed, ProcessingPending},
	ProcessingCompleted:  {ProcessingInProgress},
	ProcessingFailed:     {ProcessingInProgress, ProcessingFailed},
}

func (s ProcessingStatus) String() string { return string(s) }

func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	return processingTransitions.allows(s, next)
}

// ClarificationAttempt is one entry of a response's append-only history
type ClarificationAttempt struct {
	Timestamp         time.Time `json:"timestamp"`
	ClarificationText string    `json:"clarification_text"`
	AIResponse        string    `json:"ai_response"`
}

// Response is a contact's answer to one question
type Response struct {
	ID                    uint                   `gorm:"primaryKey" json:"id"`
	SurveyID              uint                   `gorm:"index;not null" json:"survey_id"`
	ContactID             uint                   `gorm:"index;not null" json:"contact_id"`
	QuestionID            uint                   `gorm:"index;not null" json:"question_id"`
	RawResponse           string                 `gorm:"type:text" json:"raw_response,omitempty"`
	TranscribedText       string                 `gorm:"type:text" json:"transcribed_text,omitempty"`
	ProcessedResponse     string                 `gorm:"type:text" json:"processed_response,omitempty"`
	ResponseLanguage      string                 `gorm:"size:10" json:"response_language,omitempty"`
	ResponseType          string                 `gorm:"size:50;not null" json:"response_type"`
	ConfidenceScore       *float64               `json:"confidence_score,omitempty"`
	ProcessingStatus      ProcessingStatus       `gorm:"size:20;index;not null" json:"processing_status"`
	AIClarificationUsed   bool                   `json:"ai_clarification_used"`
	ClarificationAttempts int                    `gorm:"not null;default:0" json:"clarification_attempts"`
	ClarificationHistory  []ClarificationAttempt `gorm:"serializer:json;type:text" json:"clarification_history,omitempty"`
	AIInsights            map[string]any         `gorm:"serializer:json;type:text" json:"ai_insights,omitempty"`
	CallSessionID         string                 `gorm:"size:255;index" json:"call_session_id,omitempty"`
	ResponseTimestamp     *time.Time             `json:"response_timestamp,omitempty"`
	ResponseDuration      *int                   `json:"response_duration,omitempty"`
	AudioQualityScore     *float64               `json:"audio_quality_score,omitempty"`
	TranscriptionAccuracy *float64               `json:"transcription_accuracy,omitempty"`
	Status                ResponseStatus         `gorm:"size:30;index;not null" json:"status"`
	Version               int                    `gorm:"not null;default:1" json:"version"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
	ProcessedAt           *time.Time             `json:"processed_at,omitempty"`
}

func (Response) TableName() string {
	return "responses"
}

func (r *Response) GetVersion() int { return r.Version }
func (r *Response) BumpVersion() { r.Version++ }

func (r *Response) ApplyDefaults(now time.Time) {
	r.ResponseLanguage = NormalizeLanguage(r.ResponseLanguage)
	if r.ResponseType == "" {
		r.ResponseType = string(QuestionText)
	}
	if r.Status == "" {
		r.Status = ResponsePending
	}
	if r.ProcessingStatus == "" {
		r.ProcessingStatus = ProcessingPending
	}
	if r.ResponseTimestamp == nil {
		r.ResponseTimestamp = &now
	}
	if r.Version == 0 {
		r.Version = 1
	}
}

func (r *Response) Validate() error {
	if r.SurveyID == 0 || r.ContactID == 0 || r.QuestionID == 0 {
		return NewValidationError("", "survey_id, contact_id and question_id are required")
	}
	if !r.Status.IsValid() {
		return NewValidationError("status", "unknown status "+string(r.Status))
	}
	if r.ConfidenceScore != nil && (*r.ConfidenceScore < 0 || *r.ConfidenceScore > 1) {
		return NewValidationError("confidence_score", "must be between 0 and 1")
	}
	if r.Status == ResponseNeedsClarification &&
		(r.ConfidenceScore == nil || *r.ConfidenceScore >= LowConfidenceCutoff) {
		return NewValidationError("status", "needs_clarification requires confidence_score below 0.7")
	}
	return nil
}

// BestText picks processed, then transcribed, then raw text
func (r *Response) BestText() string {
	for _, s := range []string{r.ProcessedResponse, r.TranscribedText, r.RawResponse} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// CanProcess reports whether the clarification pipeline may run on r
func (r *Response) CanProcess() bool {
	return r.Status != ResponseCompleted && r.ProcessingStatus != ProcessingInProgress
}

// BeginProcessing marks the response as claimed by the pipeline
func (r *Response) BeginProcessing() error {
	if !r.CanProcess() || !r.ProcessingStatus.CanTransitionTo(ProcessingInProgress) {
		return invalidTransition("response", r.ProcessingStatus, ProcessingInProgress)
	}
	r.ProcessingStatus = ProcessingInProgress
	return nil
}

// Fail records a terminal pipeline failure. reason lands in ai_insights.error.
func (r *Response) Fail(reason string) error {
	if !r.Status.CanTransitionTo(ResponseFailed) {
		return invalidTransition("response", r.Status, ResponseFailed)
	}
	if r.AIInsights == nil {
		r.AIInsights = map[string]any{}
	}
	r.AIInsights["error"] = reason
	r.Status = ResponseFailed
	r.ProcessingStatus = ProcessingFailed
	return nil
}

// ApplyClarification stores a clarifier result and derives the final status
// from LowConfidenceCutoff. Exactly LowConfidenceCutoff counts as completed.
func (r *Response) ApplyClarification(text string, confidence float64, insights map[string]any, now time.Time) error {
	next := ResponseCompleted
	if confidence < LowConfidenceCutoff {
		next = ResponseNeedsClarification
	}
	if !r.Status.CanTransitionTo(next) {
		return invalidTransition("response", r.Status, next)
	}
	r.ProcessedResponse = text
	r.ConfidenceScore = &confidence
	r.AIInsights = insights
	r.ProcessingStatus = ProcessingCompleted
	r.ProcessedAt = &now
	r.Status = next
	if next == ResponseNeedsClarification {
		r.AIClarificationUsed = true
	}
	return nil
}

// AddClarificationAttempt appends to the clarification history. Status is
// left for the caller to decide.
func (r *Response) AddClarificationAttempt(clarificationText, aiResponse string, now time.Time) {
	r.ClarificationHistory = append(r.ClarificationHistory, ClarificationAttempt{
		Timestamp:         now,
		ClarificationText: clarificationText,
		AIResponse:        aiResponse,
	})
	r.ClarificationAttempts++
	r.AIClarificationUsed = true
}
