package services

import (
	"context"
	"fmt"
	"time"

	"survey-voice-api/models"

	"gorm.io/gorm"
)

type ResponseService struct {
	db *gorm.DB
}

func NewResponseService(db *gorm.DB) *ResponseService {
	return &ResponseService{db: db}
}

// ResponseFilter narrows List
type ResponseFilter struct {
	SurveyID   uint
	ContactID  uint
	QuestionID uint
	Status     models.ResponseStatus
	Page
}

// ResponseUpdate edits captured answer data. Status and processing fields
// belong to the clarification pipeline.
type ResponseUpdate struct {
	RawResponse           *string  `json:"raw_response"`
	TranscribedText       *string  `json:"transcribed_text"`
	ResponseLanguage      *string  `json:"response_language"`
	ResponseDuration      *int     `json:"response_duration"`
	AudioQualityScore     *float64 `json:"audio_quality_score"`
	TranscriptionAccuracy *float64 `json:"transcription_accuracy"`
}

// ResponseSummary aggregates a survey's responses
type ResponseSummary struct {
	SurveyID             uint             `json:"survey_id"`
	TotalResponses       int64            `json:"total_responses"`
	StatusDistribution   map[string]int64 `json:"status_distribution"`
	LanguageDistribution map[string]int64 `json:"language_distribution"`
	AverageConfidence    *float64         `json:"average_confidence"`
	CompletedResponses   int64            `json:"completed_responses"`
	PendingResponses     int64            `json:"pending_responses"`
	FailedResponses      int64            `json:"failed_responses"`
}

// Create stores a new answer as pending. The contact and question must both
// belong to the response's survey.
func (s *ResponseService) Create(ctx context.Context, actor *models.User, r *models.Response) error {
	if _, err := loadSurveyFor(ctx, s.db, actor, r.SurveyID); err != nil {
		return err
	}
	contact, err := findByID[models.Contact](ctx, s.db, r.ContactID, "contact")
	if err != nil {
		return err
	}
	question, err := findByID[models.Question](ctx, s.db, r.QuestionID, "question")
	if err != nil {
		return err
	}
	if contact.SurveyID != r.SurveyID {
		return models.NewValidationError("contact_id", "contact belongs to another survey")
	}
	if question.SurveyID != r.SurveyID {
		return models.NewValidationError("question_id", "question belongs to another survey")
	}

	r.ID = 0
	r.Version = 0
	r.Status = models.ResponsePending
	r.ProcessingStatus = models.ProcessingPending
	r.ProcessedAt = nil
	r.ProcessedResponse = ""
	r.AIClarificationUsed = false
	r.ClarificationAttempts = 0
	r.ClarificationHistory = nil
	r.AIInsights = nil
	if r.ResponseType == "" {
		r.ResponseType = string(question.QuestionType)
	}
	if r.ResponseLanguage == "" {
		r.ResponseLanguage = contact.PreferredLanguage
	}
	r.ApplyDefaults(time.Now())
	if err := r.Validate(); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create response: %w", err)
	}
	return nil
}

func (s *ResponseService) Get(ctx context.Context, actor *models.User, id uint) (*models.Response, error) {
	r, err := findByID[models.Response](ctx, s.db, id, "response")
	if err != nil {
		return nil, err
	}
	if _, err := loadSurveyFor(ctx, s.db, actor, r.SurveyID); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ResponseService) List(ctx context.Context, actor *models.User, filter ResponseFilter) ([]models.Response, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Response{}).Scopes(ownedSurveys(s.db, actor))
	if filter.SurveyID != 0 {
		q = q.Where("survey_id = ?", filter.SurveyID)
	}
	if filter.ContactID != 0 {
		q = q.Where("contact_id = ?", filter.ContactID)
	}
	if filter.QuestionID != 0 {
		q = q.Where("question_id = ?", filter.QuestionID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var responses []models.Response
	if err := filter.Page.apply(q).Order("created_at DESC, id DESC").Find(&responses).Error; err != nil {
		return nil, 0, err
	}
	return responses, total, nil
}

func (s *ResponseService) Update(ctx context.Context, actor *models.User, id uint, in ResponseUpdate) (*models.Response, error) {
	return s.mutate(ctx, actor, id, func(r *models.Response) error {
		if in.RawResponse != nil {
			r.RawResponse = *in.RawResponse
		}
		if in.TranscribedText != nil {
			r.TranscribedText = *in.TranscribedText
		}
		if in.ResponseLanguage != nil {
			r.ResponseLanguage = models.NormalizeLanguage(*in.ResponseLanguage)
		}
		if in.ResponseDuration != nil {
			r.ResponseDuration = in.ResponseDuration
		}
		if in.AudioQualityScore != nil {
			r.AudioQualityScore = in.AudioQualityScore
		}
		if in.TranscriptionAccuracy != nil {
			r.TranscriptionAccuracy = in.TranscriptionAccuracy
		}
		return r.Validate()
	})
}

func (s *ResponseService) Delete(ctx context.Context, actor *models.User, id uint) error {
	r, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(r).Error
}

// SetTranscription stores speech-to-text output. confidence, when given,
// replaces the confidence score.
func (s *ResponseService) SetTranscription(ctx context.Context, actor *models.User, id uint, text string, confidence *float64) (*models.Response, error) {
	return s.mutate(ctx, actor, id, func(r *models.Response) error {
		if r.ProcessingStatus == models.ProcessingInProgress {
			return fmt.Errorf("response %d is being processed: %w", r.ID, models.ErrConflict)
		}
		r.TranscribedText = text
		if confidence != nil {
			c := *confidence
			r.ConfidenceScore = &c
		}
		return r.Validate()
	})
}

// AddClarificationAttempt appends one re-ask exchange to the response's
// history. Status is not changed.
func (s *ResponseService) AddClarificationAttempt(ctx context.Context, actor *models.User, id uint, clarificationText, aiResponse string) (*models.Response, error) {
	return s.mutate(ctx, actor, id, func(r *models.Response) error {
		r.AddClarificationAttempt(clarificationText, aiResponse, time.Now())
		return nil
	})
}

func (s *ResponseService) mutate(ctx context.Context, actor *models.User, id uint, fn func(*models.Response) error) (*models.Response, error) {
	r, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := fn(r); err != nil {
		return nil, err
	}
	if err := saveVersioned(ctx, s.db, r); err != nil {
		return nil, err
	}
	return r, nil
}

// SurveyResponseSummary counts a survey's responses by status and language
// and averages the confidence of scored responses
func (s *ResponseService) SurveyResponseSummary(ctx context.Context, actor *models.User, surveyID uint) (*ResponseSummary, error) {
	if _, err := loadSurveyFor(ctx, s.db, actor, surveyID); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	scoped := func() *gorm.DB {
		return db.Model(&models.Response{}).Where("survey_id = ?", surveyID)
	}

	sum := &ResponseSummary{SurveyID: surveyID}
	var err error
	if sum.StatusDistribution, err = countBy(scoped(), "status"); err != nil {
		return nil, err
	}
	if sum.LanguageDistribution, err = countBy(scoped(), "response_language"); err != nil {
		return nil, err
	}
	for _, n := range sum.StatusDistribution {
		sum.TotalResponses += n
	}
	sum.CompletedResponses = sum.StatusDistribution[string(models.ResponseCompleted)]
	sum.PendingResponses = sum.StatusDistribution[string(models.ResponsePending)]
	sum.FailedResponses = sum.StatusDistribution[string(models.ResponseFailed)]

	var avg struct {
		Scored int64
		Avg    float64
	}
	if err := scoped().
		Where("confidence_score IS NOT NULL").
		Select("COUNT(*) AS scored, COALESCE(AVG(confidence_score), 0) AS avg").
		Scan(&avg).Error; err != nil {
		return nil, err
	}
	if avg.Scored > 0 {
		v := round2(avg.Avg)
		sum.AverageConfidence = &v
	}
	return sum, nil
}

// ContactResponses lists a contact's answers in the order given
func (s *ResponseService) ContactResponses(ctx context.Context, actor *models.User, contactID uint) ([]models.Response, error) {
	contact, err := findByID[models.Contact](ctx, s.db, contactID, "contact")
	if err != nil {
		return nil, err
	}
	if _, err := loadSurveyFor(ctx, s.db, actor, contact.SurveyID); err != nil {
		return nil, err
	}
	var responses []models.Response
	err = s.db.WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("created_at ASC, id ASC").
		Find(&responses).Error
	return responses, err
}
