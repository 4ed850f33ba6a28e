package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"survey-voice-api/models"

	"gorm.io/gorm"
)

// SurveyService owns the survey lifecycle: draft -> active <-> paused ->
// completed
type SurveyService struct {
	db *gorm.DB
}

func NewSurveyService(db *gorm.DB) *SurveyService {
	return &SurveyService{db: db}
}

// SurveyFilter narrows List
type SurveyFilter struct {
	Status models.SurveyStatus
	Page
}

// SurveyUpdate carries the editable survey settings. Nil fields are left
// unchanged. Status is changed through Activate, Pause and Complete only.
type SurveyUpdate struct {
	Title                  *string        `json:"title"`
	Description            *string        `json:"description"`
	PrimaryLanguage        *string        `json:"primary_language"`
	SupportedLanguages     []string       `json:"supported_languages"`
	MaxQuestions           *int           `json:"max_questions"`
	EstimatedDuration      *int           `json:"estimated_duration"`
	CallSchedule           map[string]any `json:"call_schedule"`
	RetryAttempts          *int           `json:"retry_attempts"`
	RetryInterval          *int           `json:"retry_interval"`
	AIClarificationEnabled *bool          `json:"ai_clarification_enabled"`
	AISummaryEnabled       *bool          `json:"ai_summary_enabled"`
	ConfidenceThreshold    *int           `json:"confidence_threshold"`
	ScheduledAt            *time.Time     `json:"scheduled_at"`
}

// SurveyStatistics is a read-only snapshot of survey progress
type SurveyStatistics struct {
	SurveyID           uint                `json:"survey_id"`
	Status             models.SurveyStatus `json:"status"`
	TotalContacts      int64               `json:"total_contacts"`
	TotalQuestions     int64               `json:"total_questions"`
	TotalResponses     int64               `json:"total_responses"`
	CompletedResponses int64               `json:"completed_responses"`
	ResponseRate       float64             `json:"response_rate"`
}

func (s *SurveyService) Create(ctx context.Context, actor *models.User, survey *models.Survey) error {
	survey.ID = 0
	survey.CreatedBy = actor.ID
	survey.Status = models.SurveyDraft
	survey.IsActive = false
	survey.CompletedAt = nil
	survey.Version = 0
	survey.ApplyDefaults()
	if err := survey.Validate(); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(survey).Error; err != nil {
		return fmt.Errorf("failed to create survey: %w", err)
	}
	log.Printf("[SurveyService] Created survey #%d %q for user #%d", survey.ID, survey.Title, actor.ID)
	return nil
}

func (s *SurveyService) Get(ctx context.Context, actor *models.User, id uint) (*models.Survey, error) {
	return loadSurveyFor(ctx, s.db, actor, id)
}

func (s *SurveyService) List(ctx context.Context, actor *models.User, filter SurveyFilter) ([]models.Survey, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Survey{})
	if actor != nil && !actor.IsAdmin() {
		q = q.Where("created_by = ?", actor.ID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var surveys []models.Survey
	if err := filter.Page.apply(q).Order("created_at DESC, id DESC").Find(&surveys).Error; err != nil {
		return nil, 0, err
	}
	return surveys, total, nil
}

func (s *SurveyService) Update(ctx context.Context, actor *models.User, id uint, in SurveyUpdate) (*models.Survey, error) {
	survey, err := loadSurveyFor(ctx, s.db, actor, id)
	if err != nil {
		return nil, err
	}
	if survey.Status == models.SurveyCompleted {
		return nil, fmt.Errorf("survey %d is completed: %w", id, models.ErrConflict)
	}

	if in.Title != nil {
		survey.Title = *in.Title
	}
	if in.Description != nil {
		survey.Description = *in.Description
	}
	if in.PrimaryLanguage != nil {
		survey.PrimaryLanguage = models.NormalizeLanguage(*in.PrimaryLanguage)
	}
	if in.SupportedLanguages != nil {
		survey.SupportedLanguages = in.SupportedLanguages
	}
	if in.MaxQuestions != nil {
		survey.MaxQuestions = *in.MaxQuestions
	}
	if in.EstimatedDuration != nil {
		survey.EstimatedDuration = *in.EstimatedDuration
	}
	if in.CallSchedule != nil {
		survey.CallSchedule = in.CallSchedule
	}
	if in.RetryAttempts != nil {
		survey.RetryAttempts = *in.RetryAttempts
	}
	if in.RetryInterval != nil {
		survey.RetryInterval = *in.RetryInterval
	}
	if in.AIClarificationEnabled != nil {
		survey.AIClarificationEnabled = *in.AIClarificationEnabled
	}
	if in.AISummaryEnabled != nil {
		survey.AISummaryEnabled = *in.AISummaryEnabled
	}
	if in.ConfidenceThreshold != nil {
		survey.ConfidenceThreshold = *in.ConfidenceThreshold
	}
	if in.ScheduledAt != nil {
		survey.ScheduledAt = in.ScheduledAt
	}

	if err := survey.Validate(); err != nil {
		return nil, err
	}
	if err := saveVersioned(ctx, s.db, survey); err != nil {
		return nil, err
	}
	return survey, nil
}

// Delete removes the survey and everything under it
func (s *SurveyService) Delete(ctx context.Context, actor *models.User, id uint) error {
	if _, err := loadSurveyFor(ctx, s.db, actor, id); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []interface{}{&models.Response{}, &models.CallLog{}, &models.Contact{}, &models.Question{}} {
			if err := tx.Where("survey_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Survey{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete survey %d: %w", id, err)
	}
	log.Printf("[SurveyService] Deleted survey #%d with its children", id)
	return nil
}

func (s *SurveyService) Activate(ctx context.Context, actor *models.User, id uint) (*models.Survey, error) {
	return s.transition(ctx, actor, id, models.SurveyActive)
}

func (s *SurveyService) Pause(ctx context.Context, actor *models.User, id uint) (*models.Survey, error) {
	return s.transition(ctx, actor, id, models.SurveyPaused)
}

func (s *SurveyService) Complete(ctx context.Context, actor *models.User, id uint) (*models.Survey, error) {
	return s.transition(ctx, actor, id, models.SurveyCompleted)
}

func (s *SurveyService) transition(ctx context.Context, actor *models.User, id uint, next models.SurveyStatus) (*models.Survey, error) {
	survey, err := loadSurveyFor(ctx, s.db, actor, id)
	if err != nil {
		return nil, err
	}
	from := survey.Status
	if err := survey.Transition(next, time.Now()); err != nil {
		return nil, err
	}
	if err := saveVersioned(ctx, s.db, survey); err != nil {
		return nil, err
	}
	log.Printf("[SurveyService] Survey #%d %s -> %s", id, from, next)
	return survey, nil
}

// Statistics counts contacts, questions and responses. ResponseRate is
// completed responses per contact, as a percentage, and 0 with no contacts.
func (s *SurveyService) Statistics(ctx context.Context, actor *models.User, id uint) (*SurveyStatistics, error) {
	survey, err := loadSurveyFor(ctx, s.db, actor, id)
	if err != nil {
		return nil, err
	}

	stats := &SurveyStatistics{SurveyID: id, Status: survey.Status}
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Contact{}).Where("survey_id = ?", id).Count(&stats.TotalContacts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Question{}).Where("survey_id = ?", id).Count(&stats.TotalQuestions).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Response{}).Where("survey_id = ?", id).Count(&stats.TotalResponses).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Response{}).
		Where("survey_id = ? AND status = ?", id, models.ResponseCompleted).
		Count(&stats.CompletedResponses).Error; err != nil {
		return nil, err
	}

	stats.ResponseRate = percentage(stats.CompletedResponses, stats.TotalContacts)
	return stats, nil
}

// percentage returns part/total*100 rounded to two decimals, or 0 when total
// is 0
func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
