package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"survey-voice-api/models"

	"gorm.io/gorm"
)

type CallLogService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCallLogService(db *gorm.DB) *CallLogService {
	return &CallLogService{db: db, now: time.Now}
}

// CallLogFilter narrows List
type CallLogFilter struct {
	SurveyID  uint
	ContactID uint
	Status    models.CallStatus
	Page
}

// CallLogUpdate sets provider metadata that is not part of the lifecycle
type CallLogUpdate struct {
	ExternalCallID    *string  `json:"external_call_id"`
	DetectedLanguage  *string  `json:"detected_language"`
	AudioQualityScore *float64 `json:"audio_quality_score"`
	ConnectionQuality *string  `json:"connection_quality"`
}

// StatusUpdate is the payload of the update-status action
type StatusUpdate struct {
	Status       string `json:"status" binding:"required"`
	Duration     *int   `json:"duration"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// CallStats summarises the calls placed for a survey
type CallStats struct {
	SurveyID          uint             `json:"survey_id"`
	TotalCalls        int64            `json:"total_calls"`
	ByStatus          map[string]int64 `json:"by_status"`
	ByResult          map[string]int64 `json:"by_result"`
	CompletedSurveys  int64            `json:"completed_surveys"`
	CompletionRate    float64          `json:"completion_rate"`
	AverageDuration   float64          `json:"average_duration"`
	TotalDuration     int64            `json:"total_duration"`
	AIClarifications  int64            `json:"ai_clarifications"`
	LanguageSwitches  int64            `json:"language_switches"`
	QuestionsAnswered int64            `json:"questions_answered"`
}

// Create opens a call log in status initiated. call_session_id must be
// unique across all call logs.
func (s *CallLogService) Create(ctx context.Context, actor *models.User, l *models.CallLog) error {
	contact, err := findByID[models.Contact](ctx, s.db, l.ContactID, "contact")
	if err != nil {
		return err
	}
	if l.SurveyID == 0 {
		l.SurveyID = contact.SurveyID
	}
	if l.SurveyID != contact.SurveyID {
		return models.NewValidationError("contact_id", "contact belongs to another survey")
	}
	if _, err := loadSurveyFor(ctx, s.db, actor, l.SurveyID); err != nil {
		return err
	}

	// outcome and counters are only ever written by the lifecycle mutators
	l.ID = 0
	l.Version = 0
	l.QuestionsAsked, l.QuestionsAnswered = 0, 0
	l.LanguageSwitches, l.AIClarifications = 0, 0
	l.CallEndTime = nil
	l.CallDuration, l.RingDuration, l.AnswerDuration = nil, nil, nil
	l.CallResult = ""
	l.SurveyCompleted = false
	l.ErrorCode, l.ErrorMessage = "", ""
	l.CallSessionID = strings.TrimSpace(l.CallSessionID)
	if l.PhoneNumber == "" {
		l.PhoneNumber = contact.PhoneNumber
	}
	l.ApplyDefaults(s.now())
	if err := l.Validate(); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	var taken int64
	if err := db.Model(&models.CallLog{}).Where("call_session_id = ?", l.CallSessionID).Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return fmt.Errorf("call session %s already exists: %w", l.CallSessionID, models.ErrConflict)
	}
	if err := db.Create(l).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("call session %s already exists: %w", l.CallSessionID, models.ErrConflict)
		}
		return fmt.Errorf("failed to create call log: %w", err)
	}
	log.Printf("[CallLogService] Call %s initiated for contact #%d", l.CallSessionID, l.ContactID)
	return nil
}

func (s *CallLogService) Get(ctx context.Context, actor *models.User, id uint) (*models.CallLog, error) {
	l, err := findByID[models.CallLog](ctx, s.db, id, "call log")
	if err != nil {
		return nil, err
	}
	if _, err := loadSurveyFor(ctx, s.db, actor, l.SurveyID); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *CallLogService) GetBySession(ctx context.Context, actor *models.User, sessionID string) (*models.CallLog, error) {
	return s.getBy(ctx, actor, "call_session_id = ?", sessionID)
}

// GetByExternalID finds the log for a provider call id (Twilio CallSid)
func (s *CallLogService) GetByExternalID(ctx context.Context, actor *models.User, externalID string) (*models.CallLog, error) {
	return s.getBy(ctx, actor, "external_call_id = ?", externalID)
}

func (s *CallLogService) getBy(ctx context.Context, actor *models.User, cond string, arg string) (*models.CallLog, error) {
	var l models.CallLog
	if err := s.db.WithContext(ctx).Where(cond, arg).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("call log %s: %w", arg, models.ErrNotFound)
		}
		return nil, err
	}
	if _, err := loadSurveyFor(ctx, s.db, actor, l.SurveyID); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *CallLogService) List(ctx context.Context, actor *models.User, filter CallLogFilter) ([]models.CallLog, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.CallLog{}).Scopes(ownedSurveys(s.db, actor))
	if filter.SurveyID != 0 {
		q = q.Where("survey_id = ?", filter.SurveyID)
	}
	if filter.ContactID != 0 {
		q = q.Where("contact_id = ?", filter.ContactID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var logs []models.CallLog
	if err := filter.Page.apply(q).Order("call_start_time DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (s *CallLogService) Update(ctx context.Context, actor *models.User, id uint, in CallLogUpdate) (*models.CallLog, error) {
	return s.mutate(ctx, actor, id, func(l *models.CallLog) error {
		if in.ExternalCallID != nil {
			l.ExternalCallID = *in.ExternalCallID
		}
		if in.DetectedLanguage != nil {
			l.DetectedLanguage = models.NormalizeLanguage(*in.DetectedLanguage)
		}
		if in.AudioQualityScore != nil {
			l.AudioQualityScore = in.AudioQualityScore
		}
		if in.ConnectionQuality != nil {
			l.ConnectionQuality = *in.ConnectionQuality
		}
		return nil
	})
}

func (s *CallLogService) Delete(ctx context.Context, actor *models.User, id uint) error {
	l, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(l).Error
}

func (s *CallLogService) MarkRinging(ctx context.Context, actor *models.User, id uint) (*models.CallLog, error) {
	return s.mutate(ctx, actor, id, (*models.CallLog).MarkRinging)
}

func (s *CallLogService) MarkAnswered(ctx context.Context, actor *models.User, id uint) (*models.CallLog, error) {
	return s.mutate(ctx, actor, id, func(l *models.CallLog) error {
		return l.MarkAnswered(s.now())
	})
}

func (s *CallLogService) MarkCompleted(ctx context.Context, actor *models.User, id uint, durationSeconds *int) (*models.CallLog, error) {
	return s.mutate(ctx, actor, id, func(l *models.CallLog) error {
		return l.MarkCompleted(durationSeconds, s.now())
	})
}

func (s *CallLogService) MarkFailed(ctx context.Context, actor *models.User, id uint, code, message string) (*models.CallLog, error) {
	return s.mutate(ctx, actor, id, func(l *models.CallLog) error {
		return l.MarkFailed(code, message, s.now())
	})
}

func (s *CallLogService) MarkBusy(ctx context.Context, actor *models.User, id uint) (*models.CallLog, error) {
	return s.mutate(ctx, actor, id, func(l *models.CallLog) error {
		return l.MarkBusy(s.now())
	})
}

func (s *CallLogService) MarkNoAnswer(ctx context.Context, actor *models.User, id uint) (*models.CallLog, error) {
	return s.mutate(ctx, actor, id, func(l *models.CallLog) error {
		return l.MarkNoAnswer(s.now())
	})
}

func (s *CallLogService) IncrementQuestionsAsked(ctx context.Context, actor *models.User, id uint) (*models.CallLog, error) {
	return s.mutate(ctx, actor, id, (*models.CallLog).IncrementQuestionsAsked)
}

func (s *CallLogService) IncrementQuestionsAnswered(ctx context.Context, actor *models.User, id uint) (*models.CallLog, error) {
	return s.mutate(ctx, actor, id, (*models.CallLog).IncrementQuestionsAnswered)
}

func (s *CallLogService) IncrementAIClarifications(ctx context.Context, actor *models.User, id uint) (*models.CallLog, error) {
	return s.mutate(ctx, actor, id, (*models.CallLog).IncrementAIClarifications)
}

func (s *CallLogService) IncrementLanguageSwitches(ctx context.Context, actor *models.User, id uint, lang string) (*models.CallLog, error) {
	return s.mutate(ctx, actor, id, func(l *models.CallLog) error {
		return l.IncrementLanguageSwitches(lang)
	})
}

// UpdateStatus applies a status reported by a client or provider callback
// to the matching lifecycle operation
func (s *CallLogService) UpdateStatus(ctx context.Context, actor *models.User, id uint, in StatusUpdate) (*models.CallLog, error) {
	now := s.now()
	var fn func(*models.CallLog) error
	switch models.CallStatus(strings.ToLower(in.Status)) {
	case models.CallRinging:
		fn = (*models.CallLog).MarkRinging
	case models.CallAnswered:
		fn = func(l *models.CallLog) error { return l.MarkAnswered(now) }
	case models.CallCompleted:
		fn = func(l *models.CallLog) error { return l.MarkCompleted(in.Duration, now) }
	case models.CallFailed:
		fn = func(l *models.CallLog) error { return l.MarkFailed(in.ErrorCode, in.ErrorMessage, now) }
	case models.CallBusy:
		fn = func(l *models.CallLog) error { return l.MarkBusy(now) }
	case models.CallNoAnswer:
		fn = func(l *models.CallLog) error { return l.MarkNoAnswer(now) }
	default:
		return nil, models.NewValidationError("status", "unknown call status "+in.Status)
	}
	return s.mutate(ctx, actor, id, fn)
}

func (s *CallLogService) mutate(ctx context.Context, actor *models.User, id uint, fn func(*models.CallLog) error) (*models.CallLog, error) {
	l, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := fn(l); err != nil {
		return nil, err
	}
	if err := saveVersioned(ctx, s.db, l); err != nil {
		return nil, err
	}
	return l, nil
}

// SurveyCallStats aggregates every call log of a survey
func (s *CallLogService) SurveyCallStats(ctx context.Context, actor *models.User, surveyID uint) (*CallStats, error) {
	if _, err := loadSurveyFor(ctx, s.db, actor, surveyID); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	scoped := func() *gorm.DB {
		return db.Model(&models.CallLog{}).Where("survey_id = ?", surveyID)
	}

	stats := &CallStats{SurveyID: surveyID}
	var err error
	if stats.ByStatus, err = countBy(scoped(), "status"); err != nil {
		return nil, err
	}
	if stats.ByResult, err = countBy(scoped().Where("call_result <> ''"), "call_result"); err != nil {
		return nil, err
	}

	var totals struct {
		TotalCalls        int64
		CompletedSurveys  int64
		TotalDuration     int64
		TimedCalls        int64
		AIClarifications  int64
		LanguageSwitches  int64
		QuestionsAnswered int64
	}
	err = scoped().Select(`
		COUNT(*) AS total_calls,
		COALESCE(SUM(CASE WHEN survey_completed THEN 1 ELSE 0 END), 0) AS completed_surveys,
		COALESCE(SUM(call_duration), 0) AS total_duration,
		COUNT(call_duration) AS timed_calls,
		COALESCE(SUM(ai_clarifications), 0) AS ai_clarifications,
		COALESCE(SUM(language_switches), 0) AS language_switches,
		COALESCE(SUM(questions_answered), 0) AS questions_answered
	`).Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	stats.TotalCalls = totals.TotalCalls
	stats.CompletedSurveys = totals.CompletedSurveys
	stats.CompletionRate = percentage(totals.CompletedSurveys, totals.TotalCalls)
	stats.TotalDuration = totals.TotalDuration
	if totals.TimedCalls > 0 {
		stats.AverageDuration = round2(float64(totals.TotalDuration) / float64(totals.TimedCalls))
	}
	stats.AIClarifications = totals.AIClarifications
	stats.LanguageSwitches = totals.LanguageSwitches
	stats.QuestionsAnswered = totals.QuestionsAnswered
	return stats, nil
}

// ContactCallHistory lists a contact's calls, newest first
func (s *CallLogService) ContactCallHistory(ctx context.Context, actor *models.User, contactID uint) ([]models.CallLog, error) {
	contact, err := findByID[models.Contact](ctx, s.db, contactID, "contact")
	if err != nil {
		return nil, err
	}
	if _, err := loadSurveyFor(ctx, s.db, actor, contact.SurveyID); err != nil {
		return nil, err
	}
	var logs []models.CallLog
	err = s.db.WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("call_start_time DESC, id DESC").
		Find(&logs).Error
	return logs, err
}
