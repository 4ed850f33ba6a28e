package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"survey-voice-api/cache"
	"survey-voice-api/models"

	"gorm.io/gorm"
)

// AnalyticsService answers read-only reporting queries. Results are cached
// for a short time when a cache is configured.
type AnalyticsService struct {
	db           *gorm.DB
	cache        cache.AnalyticsCache
	contacts     *ContactService
	calls        *CallLogService
	responses    *ResponseService
	maxTrendDays int
	now          func() time.Time
}

func NewAnalyticsService(db *gorm.DB, c cache.AnalyticsCache, maxTrendDays int) *AnalyticsService {
	if c == nil {
		c = cache.Noop{}
	}
	if maxTrendDays <= 0 {
		maxTrendDays = 365
	}
	return &AnalyticsService{
		db:           db,
		cache:        c,
		contacts:     NewContactService(db),
		calls:        NewCallLogService(db),
		responses:    NewResponseService(db),
		maxTrendDays: maxTrendDays,
		now:          time.Now,
	}
}

type RecentSurvey struct {
	ID        uint                `json:"id"`
	Title     string              `json:"title"`
	Status    models.SurveyStatus `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
}

type RecentResponse struct {
	ID         uint                  `json:"id"`
	SurveyID   uint                  `json:"survey_id"`
	QuestionID uint                  `json:"question_id"`
	Status     models.ResponseStatus `json:"status"`
	CreatedAt  time.Time             `json:"created_at"`
}

type Dashboard struct {
	TotalSurveys    int64            `json:"total_surveys"`
	ActiveSurveys   int64            `json:"active_surveys"`
	TotalContacts   int64            `json:"total_contacts"`
	TotalResponses  int64            `json:"total_responses"`
	TotalCalls      int64            `json:"total_calls"`
	CompletedCalls  int64            `json:"completed_calls"`
	ResponseRate    float64          `json:"response_rate"`
	RecentSurveys   []RecentSurvey   `json:"recent_surveys"`
	RecentResponses []RecentResponse `json:"recent_responses"`
}

type QuestionStats struct {
	QuestionID         uint                `json:"question_id"`
	QuestionText       string              `json:"question_text"`
	QuestionType       models.QuestionType `json:"question_type"`
	TotalResponses     int64               `json:"total_responses"`
	CompletedResponses int64               `json:"completed_responses"`
	AverageConfidence  float64             `json:"average_confidence"`
}

type SurveyAnalytics struct {
	SurveyID    uint             `json:"survey_id"`
	SurveyTitle string           `json:"survey_title"`
	Contacts    *ContactStats    `json:"contact_statistics"`
	Responses   *ResponseSummary `json:"response_statistics"`
	Calls       *CallStats       `json:"call_statistics"`
	Questions   []QuestionStats  `json:"question_statistics"`
}

type DailyTrend struct {
	Date              string `json:"date"`
	SurveysCreated    int    `json:"surveys_created"`
	ResponsesReceived int    `json:"responses_received"`
	CallsMade         int    `json:"calls_made"`
	CallsCompleted    int    `json:"calls_completed"`
}

type Trends struct {
	PeriodDays             int          `json:"period_days"`
	StartDate              time.Time    `json:"start_date"`
	EndDate                time.Time    `json:"end_date"`
	TotalSurveysCreated    int          `json:"total_surveys_created"`
	TotalResponsesReceived int          `json:"total_responses_received"`
	TotalCallsMade         int          `json:"total_calls_made"`
	TotalCallsCompleted    int          `json:"total_calls_completed"`
	Daily                  []DailyTrend `json:"daily_trends"`
}

type LanguageShare struct {
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type LanguageDistribution struct {
	TotalResponses int64                    `json:"total_responses"`
	Languages      map[string]LanguageShare `json:"language_distribution"`
}

type ConfidenceBuckets struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

type AIInsights struct {
	TotalWithInsights  int               `json:"total_responses_with_insights"`
	CommonThemes       map[string]int    `json:"common_themes"`
	Sentiment          map[string]int    `json:"sentiment_analysis"`
	ClarificationNeeds int               `json:"clarification_needs"`
	Confidence         ConfidenceBuckets `json:"confidence_distribution"`
}

// mediumBand is how far below a survey's confidence threshold a score may
// fall and still count as medium
const mediumBand = 0.2

// atLeast compares confidence scores with a tolerance so that a score equal
// to a derived cutoff such as 0.9-0.2 lands in the upper bucket
func atLeast(v, floor float64) bool {
	return v >= floor-1e-9
}

// cached returns the value stored under key or computes and stores it.
// Cache failures only cost the cache.
func cached[T any](ctx context.Context, c cache.AnalyticsCache, key string, compute func() (*T, error)) (*T, error) {
	var hit T
	ok, err := c.Get(ctx, key, &hit)
	if err != nil {
		log.Printf("⚠️  [Analytics] cache read %s failed: %v", key, err)
	}
	if ok {
		return &hit, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, v); err != nil {
		log.Printf("⚠️  [Analytics] cache write %s failed: %v", key, err)
	}
	return v, nil
}

// Dashboard summarises the surveys actor created
func (s *AnalyticsService) Dashboard(ctx context.Context, actor *models.User) (*Dashboard, error) {
	return cached(ctx, s.cache, fmt.Sprintf("dashboard:%d", actor.ID), func() (*Dashboard, error) {
		return s.dashboard(ctx, actor)
	})
}

func (s *AnalyticsService) dashboard(ctx context.Context, actor *models.User) (*Dashboard, error) {
	db := s.db.WithContext(ctx)
	mine := db.Model(&models.Survey{}).Select("id").Where("created_by = ?", actor.ID)
	d := &Dashboard{RecentSurveys: []RecentSurvey{}, RecentResponses: []RecentResponse{}}

	if err := db.Model(&models.Survey{}).Where("created_by = ?", actor.ID).Count(&d.TotalSurveys).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Survey{}).
		Where("created_by = ? AND status = ? AND is_active = ?", actor.ID, models.SurveyActive, true).
		Count(&d.ActiveSurveys).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Contact{}).Where("survey_id IN (?)", mine).Count(&d.TotalContacts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Response{}).Where("survey_id IN (?)", mine).Count(&d.TotalResponses).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.CallLog{}).Where("survey_id IN (?)", mine).Count(&d.TotalCalls).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.CallLog{}).
		Where("survey_id IN (?) AND call_result = ?", mine, models.ResultCompleted).
		Count(&d.CompletedCalls).Error; err != nil {
		return nil, err
	}
	d.ResponseRate = percentage(d.TotalResponses, d.TotalContacts)

	if err := db.Model(&models.Survey{}).
		Where("created_by = ?", actor.ID).
		Order("created_at DESC, id DESC").
		Limit(5).
		Find(&d.RecentSurveys).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Response{}).
		Where("survey_id IN (?)", mine).
		Order("created_at DESC, id DESC").
		Limit(10).
		Find(&d.RecentResponses).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// SurveyAnalytics gathers contact, response, call and per-question numbers
// for one survey
func (s *AnalyticsService) SurveyAnalytics(ctx context.Context, actor *models.User, surveyID uint) (*SurveyAnalytics, error) {
	survey, err := loadSurveyFor(ctx, s.db, actor, surveyID)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s.cache, fmt.Sprintf("survey:%d", surveyID), func() (*SurveyAnalytics, error) {
		out := &SurveyAnalytics{SurveyID: surveyID, SurveyTitle: survey.Title}
		var err error
		if out.Contacts, err = s.contacts.SurveyContactStats(ctx, nil, surveyID); err != nil {
			return nil, err
		}
		if out.Responses, err = s.responses.SurveyResponseSummary(ctx, nil, surveyID); err != nil {
			return nil, err
		}
		if out.Calls, err = s.calls.SurveyCallStats(ctx, nil, surveyID); err != nil {
			return nil, err
		}
		if out.Questions, err = s.questionStats(ctx, surveyID); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (s *AnalyticsService) questionStats(ctx context.Context, surveyID uint) ([]QuestionStats, error) {
	var rows []QuestionStats
	err := s.db.WithContext(ctx).
		Table("questions q").
		Select(`
			q.id AS question_id,
			q.question_text,
			q.question_type,
			COUNT(r.id) AS total_responses,
			COALESCE(SUM(CASE WHEN r.status = ? THEN 1 ELSE 0 END), 0) AS completed_responses,
			COALESCE(AVG(COALESCE(r.confidence_score, 0)), 0) AS average_confidence
		`, models.ResponseCompleted).
		Joins("LEFT JOIN responses r ON r.question_id = q.id").
		Where("q.survey_id = ?", surveyID).
		Group("q.id, q.question_text, q.question_type, q.order_number").
		Order("q.order_number ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].AverageConfidence = round2(rows[i].AverageConfidence)
	}
	return rows, nil
}

// Trends buckets surveys, responses and calls by UTC day over the last days
// days. days must be between 1 and the configured maximum.
func (s *AnalyticsService) Trends(ctx context.Context, actor *models.User, days int) (*Trends, error) {
	if days < 1 || days > s.maxTrendDays {
		return nil, models.NewValidationError("days", fmt.Sprintf("must be between 1 and %d", s.maxTrendDays))
	}
	return cached(ctx, s.cache, fmt.Sprintf("trends:%d:%d", actor.ID, days), func() (*Trends, error) {
		return s.trends(ctx, actor, days)
	})
}

func (s *AnalyticsService) trends(ctx context.Context, actor *models.User, days int) (*Trends, error) {
	end := s.now()
	start := end.AddDate(0, 0, -days)
	db := s.db.WithContext(ctx)
	mine := db.Model(&models.Survey{}).Select("id").Where("created_by = ?", actor.ID)

	var surveyTimes, responseTimes []time.Time
	if err := db.Model(&models.Survey{}).
		Where("created_by = ? AND created_at >= ? AND created_at <= ?", actor.ID, start, end).
		Pluck("created_at", &surveyTimes).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Response{}).
		Where("survey_id IN (?) AND created_at >= ? AND created_at <= ?", mine, start, end).
		Pluck("created_at", &responseTimes).Error; err != nil {
		return nil, err
	}
	var calls []struct {
		CreatedAt  time.Time
		CallResult string
	}
	if err := db.Model(&models.CallLog{}).
		Select("created_at, call_result").
		Where("survey_id IN (?) AND created_at >= ? AND created_at <= ?", mine, start, end).
		Scan(&calls).Error; err != nil {
		return nil, err
	}

	out := &Trends{PeriodDays: days, StartDate: start.UTC(), EndDate: end.UTC()}
	index := map[string]int{}
	for d := start.UTC().Truncate(24 * time.Hour); !d.After(end.UTC()); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		index[key] = len(out.Daily)
		out.Daily = append(out.Daily, DailyTrend{Date: key})
	}
	bucket := func(t time.Time) *DailyTrend {
		if i, ok := index[t.UTC().Format("2006-01-02")]; ok {
			return &out.Daily[i]
		}
		return nil
	}

	for _, t := range surveyTimes {
		out.TotalSurveysCreated++
		if b := bucket(t); b != nil {
			b.SurveysCreated++
		}
	}
	for _, t := range responseTimes {
		out.TotalResponsesReceived++
		if b := bucket(t); b != nil {
			b.ResponsesReceived++
		}
	}
	for _, c := range calls {
		out.TotalCallsMade++
		completed := c.CallResult == string(models.ResultCompleted)
		if completed {
			out.TotalCallsCompleted++
		}
		if b := bucket(c.CreatedAt); b != nil {
			b.CallsMade++
			if completed {
				b.CallsCompleted++
			}
		}
	}
	return out, nil
}

// LanguageDistribution counts actor's responses per language
func (s *AnalyticsService) LanguageDistribution(ctx context.Context, actor *models.User) (*LanguageDistribution, error) {
	return cached(ctx, s.cache, fmt.Sprintf("languages:%d", actor.ID), func() (*LanguageDistribution, error) {
		db := s.db.WithContext(ctx)
		mine := db.Model(&models.Survey{}).Select("id").Where("created_by = ?", actor.ID)
		counts, err := countBy(db.Model(&models.Response{}).Where("survey_id IN (?)", mine), "response_language")
		if err != nil {
			return nil, err
		}
		out := &LanguageDistribution{Languages: map[string]LanguageShare{}}
		for _, n := range counts {
			out.TotalResponses += n
		}
		for lang, n := range counts {
			if lang == "" {
				lang = "unknown"
			}
			share := out.Languages[lang]
			share.Count += n
			share.Percentage = percentage(share.Count, out.TotalResponses)
			out.Languages[lang] = share
		}
		return out, nil
	})
}

// AIInsights aggregates clarifier insights over actor's responses, or over a
// single survey when surveyID is not zero. Confidence buckets follow each
// survey's own confidence_threshold.
func (s *AnalyticsService) AIInsights(ctx context.Context, actor *models.User, surveyID uint) (*AIInsights, error) {
	if surveyID != 0 {
		if _, err := loadSurveyFor(ctx, s.db, actor, surveyID); err != nil {
			return nil, err
		}
	}
	return cached(ctx, s.cache, fmt.Sprintf("insights:%d:%d", actor.ID, surveyID), func() (*AIInsights, error) {
		return s.aiInsights(ctx, actor, surveyID)
	})
}

func (s *AnalyticsService) aiInsights(ctx context.Context, actor *models.User, surveyID uint) (*AIInsights, error) {
	db := s.db.WithContext(ctx)

	var surveys []models.Survey
	sq := db.Select("id, confidence_threshold")
	if surveyID != 0 {
		sq = sq.Where("id = ?", surveyID)
	} else {
		sq = sq.Where("created_by = ?", actor.ID)
	}
	if err := sq.Find(&surveys).Error; err != nil {
		return nil, err
	}
	cutoffs := make(map[uint]float64, len(surveys))
	ids := make([]uint, 0, len(surveys))
	for i := range surveys {
		cutoffs[surveys[i].ID] = surveys[i].ConfidenceCutoff()
		ids = append(ids, surveys[i].ID)
	}

	out := &AIInsights{
		CommonThemes: map[string]int{},
		Sentiment:    map[string]int{"positive": 0, "neutral": 0, "negative": 0},
	}
	if len(ids) == 0 {
		return out, nil
	}

	var responses []models.Response
	if err := db.Select("id, survey_id, ai_insights, ai_clarification_used, confidence_score").
		Where("survey_id IN ?", ids).
		Where("ai_insights IS NOT NULL").
		Find(&responses).Error; err != nil {
		return nil, err
	}

	for i := range responses {
		r := &responses[i]
		if len(r.AIInsights) == 0 {
			continue
		}
		out.TotalWithInsights++

		if themes, ok := r.AIInsights["themes"].([]any); ok {
			for _, t := range themes {
				if theme, ok := t.(string); ok && theme != "" {
					out.CommonThemes[theme]++
				}
			}
		}
		if sentiment, ok := r.AIInsights["sentiment"].(string); ok {
			if _, known := out.Sentiment[sentiment]; known {
				out.Sentiment[sentiment]++
			}
		}
		if r.AIClarificationUsed {
			out.ClarificationNeeds++
		}
		if r.ConfidenceScore != nil {
			switch t := cutoffs[r.SurveyID]; {
			case atLeast(*r.ConfidenceScore, t):
				out.Confidence.High++
			case atLeast(*r.ConfidenceScore, t-mediumBand):
				out.Confidence.Medium++
			default:
				out.Confidence.Low++
			}
		}
	}
	return out, nil
}
