package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"survey-voice-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapCache is an in-memory AnalyticsCache that counts hits
type mapCache struct {
	entries map[string][]byte
	hits    int
}

func newMapCache() *mapCache { return &mapCache{entries: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string, dest any) (bool, error) {
	data, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(data, dest)
}

func (c *mapCache) Set(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	c.entries[key] = data
	return err
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func scoreResponse(t *testing.T, f *pipelineFixture, confidence float64, insights map[string]any) {
	t.Helper()
	r := f.response(t, "answer")
	require.NoError(t, f.db.Model(&models.Response{}).Where("id = ?", r.ID).Updates(map[string]any{
		"confidence_score":      confidence,
		"ai_clarification_used": confidence < models.LowConfidenceCutoff,
	}).Error)
	if insights != nil {
		stored, err := findByID[models.Response](t.Context(), f.db, r.ID, "response")
		require.NoError(t, err)
		stored.AIInsights = insights
		require.NoError(t, saveVersioned(t.Context(), f.db, stored))
	}
}

func TestAnalyticsService_AIInsightsUseSurveyThreshold(t *testing.T) {
	f := newPipelineFixture(t)
	svc := NewAnalyticsService(f.db, nil, 365)

	// default threshold 70: high >= 0.7, medium >= 0.5
	scoreResponse(t, f, 0.95, map[string]any{"sentiment": "positive", "themes": []any{"diet", "sleep"}})
	scoreResponse(t, f, 0.7, map[string]any{"sentiment": "neutral", "themes": []any{"diet"}})
	scoreResponse(t, f, 0.55, map[string]any{"sentiment": "negative"})
	scoreResponse(t, f, 0.2, map[string]any{"sentiment": "confused"})
	scoreResponse(t, f, 0.9, nil)

	got, err := svc.AIInsights(t.Context(), f.owner, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalWithInsights)
	assert.Equal(t, 2, got.CommonThemes["diet"])
	assert.Equal(t, 1, got.CommonThemes["sleep"])
	assert.Equal(t, map[string]int{"positive": 1, "neutral": 1, "negative": 1}, got.Sentiment)
	assert.Equal(t, 2, got.ClarificationNeeds)
	assert.Equal(t, ConfidenceBuckets{High: 2, Medium: 1, Low: 1}, got.Confidence)

	strict := 90
	_, err = NewSurveyService(f.db).Update(t.Context(), f.owner, f.survey.ID, SurveyUpdate{ConfidenceThreshold: &strict})
	require.NoError(t, err)

	got, err = svc.AIInsights(t.Context(), f.owner, f.survey.ID)
	require.NoError(t, err)
	assert.Equal(t, ConfidenceBuckets{High: 1, Medium: 1, Low: 2}, got.Confidence)
}

func TestAnalyticsService_DashboardIsCached(t *testing.T) {
	f := newPipelineFixture(t)
	c := newMapCache()
	svc := NewAnalyticsService(f.db, c, 365)
	f.response(t, "yes")

	d, err := svc.Dashboard(t.Context(), f.owner)
	require.NoError(t, err)
	assert.EqualValues(t, 1, d.TotalSurveys)
	assert.EqualValues(t, 1, d.TotalContacts)
	assert.EqualValues(t, 1, d.TotalResponses)
	assert.Equal(t, 100.0, d.ResponseRate)
	assert.Len(t, d.RecentResponses, 1)

	f.response(t, "again")
	d, err = svc.Dashboard(t.Context(), f.owner)
	require.NoError(t, err)
	assert.EqualValues(t, 1, d.TotalResponses, "served from cache")
	assert.Equal(t, 1, c.hits)
}

func TestAnalyticsService_Trends(t *testing.T) {
	f := newPipelineFixture(t)
	svc := NewAnalyticsService(f.db, nil, 30)
	f.response(t, "yes")
	require.NoError(t, NewCallLogService(f.db).Create(t.Context(), f.owner,
		&models.CallLog{ContactID: f.contact.ID, CallSessionID: "trend-1"}))

	_, err := svc.Trends(t.Context(), f.owner, 0)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = svc.Trends(t.Context(), f.owner, 31)
	assert.ErrorIs(t, err, models.ErrValidation)

	got, err := svc.Trends(t.Context(), f.owner, 7)
	require.NoError(t, err)
	assert.Len(t, got.Daily, 8)
	assert.Equal(t, 1, got.TotalSurveysCreated)
	assert.Equal(t, 1, got.TotalResponsesReceived)
	assert.Equal(t, 1, got.TotalCallsMade)
	assert.Zero(t, got.TotalCallsCompleted)

	today := got.Daily[len(got.Daily)-1]
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), today.Date)
	assert.Equal(t, 1, today.ResponsesReceived)
}

func TestAnalyticsService_SurveyAnalyticsAndLanguages(t *testing.T) {
	f := newPipelineFixture(t)
	svc := NewAnalyticsService(f.db, nil, 365)
	en := seedContact(t, f.db, f.survey.ID, "+2")
	f.response(t, "haan")
	require.NoError(t, NewResponseService(f.db).Create(t.Context(), f.owner, &models.Response{
		SurveyID: f.survey.ID, ContactID: en.ID, QuestionID: f.question.ID, RawResponse: "yes", ResponseLanguage: "en",
	}))
	scoreResponse(t, f, 0.8, nil)

	a, err := svc.SurveyAnalytics(t.Context(), f.owner, f.survey.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, a.Contacts.Total)
	assert.EqualValues(t, 3, a.Responses.TotalResponses)
	require.Len(t, a.Questions, 1)
	assert.EqualValues(t, 3, a.Questions[0].TotalResponses)
	assert.InDelta(t, 0.27, a.Questions[0].AverageConfidence, 0.001)

	stranger := seedUser(t, f.db, "stranger@example.com", models.RoleSurveyor)
	_, err = svc.SurveyAnalytics(t.Context(), stranger, f.survey.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	langs, err := svc.LanguageDistribution(t.Context(), f.owner)
	require.NoError(t, err)
	assert.EqualValues(t, 3, langs.TotalResponses)
	assert.EqualValues(t, 2, langs.Languages["hi"].Count)
	assert.InDelta(t, 66.67, langs.Languages["hi"].Percentage, 0.001)
	assert.InDelta(t, 33.33, langs.Languages["en"].Percentage, 0.001)
}
