package services

import (
	"testing"
	"time"

	"survey-voice-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCallLogService_AnsweredCall(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleSurveyor)
	s := seedSurvey(t, db, owner)
	c := seedContact(t, db, s.ID, "+919800000001")
	clock := &stepClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc := NewCallLogService(db)
	svc.now = clock.now
	ctx := t.Context()

	l := &models.CallLog{ContactID: c.ID, CallSessionID: "sess-1"}
	require.NoError(t, svc.Create(ctx, owner, l))
	assert.Equal(t, models.CallInitiated, l.Status)
	assert.Equal(t, s.ID, l.SurveyID)
	assert.Equal(t, "+919800000001", l.PhoneNumber)

	_, err := svc.MarkRinging(ctx, owner, l.ID)
	require.NoError(t, err)

	clock.advance(8 * time.Second)
	got, err := svc.MarkAnswered(ctx, owner, l.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RingDuration)
	assert.Equal(t, 8, *got.RingDuration)

	_, err = svc.IncrementQuestionsAsked(ctx, owner, l.ID)
	require.NoError(t, err)
	_, err = svc.IncrementQuestionsAnswered(ctx, owner, l.ID)
	require.NoError(t, err)
	_, err = svc.IncrementLanguageSwitches(ctx, owner, l.ID, "HI")
	require.NoError(t, err)

	clock.advance(52 * time.Second)
	got, err = svc.MarkCompleted(ctx, owner, l.ID, intPtr(61))
	require.NoError(t, err)
	assert.Equal(t, models.CallCompleted, got.Status)
	assert.Equal(t, models.ResultCompleted, got.CallResult)
	assert.True(t, got.SurveyCompleted)
	assert.Equal(t, 61, *got.CallDuration)
	assert.Equal(t, 52, *got.AnswerDuration)
	assert.Equal(t, "hi", got.DetectedLanguage)
	require.NotNil(t, got.CallEndTime)

	_, err = svc.IncrementQuestionsAnswered(ctx, owner, l.ID)
	assert.ErrorIs(t, err, models.ErrConflict, "completed calls are frozen")

	stored, err := svc.GetBySession(ctx, owner, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.QuestionsAsked)
	assert.Equal(t, 1, stored.LanguageSwitches)
}

func TestCallLogService_BusyAndNoAnswer(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleSurveyor)
	s := seedSurvey(t, db, owner)
	c := seedContact(t, db, s.ID, "+1")
	svc := NewCallLogService(db)
	ctx := t.Context()

	busy := &models.CallLog{ContactID: c.ID, CallSessionID: "busy"}
	require.NoError(t, svc.Create(ctx, owner, busy))
	got, err := svc.UpdateStatus(ctx, owner, busy.ID, StatusUpdate{Status: "busy"})
	require.NoError(t, err)
	assert.Equal(t, models.CallFailed, got.Status)
	assert.Equal(t, models.ResultBusy, got.CallResult)
	assert.NotNil(t, got.CallEndTime)

	_, err = svc.MarkAnswered(ctx, owner, busy.ID)
	assert.ErrorIs(t, err, models.ErrConflict)

	silent := &models.CallLog{ContactID: c.ID, CallSessionID: "silent"}
	require.NoError(t, svc.Create(ctx, owner, silent))
	_, err = svc.MarkRinging(ctx, owner, silent.ID)
	require.NoError(t, err)
	got, err = svc.UpdateStatus(ctx, owner, silent.ID, StatusUpdate{Status: "no-answer"})
	require.NoError(t, err)
	assert.Equal(t, models.CallFailed, got.Status)
	assert.Equal(t, models.ResultNoAnswer, got.CallResult)

	_, err = svc.UpdateStatus(ctx, owner, silent.ID, StatusUpdate{Status: "exploded"})
	assert.ErrorIs(t, err, models.ErrValidation)

	stats, err := svc.SurveyCallStats(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalCalls)
	assert.EqualValues(t, 2, stats.ByStatus["failed"])
	assert.EqualValues(t, 1, stats.ByResult["busy"])
	assert.EqualValues(t, 1, stats.ByResult["no-answer"])
	assert.Zero(t, stats.CompletionRate)

	history, err := svc.ContactCallHistory(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestCallLogService_DuplicateSession(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleSurveyor)
	s := seedSurvey(t, db, owner)
	c := seedContact(t, db, s.ID, "+1")
	svc := NewCallLogService(db)
	ctx := t.Context()

	require.NoError(t, svc.Create(ctx, owner, &models.CallLog{ContactID: c.ID, CallSessionID: "dup"}))
	err := svc.Create(ctx, owner, &models.CallLog{ContactID: c.ID, CallSessionID: "dup"})
	assert.ErrorIs(t, err, models.ErrConflict)

	err = svc.Create(ctx, owner, &models.CallLog{ContactID: c.ID, CallSessionID: "x", Status: models.CallAnswered})
	assert.ErrorIs(t, err, models.ErrValidation, "logs must start as initiated")

	_, err = svc.GetBySession(ctx, owner, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCallLogService_CreateIgnoresOutcomeFields(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleSurveyor)
	s := seedSurvey(t, db, owner)
	c := seedContact(t, db, s.ID, "+919800000002")
	svc := NewCallLogService(db)
	ctx := t.Context()

	end := time.Now()
	l := &models.CallLog{
		ContactID:         c.ID,
		CallSessionID:     "sess-forged",
		QuestionsAsked:    -5,
		QuestionsAnswered: 40,
		LanguageSwitches:  7,
		AIClarifications:  3,
		CallEndTime:       &end,
		CallDuration:      intPtr(-1),
		RingDuration:      intPtr(9),
		AnswerDuration:    intPtr(9),
		CallResult:        models.ResultBusy,
		SurveyCompleted:   true,
		ErrorCode:         "E1",
		ErrorMessage:      "boom",
	}
	require.NoError(t, svc.Create(ctx, owner, l))

	stored, err := svc.GetBySession(ctx, owner, "sess-forged")
	require.NoError(t, err)
	assert.Equal(t, models.CallInitiated, stored.Status)
	assert.Zero(t, stored.QuestionsAsked)
	assert.Zero(t, stored.QuestionsAnswered)
	assert.Zero(t, stored.LanguageSwitches)
	assert.Zero(t, stored.AIClarifications)
	assert.Nil(t, stored.CallEndTime)
	assert.Nil(t, stored.CallDuration)
	assert.Nil(t, stored.RingDuration)
	assert.Nil(t, stored.AnswerDuration)
	assert.Empty(t, stored.CallResult)
	assert.False(t, stored.SurveyCompleted)
	assert.Empty(t, stored.ErrorCode)
	assert.Empty(t, stored.ErrorMessage)
}
