package services

import (
	"testing"

	"survey-voice-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionService_OrderIsUniquePerSurvey(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleSurveyor)
	s := seedSurvey(t, db, owner)
	other := seedSurvey(t, db, owner)
	svc := NewQuestionService(db)
	ctx := t.Context()

	seedQuestion(t, db, s.ID, 1)

	dup := &models.Question{SurveyID: s.ID, QuestionText: "Again?", QuestionType: models.QuestionText, OrderNumber: 1}
	assert.ErrorIs(t, svc.Create(ctx, owner, dup), models.ErrConflict)

	// same order number in another survey is fine
	seedQuestion(t, db, other.ID, 1)

	_, err := svc.BulkCreate(ctx, owner, s.ID, []models.Question{
		{QuestionText: "Second", QuestionType: models.QuestionText, OrderNumber: 2},
		{QuestionText: "Clash", QuestionType: models.QuestionText, OrderNumber: 1},
	})
	assert.ErrorIs(t, err, models.ErrConflict)

	var n int64
	db.Model(&models.Question{}).Where("survey_id = ?", s.ID).Count(&n)
	assert.EqualValues(t, 1, n, "bulk create is all or nothing")
}

func TestQuestionService_OrderedInLanguage(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleSurveyor)
	s := seedSurvey(t, db, owner)
	svc := NewQuestionService(db)
	ctx := t.Context()

	_, err := svc.BulkCreate(ctx, owner, s.ID, []models.Question{
		{
			QuestionText: "Do you smoke?", QuestionType: models.QuestionYesNo, OrderNumber: 2,
			QuestionTranslations: models.LocalizedText{"hi": "क्या आप धूम्रपान करते हैं?"},
		},
		{
			QuestionText: "Pick one", QuestionType: models.QuestionMultipleChoice, OrderNumber: 1,
			Options:             []string{"Tea", "Coffee"},
			OptionsTranslations: models.LocalizedOptions{"hi": {"चाय", "कॉफ़ी"}},
		},
	})
	require.NoError(t, err)

	got, err := svc.OrderedIn(ctx, owner, s.ID, "HI")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].OrderNumber)
	assert.Equal(t, []string{"चाय", "कॉफ़ी"}, got[0].Options)
	assert.Equal(t, "क्या आप धूम्रपान करते हैं?", got[1].Text)

	got, err = svc.OrderedIn(ctx, owner, s.ID, "ta")
	require.NoError(t, err)
	assert.Equal(t, "Do you smoke?", got[1].Text, "missing translation falls back to the base text")

	next, err := svc.Next(ctx, s.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, 2, next.OrderNumber)

	next, err = svc.Next(ctx, s.ID, 2)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestQuestionService_UpdateDeleteAndValidate(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleSurveyor)
	stranger := seedUser(t, db, "stranger@example.com", models.RoleSurveyor)
	s := seedSurvey(t, db, owner)
	q1 := seedQuestion(t, db, s.ID, 1)
	q2 := seedQuestion(t, db, s.ID, 2)
	svc := NewQuestionService(db)
	ctx := t.Context()

	_, err := svc.Get(ctx, stranger, q1.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = svc.Update(ctx, owner, q2.ID, QuestionUpdate{OrderNumber: intPtr(1)})
	assert.ErrorIs(t, err, models.ErrConflict)

	updated, err := svc.Update(ctx, owner, q2.ID, QuestionUpdate{OrderNumber: intPtr(5), MinLength: intPtr(3), IsRequired: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.OrderNumber)

	res, err := svc.ValidateAnswer(ctx, owner, q2.ID, "ok")
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = svc.ValidateAnswer(ctx, owner, q2.ID, "")
	require.NoError(t, err)
	assert.Equal(t, ReasonRequired, res.Reason)

	c := seedContact(t, db, s.ID, "+15550001")
	require.NoError(t, db.Create(&models.Response{
		SurveyID: s.ID, ContactID: c.ID, QuestionID: q1.ID, RawResponse: "yes",
		ResponseType: "text", Status: models.ResponsePending, ProcessingStatus: models.ProcessingPending, Version: 1,
	}).Error)

	assert.ErrorIs(t, svc.Delete(ctx, owner, q1.ID), models.ErrConflict, "answered questions stay")
	require.NoError(t, svc.Delete(ctx, owner, q2.ID))
	_, err = svc.Get(ctx, owner, q2.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func boolPtr(v bool) *bool { return &v }
