package services

import (
	"testing"

	"survey-voice-api/database/dbtest"
	"survey-voice-api/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbtest.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{Email: email, FullName: email, HashedPassword: "x", IsActive: true, Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedSurvey(t *testing.T, db *gorm.DB, owner *models.User, mutate ...func(*models.Survey)) *models.Survey {
	t.Helper()
	s := &models.Survey{Title: "Health check-in", PrimaryLanguage: "en", SupportedLanguages: []string{"en", "hi"}}
	for _, m := range mutate {
		m(s)
	}
	require.NoError(t, NewSurveyService(db).Create(t.Context(), owner, s))
	return s
}

func seedQuestion(t *testing.T, db *gorm.DB, surveyID uint, order int) *models.Question {
	t.Helper()
	q := &models.Question{SurveyID: surveyID, QuestionText: "How are you?", QuestionType: models.QuestionText, OrderNumber: order}
	require.NoError(t, NewQuestionService(db).Create(t.Context(), nil, q))
	return q
}

func seedContact(t *testing.T, db *gorm.DB, surveyID uint, phone string) *models.Contact {
	t.Helper()
	c := &models.Contact{SurveyID: surveyID, PhoneNumber: phone, PreferredLanguage: "hi"}
	require.NoError(t, NewContactService(db).Create(t.Context(), nil, c))
	return c
}
