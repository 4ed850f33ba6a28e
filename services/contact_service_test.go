package services

import (
	"strings"
	"testing"
	"time"

	"survey-voice-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactService_RetryBudget(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleSurveyor)
	s := seedSurvey(t, db, owner, func(s *models.Survey) { s.RetryAttempts = 2 })
	c := seedContact(t, db, s.ID, "+919800000001")
	svc := NewContactService(db)
	ctx := t.Context()

	pending, err := svc.PendingContacts(ctx, owner, s.ID, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = svc.RecordCallResult(ctx, owner, c.ID, string(models.ResultNoAnswer), nil)
	require.NoError(t, err)

	got, err := svc.Schedule(ctx, owner, c.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.ContactScheduled, got.Status)
	assert.Equal(t, 1, got.CallAttempts)

	pending, err = svc.PendingContacts(ctx, owner, s.ID, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "scheduled contacts with attempts left are admitted")

	_, err = svc.RecordCallResult(ctx, owner, c.ID, string(models.ResultBusy), nil)
	require.NoError(t, err)

	_, err = svc.Schedule(ctx, owner, c.ID, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, models.ErrConflict, "retry budget exhausted")

	pending, err = svc.PendingContacts(ctx, owner, s.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	got, err = svc.MarkFailed(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContactFailed, got.Status)

	_, err = svc.MarkCompleted(ctx, owner, c.ID)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestContactService_PendingSkipsExhaustedPendingRows(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleSurveyor)
	s := seedSurvey(t, db, owner, func(s *models.Survey) { s.RetryAttempts = 1 })
	fresh := seedContact(t, db, s.ID, "+1")
	used := seedContact(t, db, s.ID, "+2")
	require.NoError(t, db.Model(used).Update("call_attempts", 1).Error)

	pending, err := NewContactService(db).PendingContacts(t.Context(), nil, s.ID, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, fresh.ID, pending[0].ID)
}

func TestContactService_ImportCSV(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleSurveyor)
	s := seedSurvey(t, db, owner)
	svc := NewContactService(db)
	ctx := t.Context()

	csv := "Phone_Number,name,preferred_language,village\n" +
		"+919800000001,Asha,hi,Rampur\n" +
		"+919800000002,Ravi,,\n"
	contacts, err := svc.ImportCSV(ctx, owner, s.ID, strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "hi", contacts[0].PreferredLanguage)
	assert.Equal(t, "Rampur", contacts[0].AdditionalData["village"])
	assert.Equal(t, models.DefaultLanguage, contacts[1].PreferredLanguage)
	assert.Nil(t, contacts[1].AdditionalData)

	_, err = svc.ImportCSV(ctx, owner, s.ID, strings.NewReader("name,email\nA,a@example.com\n"))
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.ImportCSV(ctx, owner, s.ID, strings.NewReader("phone_number,preferred_language\n+1,xx\n"))
	assert.ErrorIs(t, err, models.ErrValidation, "unsupported language rejects the whole file")

	stats, err := svc.SurveyContactStats(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 2, stats.ByStatus["pending"])
	assert.EqualValues(t, 1, stats.ByLanguage["hi"])
	assert.EqualValues(t, 1, stats.ByLanguage["en"])
}

func TestContactService_UpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleSurveyor)
	stranger := seedUser(t, db, "stranger@example.com", models.RoleAnalyst)
	s := seedSurvey(t, db, owner)
	c := seedContact(t, db, s.ID, "+1")
	svc := NewContactService(db)
	ctx := t.Context()

	name := "Meera"
	_, err := svc.Update(ctx, stranger, c.ID, ContactUpdate{Name: &name})
	assert.ErrorIs(t, err, models.ErrForbidden)

	got, err := svc.Update(ctx, owner, c.ID, ContactUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Meera", got.Name)
	assert.Equal(t, 2, got.Version)

	list, total, err := svc.List(ctx, stranger, ContactFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	require.NoError(t, svc.Delete(ctx, owner, c.ID))
	_, err = svc.Get(ctx, owner, c.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
