package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func TestLocalizedText_Resolve(t *testing.T) {
	text := LocalizedText{"hi": "आप कैसे हैं?", "ta": ""}

	assert.Equal(t, "आप कैसे हैं?", text.Resolve("hi", "How are you?"))
	assert.Equal(t, "आप कैसे हैं?", text.Resolve(" HI ", "How are you?"))
	assert.Equal(t, "How are you?", text.Resolve("ta", "How are you?"), "empty translation falls back")
	assert.Equal(t, "How are you?", text.Resolve("bn", "How are you?"))

	var missing LocalizedText
	assert.Equal(t, "fallback", missing.Resolve("hi", "fallback"))
}

func TestLocalizedOptions_Resolve(t *testing.T) {
	opts := LocalizedOptions{"hi": {"हाँ", "नहीं"}}
	assert.Equal(t, []string{"हाँ", "नहीं"}, opts.Resolve("hi", []string{"Yes", "No"}))
	assert.Equal(t, []string{"Yes", "No"}, opts.Resolve("gu", []string{"Yes", "No"}))
}

func TestLanguages(t *testing.T) {
	assert.Len(t, SupportedLanguages, 10)
	for _, code := range SupportedLanguages {
		assert.True(t, IsSupportedLanguage(code), code)
	}
	assert.False(t, IsSupportedLanguage("fr"))
	assert.Equal(t, "Malayalam", LanguageName("ml"))
	assert.Equal(t, "English", LanguageName("xx"))
	assert.Equal(t, "pa-IN", LanguageLocale("pa"))
	assert.Equal(t, "en-US", LanguageLocale(""))
	assert.Equal(t, "en", NormalizeLanguage("  "))
}

func TestSurvey_Transitions(t *testing.T) {
	s := &Survey{Title: "Health"}
	s.ApplyDefaults()
	require.Equal(t, SurveyDraft, s.Status)

	require.NoError(t, s.Transition(SurveyActive, now))
	assert.True(t, s.IsActive)
	require.NoError(t, s.Transition(SurveyPaused, now))
	require.NoError(t, s.Transition(SurveyActive, now))
	require.NoError(t, s.Transition(SurveyCompleted, now))
	require.NotNil(t, s.CompletedAt)

	err := s.Transition(SurveyActive, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))

	draft := &Survey{Status: SurveyDraft}
	assert.ErrorIs(t, draft.Transition(SurveyPaused, now), ErrConflict)
	assert.ErrorIs(t, draft.Transition(SurveyCompleted, now), ErrConflict)
}

func TestSurvey_DefaultsAndValidate(t *testing.T) {
	s := &Survey{Title: "t", PrimaryLanguage: "HI"}
	s.ApplyDefaults()
	assert.Equal(t, "hi", s.PrimaryLanguage)
	assert.Equal(t, []string{"hi"}, s.SupportedLanguages)
	assert.Equal(t, 3, s.RetryAttempts)
	assert.Equal(t, 24, s.RetryInterval)
	assert.Equal(t, 70, s.ConfidenceThreshold)
	assert.NoError(t, s.Validate())

	s.ConfidenceThreshold = 140
	assert.ErrorIs(t, s.Validate(), ErrValidation)

	bad := &Survey{Title: "t", PrimaryLanguage: "fr"}
	bad.ApplyDefaults()
	assert.ErrorIs(t, bad.Validate(), ErrValidation)
}

func TestContact_RetryBudget(t *testing.T) {
	c := &Contact{PhoneNumber: "+911234567890", Status: ContactCalled, CallAttempts: 2}
	require.NoError(t, c.Schedule(now.Add(time.Hour), 3))
	assert.Equal(t, ContactScheduled, c.Status)
	require.NotNil(t, c.NextCallScheduled)

	exhausted := &Contact{Status: ContactCalled, CallAttempts: 3}
	err := exhausted.Schedule(now, 3)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, ContactCalled, exhausted.Status)
}

func TestContact_Lifecycle(t *testing.T) {
	c := &Contact{PhoneNumber: "+911234567890"}
	c.ApplyDefaults()
	require.Equal(t, ContactPending, c.Status)

	require.NoError(t, c.Schedule(now, 3))
	dur := 42
	require.NoError(t, c.RecordCallResult("no-answer", &dur, now))
	assert.Equal(t, ContactCalled, c.Status)
	assert.Equal(t, 1, c.CallAttempts)
	assert.Equal(t, 42, *c.CallDuration)
	assert.Equal(t, now, *c.LastCallAttempt)

	require.NoError(t, c.Schedule(now, 3))
	require.NoError(t, c.RecordCallResult("completed", nil, now))
	assert.Equal(t, 2, c.CallAttempts)
	require.NoError(t, c.MarkCompleted())

	assert.ErrorIs(t, c.MarkFailed(), ErrConflict)
	assert.ErrorIs(t, c.Schedule(now, 10), ErrConflict)
	assert.ErrorIs(t, c.RecordCallResult("answered", nil, now), ErrConflict)
	assert.Equal(t, 2, c.CallAttempts)
}

func TestContact_CannotCompleteWithoutCall(t *testing.T) {
	c := &Contact{Status: ContactPending}
	assert.ErrorIs(t, c.MarkCompleted(), ErrConflict)
	require.NoError(t, c.MarkFailed())
	assert.True(t, c.Status.IsTerminal())
}

func TestCallLog_BusyIsTerminal(t *testing.T) {
	l := &CallLog{CallSessionID: "abc"}
	l.ApplyDefaults(now)
	require.NoError(t, l.Validate())

	require.NoError(t, l.MarkBusy(now.Add(5*time.Second)))
	assert.Equal(t, CallFailed, l.Status)
	assert.Equal(t, ResultBusy, l.CallResult)
	require.NotNil(t, l.CallEndTime)
	assert.Equal(t, 5, *l.CallDuration)

	assert.ErrorIs(t, l.MarkAnswered(now), ErrConflict)
	assert.ErrorIs(t, l.IncrementQuestionsAsked(), ErrConflict)
	assert.ErrorIs(t, l.MarkFailed("x", "y", now), ErrConflict)
	assert.Equal(t, 0, l.QuestionsAsked)
}

func TestCallLog_HappyPath(t *testing.T) {
	l := &CallLog{CallSessionID: "abc"}
	l.ApplyDefaults(now)

	require.NoError(t, l.MarkRinging())
	require.NoError(t, l.MarkAnswered(now.Add(4*time.Second)))
	assert.Equal(t, 4, *l.RingDuration)
	require.NoError(t, l.IncrementQuestionsAsked())
	require.NoError(t, l.IncrementQuestionsAnswered())
	require.NoError(t, l.IncrementAIClarifications())
	require.NoError(t, l.IncrementLanguageSwitches("HI"))
	assert.Equal(t, "hi", l.DetectedLanguage)

	// busy is only reachable before the call is answered
	assert.ErrorIs(t, l.MarkBusy(now), ErrConflict)

	dur := 90
	require.NoError(t, l.MarkCompleted(&dur, now.Add(94*time.Second)))
	assert.Equal(t, CallCompleted, l.Status)
	assert.True(t, l.SurveyCompleted)
	assert.Equal(t, 90, *l.CallDuration)
	assert.Equal(t, 90, *l.AnswerDuration)
	require.NotNil(t, l.CallEndTime)
	assert.Equal(t, 1, l.QuestionsAsked)

	assert.ErrorIs(t, l.IncrementLanguageSwitches("en"), ErrConflict)
}

func TestCallLog_NoAnswerAndFailed(t *testing.T) {
	l := &CallLog{Status: CallRinging, CallStartTime: now}
	require.NoError(t, l.MarkNoAnswer(now))
	assert.Equal(t, ResultNoAnswer, l.CallResult)
	assert.Equal(t, CallFailed, l.Status)

	f := &CallLog{Status: CallAnswered, CallStartTime: now}
	require.NoError(t, f.MarkFailed("31005", "connection dropped", now))
	assert.Equal(t, "31005", f.ErrorCode)
	assert.Equal(t, ResultFailed, f.CallResult)
	assert.NotNil(t, f.CallEndTime)

	initiated := &CallLog{Status: CallInitiated, CallStartTime: now}
	assert.ErrorIs(t, initiated.MarkCompleted(nil, now), ErrConflict)
}

func TestResponse_BestText(t *testing.T) {
	r := &Response{RawResponse: "raw", TranscribedText: "transcribed"}
	assert.Equal(t, "transcribed", r.BestText())
	r.ProcessedResponse = "processed"
	assert.Equal(t, "processed", r.BestText())
	assert.Equal(t, "", (&Response{TranscribedText: "   "}).BestText())
}

func TestResponse_ApplyClarification(t *testing.T) {
	cases := []struct {
		confidence float64
		status     ResponseStatus
		flagged    bool
	}{
		{0.9, ResponseCompleted, false},
		{0.7, ResponseCompleted, false},
		{0.6999, ResponseNeedsClarification, true},
		{0.5, ResponseNeedsClarification, true},
	}
	for _, tc := range cases {
		r := &Response{Status: ResponsePending, ProcessingStatus: ProcessingPending}
		require.NoError(t, r.BeginProcessing())
		require.NoError(t, r.ApplyClarification("clean", tc.confidence, map[string]any{"k": "v"}, now))
		assert.Equal(t, tc.status, r.Status, "confidence %v", tc.confidence)
		assert.Equal(t, tc.flagged, r.AIClarificationUsed)
		assert.Equal(t, ProcessingCompleted, r.ProcessingStatus)
		assert.Equal(t, now, *r.ProcessedAt)
		if r.Status == ResponseNeedsClarification {
			assert.Less(t, *r.ConfidenceScore, LowConfidenceCutoff)
		}
	}
}

func TestResponse_CompletedIsFinal(t *testing.T) {
	r := &Response{Status: ResponseCompleted, ProcessingStatus: ProcessingCompleted}
	assert.False(t, r.CanProcess())
	assert.ErrorIs(t, r.BeginProcessing(), ErrConflict)
	assert.ErrorIs(t, r.Fail("x"), ErrConflict)
}

func TestResponse_Fail(t *testing.T) {
	r := &Response{Status: ResponsePending, ProcessingStatus: ProcessingPending}
	require.NoError(t, r.Fail("no response text available"))
	assert.Equal(t, ResponseFailed, r.Status)
	assert.Equal(t, ProcessingFailed, r.ProcessingStatus)
	assert.Equal(t, "no response text available", r.AIInsights["error"])

	// failed responses can be reprocessed
	require.NoError(t, r.BeginProcessing())
}

func TestResponse_AddClarificationAttempt(t *testing.T) {
	r := &Response{Status: ResponseNeedsClarification}
	r.AddClarificationAttempt("Did you mean yes?", "yes", now)
	r.AddClarificationAttempt("Please repeat", "twice a week", now.Add(time.Minute))

	assert.Equal(t, 2, r.ClarificationAttempts)
	require.Len(t, r.ClarificationHistory, 2)
	assert.Equal(t, "Did you mean yes?", r.ClarificationHistory[0].ClarificationText)
	assert.Equal(t, "twice a week", r.ClarificationHistory[1].AIResponse)
	assert.Equal(t, ResponseNeedsClarification, r.Status)
	assert.True(t, r.AIClarificationUsed)
}

func TestResponse_ValidateNeedsClarification(t *testing.T) {
	high := 0.8
	r := &Response{SurveyID: 1, ContactID: 1, QuestionID: 1, Status: ResponseNeedsClarification, ConfidenceScore: &high}
	assert.ErrorIs(t, r.Validate(), ErrValidation)

	low := 0.3
	r.ConfidenceScore = &low
	assert.NoError(t, r.Validate())
}

func TestUser_CanAccess(t *testing.T) {
	owner := &User{ID: 1, Role: RoleSurveyor}
	other := &User{ID: 2, Role: RoleAnalyst}
	admin := &User{ID: 3, Role: RoleAdmin}
	super := &User{ID: 4, Role: RoleSurveyor, IsSuperuser: true}
	s := &Survey{CreatedBy: 1}

	assert.True(t, owner.CanAccess(s))
	assert.False(t, other.CanAccess(s))
	assert.True(t, admin.CanAccess(s))
	assert.True(t, super.CanAccess(s))
}

func TestQuestion_Validate(t *testing.T) {
	lo, hi := 10, 5
	q := &Question{QuestionText: "q", QuestionType: QuestionText, OrderNumber: 1, MinLength: &lo, MaxLength: &hi}
	assert.ErrorIs(t, q.Validate(), ErrValidation)

	mc := &Question{QuestionText: "q", QuestionType: QuestionMultipleChoice, OrderNumber: 1}
	assert.ErrorIs(t, mc.Validate(), ErrValidation)

	ok := &Question{
		QuestionText:         "Do you smoke?",
		QuestionType:         QuestionYesNo,
		OrderNumber:          2,
		QuestionTranslations: LocalizedText{"hi": "क्या आप धूम्रपान करते हैं?"},
	}
	require.NoError(t, ok.Validate())
	assert.Equal(t, "क्या आप धूम्रपान करते हैं?", ok.TextIn("hi"))
	assert.Equal(t, "Do you smoke?", ok.TextIn("kn"))
}
