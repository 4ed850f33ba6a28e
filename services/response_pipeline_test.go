package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"survey-voice-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockClarifier struct {
	mock.Mock
}

func (m *MockClarifier) Clarify(ctx context.Context, req ClarifyRequest) (*ClarifyResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ClarifyResult), args.Error(1)
}

type pipelineFixture struct {
	db       *gorm.DB
	owner    *models.User
	survey   *models.Survey
	question *models.Question
	contact  *models.Contact
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleSurveyor)
	s := seedSurvey(t, db, owner)
	return &pipelineFixture{
		db:       db,
		owner:    owner,
		survey:   s,
		question: seedQuestion(t, db, s.ID, 1),
		contact:  seedContact(t, db, s.ID, "+919800000001"),
	}
}

func (f *pipelineFixture) response(t *testing.T, raw string) *models.Response {
	t.Helper()
	r := &models.Response{SurveyID: f.survey.ID, ContactID: f.contact.ID, QuestionID: f.question.ID, RawResponse: raw}
	require.NoError(t, NewResponseService(f.db).Create(t.Context(), f.owner, r))
	return r
}

func TestResponsePipeline_ConfidentAnswerCompletes(t *testing.T) {
	f := newPipelineFixture(t)
	r := f.response(t, "haan theek hoon")

	clarifier := new(MockClarifier)
	clarifier.On("Clarify", mock.Anything, mock.MatchedBy(func(req ClarifyRequest) bool {
		return req.ResponseText == "haan theek hoon" && req.Language == "hi"
	})).Return(&ClarifyResult{Text: "Yes, I am fine", Confidence: 0.92, Insights: map[string]any{"sentiment": "positive"}}, nil)

	got, err := NewResponsePipeline(f.db, clarifier, time.Second).Process(t.Context(), f.owner, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseCompleted, got.Status)
	assert.Equal(t, models.ProcessingCompleted, got.ProcessingStatus)
	assert.Equal(t, "Yes, I am fine", got.ProcessedResponse)
	assert.InDelta(t, 0.92, *got.ConfidenceScore, 1e-9)
	assert.False(t, got.AIClarificationUsed)
	assert.NotNil(t, got.ProcessedAt)
	clarifier.AssertExpectations(t)

	_, err = NewResponsePipeline(f.db, clarifier, time.Second).Process(t.Context(), f.owner, r.ID)
	assert.ErrorIs(t, err, models.ErrConflict, "completed responses are final")
}

func TestResponsePipeline_LowConfidenceNeedsClarification(t *testing.T) {
	f := newPipelineFixture(t)

	cases := []struct {
		confidence float64
		want       models.ResponseStatus
	}{
		{0.45, models.ResponseNeedsClarification},
		{0.6999, models.ResponseNeedsClarification},
		{0.7, models.ResponseCompleted},
	}
	for _, tc := range cases {
		r := f.response(t, "umm maybe")
		clarifier := new(MockClarifier)
		clarifier.On("Clarify", mock.Anything, mock.Anything).
			Return(&ClarifyResult{Text: "Maybe", Confidence: tc.confidence}, nil)

		got, err := NewResponsePipeline(f.db, clarifier, time.Second).Process(t.Context(), f.owner, r.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.Status, "confidence %v", tc.confidence)
		assert.Equal(t, tc.want == models.ResponseNeedsClarification, got.AIClarificationUsed)
		assert.Equal(t, models.ProcessingCompleted, got.ProcessingStatus)
	}
}

func TestResponsePipeline_NeedsClarificationCanBeReprocessed(t *testing.T) {
	f := newPipelineFixture(t)
	r := f.response(t, "not sure")

	first := new(MockClarifier)
	first.On("Clarify", mock.Anything, mock.Anything).Return(&ClarifyResult{Text: "unclear", Confidence: 0.3}, nil)
	_, err := NewResponsePipeline(f.db, first, time.Second).Process(t.Context(), f.owner, r.ID)
	require.NoError(t, err)

	_, err = NewResponseService(f.db).AddClarificationAttempt(t.Context(), f.owner, r.ID, "Could you repeat?", "Yes, twice a week")
	require.NoError(t, err)

	second := new(MockClarifier)
	second.On("Clarify", mock.Anything, mock.MatchedBy(func(req ClarifyRequest) bool {
		return req.ResponseText == "unclear"
	})).Return(&ClarifyResult{Text: "Twice a week", Confidence: 0.9}, nil)
	got, err := NewResponsePipeline(f.db, second, time.Second).Process(t.Context(), f.owner, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseCompleted, got.Status)
	assert.Equal(t, 1, got.ClarificationAttempts)
	assert.True(t, got.AIClarificationUsed)
	second.AssertExpectations(t)
}

func TestResponsePipeline_Failures(t *testing.T) {
	f := newPipelineFixture(t)

	empty := f.response(t, "   ")
	clarifier := new(MockClarifier)
	got, err := NewResponsePipeline(f.db, clarifier, time.Second).Process(t.Context(), f.owner, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseFailed, got.Status)
	assert.Equal(t, models.ProcessingFailed, got.ProcessingStatus)
	assert.Equal(t, "no response text available", got.AIInsights["error"])
	clarifier.AssertNotCalled(t, "Clarify", mock.Anything, mock.Anything)

	broken := f.response(t, "yes")
	clarifier.On("Clarify", mock.Anything, mock.Anything).Return(nil, errors.New("upstream 503"))
	got, err = NewResponsePipeline(f.db, clarifier, time.Second).Process(t.Context(), f.owner, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseFailed, got.Status)
	assert.Contains(t, got.AIInsights["error"], "upstream 503")

	stored, err := NewResponseService(f.db).Get(t.Context(), f.owner, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingFailed, stored.ProcessingStatus, "failure is persisted")
}

type slowClarifier struct{}

func (slowClarifier) Clarify(ctx context.Context, _ ClarifyRequest) (*ClarifyResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResponsePipeline_ClarifierTimeout(t *testing.T) {
	f := newPipelineFixture(t)
	r := f.response(t, "yes")

	got, err := NewResponsePipeline(f.db, slowClarifier{}, 20*time.Millisecond).Process(t.Context(), f.owner, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseFailed, got.Status)
	assert.Contains(t, got.AIInsights["error"], "timed out")
}

func TestResponsePipeline_CallerCancelStillRecordsFailure(t *testing.T) {
	f := newPipelineFixture(t)
	r := f.response(t, "yes")

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	got, err := NewResponsePipeline(f.db, slowClarifier{}, time.Minute).Process(ctx, f.owner, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseFailed, got.Status)

	var stored models.Response
	require.NoError(t, f.db.First(&stored, r.ID).Error)
	assert.Equal(t, models.ProcessingFailed, stored.ProcessingStatus, "the row is not left in processing")
	assert.Equal(t, models.ResponseFailed, stored.Status)
	reason, _ := stored.AIInsights["error"].(string)
	assert.Contains(t, reason, "abandoned")
	assert.NotContains(t, reason, "timed out after", "the pipeline timeout did not fire")
}

func TestResponsePipeline_NoClarifierPassesThrough(t *testing.T) {
	f := newPipelineFixture(t)
	r := f.response(t, "I walk every day")

	got, err := NewResponsePipeline(f.db, nil, time.Second).Process(t.Context(), f.owner, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "I walk every day", got.ProcessedResponse)
	assert.InDelta(t, 0.5, *got.ConfidenceScore, 1e-9)
	assert.Equal(t, models.ResponseNeedsClarification, got.Status)
	assert.Equal(t, "no AI service available", got.AIInsights["error"])
}

func TestResponsePipeline_ProcessClaimedRequiresClaim(t *testing.T) {
	f := newPipelineFixture(t)
	r := f.response(t, "yes")

	_, err := NewResponsePipeline(f.db, nil, time.Second).ProcessClaimed(t.Context(), r.ID)
	assert.ErrorIs(t, err, models.ErrConflict)
}
