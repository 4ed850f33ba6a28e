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

// noClarifierConfidence is recorded when no AI provider is configured and the
// answer is passed through unchanged
const noClarifierConfidence = 0.5

// finalWriteTimeout bounds the write that ends a run, which must land even
// when the caller's context is already done
const finalWriteTimeout = 5 * time.Second

// ResponsePipeline turns a captured answer into a processed one using the
// clarifier. No database transaction is open while the clarifier runs.
type ResponsePipeline struct {
	db        *gorm.DB
	clarifier Clarifier
	timeout   time.Duration
	now       func() time.Time
}

// NewResponsePipeline builds a pipeline. clarifier may be nil, in which case
// answers are passed through with a low confidence.
func NewResponsePipeline(db *gorm.DB, clarifier Clarifier, timeout time.Duration) *ResponsePipeline {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ResponsePipeline{db: db, clarifier: clarifier, timeout: timeout, now: time.Now}
}

// ClarifierState is "disabled" without a clarifier, otherwise whatever the
// clarifier reports about its provider
func (p *ResponsePipeline) ClarifierState() string {
	if p.clarifier == nil {
		return "disabled"
	}
	if s, ok := p.clarifier.(interface{ State() string }); ok {
		return s.State()
	}
	return "ready"
}

// Process claims response id for the pipeline and runs it. Completed
// responses and responses already being processed are a Conflict.
func (p *ResponsePipeline) Process(ctx context.Context, actor *models.User, id uint) (*models.Response, error) {
	r, err := findByID[models.Response](ctx, p.db, id, "response")
	if err != nil {
		return nil, err
	}
	if _, err := loadSurveyFor(ctx, p.db, actor, r.SurveyID); err != nil {
		return nil, err
	}
	if err := r.BeginProcessing(); err != nil {
		return nil, err
	}
	if err := saveVersioned(ctx, p.db, r); err != nil {
		return nil, err
	}
	return p.run(ctx, r)
}

// ProcessClaimed runs the pipeline for a response the caller already moved
// to processing (the worker's claim)
func (p *ResponsePipeline) ProcessClaimed(ctx context.Context, id uint) (*models.Response, error) {
	r, err := findByID[models.Response](ctx, p.db, id, "response")
	if err != nil {
		return nil, err
	}
	if r.ProcessingStatus != models.ProcessingInProgress {
		return nil, fmt.Errorf("response %d is %s, not claimed: %w", id, r.ProcessingStatus, models.ErrConflict)
	}
	return p.run(ctx, r)
}

// finalize writes the outcome of a run. A claimed response left in
// processing would wait for the stale sweep, so the write outlives ctx.
func (p *ResponsePipeline) finalize(ctx context.Context, r *models.Response) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()
	return saveVersioned(wctx, p.db, r)
}

func (p *ResponsePipeline) run(ctx context.Context, r *models.Response) (*models.Response, error) {
	text := r.BestText()
	if strings.TrimSpace(text) == "" {
		if err := r.Fail("no response text available"); err != nil {
			return nil, err
		}
		log.Printf("⚠️  [ResponsePipeline] Response #%d has no text", r.ID)
		return r, p.finalize(ctx, r)
	}

	result, err := p.clarify(ctx, r, text)
	if err != nil {
		log.Printf("❌ [ResponsePipeline] Response #%d clarification failed: %v", r.ID, err)
		if ferr := r.Fail("AI processing failed: " + err.Error()); ferr != nil {
			return nil, ferr
		}
		return r, p.finalize(ctx, r)
	}

	if err := r.ApplyClarification(result.Text, result.Confidence, result.Insights, p.now()); err != nil {
		return nil, err
	}
	if err := p.finalize(ctx, r); err != nil {
		return nil, err
	}
	log.Printf("✅ [ResponsePipeline] Response #%d -> %s (confidence %.2f)", r.ID, r.Status, result.Confidence)
	return r, nil
}

func (p *ResponsePipeline) clarify(ctx context.Context, r *models.Response, text string) (*ClarifyResult, error) {
	if p.clarifier == nil {
		return &ClarifyResult{
			Text:       text,
			Confidence: noClarifierConfidence,
			Insights:   map[string]any{"error": "no AI service available"},
		}, nil
	}

	question, err := findByID[models.Question](ctx, p.db, r.QuestionID, "question")
	if err != nil {
		return nil, err
	}
	lang := models.NormalizeLanguage(r.ResponseLanguage)

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.clarifier.Clarify(cctx, ClarifyRequest{
		ResponseText: text,
		QuestionText: question.TextIn(lang),
		QuestionType: question.QuestionType,
		Options:      question.OptionsIn(lang),
		Language:     lang,
		Context:      map[string]any{"survey_id": r.SurveyID, "contact_id": r.ContactID},
	})
	if err != nil {
		if perr := ctx.Err(); perr != nil {
			return nil, fmt.Errorf("clarification abandoned: %w", perr)
		}
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("clarifier timed out after %s: %w", p.timeout, err)
		}
		return nil, err
	}
	if result == nil {
		return nil, errClarifierEmpty
	}
	if strings.TrimSpace(result.Text) == "" {
		result.Text = text
	}
	if result.Insights == nil {
		result.Insights = map[string]any{}
	}
	result.Confidence = clampConfidence(result.Confidence)
	return result, nil
}
