package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"survey-voice-api/config"
	"survey-voice-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var farewells = models.LocalizedText{
	"en": "Thank you for completing the survey. Goodbye.",
	"hi": "सर्वेक्षण पूरा करने के लिए धन्यवाद। नमस्ते।",
}

// VoiceService drives survey calls: it dials contacts through the telephony
// provider and answers the provider's webhooks with TwiML
type VoiceService struct {
	db        *gorm.DB
	calls     *CallLogService
	contacts  *ContactService
	questions *QuestionService
	responses *ResponseService
	provider  TelephonyProvider
	baseURL   string
	token     string
}

func NewVoiceService(db *gorm.DB, provider TelephonyProvider, cfg config.TelephonyConfig) *VoiceService {
	return &VoiceService{
		db:        db,
		calls:     NewCallLogService(db),
		contacts:  NewContactService(db),
		questions: NewQuestionService(db),
		responses: NewResponseService(db),
		provider:  provider,
		baseURL:   strings.TrimRight(cfg.PublicBaseURL, "/"),
		token:     cfg.WebhookToken,
	}
}

// GatherInput is the speech result posted back by a Gather verb
type GatherInput struct {
	SessionID    string
	QuestionID   uint
	SpeechResult string
	Confidence   *float64
	Language     string
}

// StatusCallback is a provider call status notification
type StatusCallback struct {
	SessionID    string
	CallStatus   string
	Duration     *int
	ErrorCode    string
	ErrorMessage string
}

func (s *VoiceService) webhookURL(action, sessionID string, extra url.Values) string {
	q := url.Values{}
	for k, v := range extra {
		q[k] = v
	}
	q.Set("session", sessionID)
	if s.token != "" {
		q.Set("token", s.token)
	}
	return fmt.Sprintf("%s/api/v1/voice/%s?%s", s.baseURL, action, q.Encode())
}

func (s *VoiceService) promptURL(sessionID string, after int) string {
	return s.webhookURL("twiml", sessionID, url.Values{"after": {strconv.Itoa(after)}})
}

// StartCall opens a call log for the contact and asks the provider to dial.
// The survey must be active and the contact must have attempts left.
func (s *VoiceService) StartCall(ctx context.Context, actor *models.User, contactID uint) (*models.CallLog, error) {
	if s.provider == nil {
		return nil, &ExternalServiceError{Service: "telephony", StatusCode: http.StatusServiceUnavailable, Message: "telephony provider not configured"}
	}
	contact, err := s.contacts.Get(ctx, actor, contactID)
	if err != nil {
		return nil, err
	}
	survey, err := loadSurveyFor(ctx, s.db, actor, contact.SurveyID)
	if err != nil {
		return nil, err
	}
	if survey.Status != models.SurveyActive {
		return nil, fmt.Errorf("survey %d is %s: %w", survey.ID, survey.Status, models.ErrConflict)
	}
	if !contact.Status.CanTransitionTo(models.ContactCalled) || !contact.CanRetry(survey.RetryAttempts) {
		return nil, fmt.Errorf("contact %d cannot be called (status %s, %d attempts): %w",
			contact.ID, contact.Status, contact.CallAttempts, models.ErrConflict)
	}

	call := &models.CallLog{ContactID: contact.ID, SurveyID: survey.ID, CallSessionID: uuid.NewString()}
	if err := s.calls.Create(ctx, actor, call); err != nil {
		return nil, err
	}

	placed, err := s.provider.PlaceCall(ctx, PlaceCallRequest{
		To:        contact.PhoneNumber,
		AnswerURL: s.promptURL(call.CallSessionID, 0),
		StatusURL: s.webhookURL("status", call.CallSessionID, nil),
	})
	if err != nil {
		log.Printf("❌ [VoiceService] Dial failed for contact #%d: %v", contact.ID, err)
		if _, ferr := s.calls.MarkFailed(ctx, nil, call.ID, "dial_failed", err.Error()); ferr != nil {
			log.Printf("⚠️  [VoiceService] Could not fail call %s: %v", call.CallSessionID, ferr)
		}
		if _, cerr := s.contacts.RecordCallResult(ctx, nil, contact.ID, string(models.ResultFailed), nil); cerr != nil {
			log.Printf("⚠️  [VoiceService] Could not record result for contact #%d: %v", contact.ID, cerr)
		}
		return nil, err
	}

	call, err = s.calls.Update(ctx, nil, call.ID, CallLogUpdate{ExternalCallID: &placed.ExternalID})
	if err != nil {
		return nil, err
	}
	log.Printf("✅ [VoiceService] Call %s placed to contact #%d via %s", call.CallSessionID, contact.ID, s.provider.GetProviderName())
	return call, nil
}

// callLanguage is the detected language of the call, falling back to the
// contact's preference
func callLanguage(call *models.CallLog, contact *models.Contact) string {
	if call.DetectedLanguage != "" {
		return call.DetectedLanguage
	}
	return contact.PreferredLanguage
}

func (s *VoiceService) loadCall(ctx context.Context, sessionID string) (*models.CallLog, *models.Contact, error) {
	call, err := s.calls.GetBySession(ctx, nil, sessionID)
	if err != nil {
		return nil, nil, err
	}
	contact, err := findByID[models.Contact](ctx, s.db, call.ContactID, "contact")
	if err != nil {
		return nil, nil, err
	}
	return call, contact, nil
}

// Prompt renders the first question after order number `after` in the
// call's language, or a farewell once the survey has run out of questions
func (s *VoiceService) Prompt(ctx context.Context, sessionID string, after int) ([]byte, error) {
	call, contact, err := s.loadCall(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	lang := callLanguage(call, contact)
	locale := models.LanguageLocale(lang)
	if call.IsTerminal() {
		return hangupTwiML(locale, "")
	}

	q, err := s.questions.Next(ctx, call.SurveyID, after)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return hangupTwiML(locale, farewells.Resolve(lang, farewells[models.DefaultLanguage]))
	}

	if _, err := s.calls.IncrementQuestionsAsked(ctx, nil, call.ID); err != nil {
		log.Printf("⚠️  [VoiceService] questions_asked not updated for %s: %v", sessionID, err)
	}
	action := s.webhookURL("gather", sessionID, url.Values{"question": {strconv.FormatUint(uint64(q.ID), 10)}})
	return askTwiML(locale, spokenPrompt(q.TextIn(lang), q.OptionsIn(lang)), action, s.promptURL(sessionID, after))
}

// Gather stores a spoken answer and moves on to the next question. An answer
// that fails validation is not stored; the question is asked again with its
// clarification prompt.
func (s *VoiceService) Gather(ctx context.Context, in GatherInput) ([]byte, error) {
	call, contact, err := s.loadCall(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	// answers arriving after the call ended are dropped
	if call.IsTerminal() {
		return hangupTwiML(models.LanguageLocale(callLanguage(call, contact)), "")
	}
	q, err := findByID[models.Question](ctx, s.db, in.QuestionID, "question")
	if err != nil {
		return nil, err
	}
	if q.SurveyID != call.SurveyID {
		return nil, models.NewValidationError("question", "question belongs to another survey")
	}

	lang := callLanguage(call, contact)
	if spoken := models.NormalizeLanguage(in.Language); in.Language != "" && spoken != lang && models.IsSupportedLanguage(spoken) {
		if call, err = s.calls.IncrementLanguageSwitches(ctx, nil, call.ID, spoken); err != nil {
			return nil, err
		}
		lang = spoken
	}

	text := strings.TrimSpace(in.SpeechResult)
	if result := ValidateResponse(q, text); !result.Valid {
		return s.reask(ctx, call, q, lang, result.Reason)
	}

	if text != "" {
		r := &models.Response{
			SurveyID:         call.SurveyID,
			ContactID:        call.ContactID,
			QuestionID:       q.ID,
			RawResponse:      text,
			TranscribedText:  text,
			ConfidenceScore:  in.Confidence,
			ResponseLanguage: lang,
			CallSessionID:    call.CallSessionID,
		}
		if err := s.responses.Create(ctx, nil, r); err != nil {
			return nil, err
		}
		if _, err := s.calls.IncrementQuestionsAnswered(ctx, nil, call.ID); err != nil {
			return nil, err
		}
	}
	return s.Prompt(ctx, in.SessionID, q.OrderNumber)
}

func (s *VoiceService) reask(ctx context.Context, call *models.CallLog, q *models.Question, lang, reason string) ([]byte, error) {
	log.Printf("[VoiceService] Re-asking question #%d on %s: %s", q.ID, call.CallSessionID, reason)
	if q.AIClarificationEnabled {
		if _, err := s.calls.IncrementAIClarifications(ctx, nil, call.ID); err != nil {
			return nil, err
		}
	}
	prompt := q.ClarificationPromptIn(lang)
	if prompt == "" {
		prompt = q.TextIn(lang)
	}
	locale := models.LanguageLocale(lang)
	action := s.webhookURL("gather", call.CallSessionID, url.Values{"question": {strconv.FormatUint(uint64(q.ID), 10)}})
	return askTwiML(locale, spokenPrompt(prompt, q.OptionsIn(lang)), action, s.promptURL(call.CallSessionID, q.OrderNumber-1))
}

// HandleStatus maps a provider status callback onto the call log lifecycle.
// Once the call ends the outcome is recorded on the contact. Callbacks for
// calls that already ended are acknowledged without change.
func (s *VoiceService) HandleStatus(ctx context.Context, in StatusCallback) (*models.CallLog, error) {
	call, err := s.calls.GetBySession(ctx, nil, in.SessionID)
	if err != nil {
		return nil, err
	}
	if call.IsTerminal() {
		return call, nil
	}

	var next string
	switch strings.ToLower(in.CallStatus) {
	case "queued", "initiated":
		return call, nil
	case "ringing":
		if call.Status != models.CallInitiated {
			return call, nil
		}
		next = string(models.CallRinging)
	case "in-progress", "answered":
		if call.Status == models.CallAnswered {
			return call, nil
		}
		next = string(models.CallAnswered)
	case "completed":
		next = string(models.CallCompleted)
		if call.Status != models.CallAnswered {
			next = string(models.CallNoAnswer)
		}
	case "busy":
		next = string(models.CallBusy)
	case "no-answer":
		next = string(models.CallNoAnswer)
	case "failed":
		next = string(models.CallFailed)
		if in.ErrorCode == "" {
			in.ErrorCode = "failed"
		}
	case "canceled":
		next = string(models.CallFailed)
		in.ErrorCode, in.ErrorMessage = "canceled", "call canceled"
	default:
		return nil, models.NewValidationError("CallStatus", "unknown provider status "+in.CallStatus)
	}

	call, err = s.calls.UpdateStatus(ctx, nil, call.ID, StatusUpdate{
		Status:       next,
		Duration:     in.Duration,
		ErrorCode:    in.ErrorCode,
		ErrorMessage: in.ErrorMessage,
	})
	if err != nil {
		return nil, err
	}
	if call.IsTerminal() {
		s.recordOutcome(ctx, call)
	}
	return call, nil
}

// recordOutcome registers the finished attempt on the contact and completes
// the contact when every question was answered
func (s *VoiceService) recordOutcome(ctx context.Context, call *models.CallLog) {
	contact, err := s.contacts.RecordCallResult(ctx, nil, call.ContactID, string(call.CallResult), call.CallDuration)
	if err != nil {
		log.Printf("⚠️  [VoiceService] Could not record %s for contact #%d: %v", call.CallResult, call.ContactID, err)
		return
	}
	if call.Status != models.CallCompleted {
		return
	}
	// skipped optional questions do not block completion
	if call.QuestionsAnswered == 0 {
		return
	}
	var missing int64
	answered := s.db.Model(&models.Response{}).Select("question_id").
		Where("contact_id = ? AND call_session_id = ?", call.ContactID, call.CallSessionID)
	if err := s.db.WithContext(ctx).Model(&models.Question{}).
		Where("survey_id = ? AND is_required = ? AND id NOT IN (?)", call.SurveyID, true, answered).
		Count(&missing).Error; err != nil {
		log.Printf("⚠️  [VoiceService] Could not check required questions for survey #%d: %v", call.SurveyID, err)
		return
	}
	if missing > 0 {
		return
	}
	if _, err := s.contacts.MarkCompleted(ctx, nil, contact.ID); err != nil {
		log.Printf("⚠️  [VoiceService] Could not complete contact #%d: %v", contact.ID, err)
		return
	}
	log.Printf("✅ [VoiceService] Contact #%d completed the survey on %s", contact.ID, call.CallSessionID)
}
