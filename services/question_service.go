package services

import (
	"context"
	"fmt"

	"survey-voice-api/models"

	"gorm.io/gorm"
)

type QuestionService struct {
	db *gorm.DB
}

func NewQuestionService(db *gorm.DB) *QuestionService {
	return &QuestionService{db: db}
}

// QuestionUpdate carries editable question fields; nil means unchanged
type QuestionUpdate struct {
	QuestionText           *string                 `json:"question_text"`
	QuestionTranslations   models.LocalizedText    `json:"question_translations"`
	QuestionType           *models.QuestionType    `json:"question_type"`
	OrderNumber            *int                    `json:"order_number"`
	IsRequired             *bool                   `json:"is_required"`
	IsConditional          *bool                   `json:"is_conditional"`
	ConditionalLogic       map[string]any          `json:"conditional_logic"`
	Options                []string                `json:"options"`
	OptionsTranslations    models.LocalizedOptions `json:"options_translations"`
	MinLength              *int                    `json:"min_length"`
	MaxLength              *int                    `json:"max_length"`
	AIClarificationEnabled *bool                   `json:"ai_clarification_enabled"`
	ClarificationPrompts   models.LocalizedText    `json:"clarification_prompts"`
}

// LocalizedQuestion is a question rendered for one language
type LocalizedQuestion struct {
	ID           uint                `json:"id"`
	OrderNumber  int                 `json:"order_number"`
	QuestionType models.QuestionType `json:"question_type"`
	Language     string              `json:"language"`
	Text         string              `json:"text"`
	Options      []string            `json:"options,omitempty"`
	IsRequired   bool                `json:"is_required"`
}

func (s *QuestionService) Create(ctx context.Context, actor *models.User, q *models.Question) error {
	if _, err := loadSurveyFor(ctx, s.db, actor, q.SurveyID); err != nil {
		return err
	}
	return s.insert(s.db.WithContext(ctx), q)
}

// BulkCreate inserts all questions for a survey or none of them
func (s *QuestionService) BulkCreate(ctx context.Context, actor *models.User, surveyID uint, questions []models.Question) ([]models.Question, error) {
	if _, err := loadSurveyFor(ctx, s.db, actor, surveyID); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, models.NewValidationError("questions", "must not be empty")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range questions {
			questions[i].SurveyID = surveyID
			if err := s.insert(tx, &questions[i]); err != nil {
				return fmt.Errorf("question %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (s *QuestionService) insert(db *gorm.DB, q *models.Question) error {
	q.ID = 0
	if err := q.Validate(); err != nil {
		return err
	}
	var taken int64
	if err := db.Model(&models.Question{}).
		Where("survey_id = ? AND order_number = ?", q.SurveyID, q.OrderNumber).
		Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return fmt.Errorf("order_number %d already used in survey %d: %w", q.OrderNumber, q.SurveyID, models.ErrConflict)
	}
	if err := db.Create(q).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order_number %d already used in survey %d: %w", q.OrderNumber, q.SurveyID, models.ErrConflict)
		}
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

// Get loads a question the actor may see
func (s *QuestionService) Get(ctx context.Context, actor *models.User, id uint) (*models.Question, error) {
	q, err := findByID[models.Question](ctx, s.db, id, "question")
	if err != nil {
		return nil, err
	}
	if _, err := loadSurveyFor(ctx, s.db, actor, q.SurveyID); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuestionService) List(ctx context.Context, actor *models.User, surveyID uint, page Page) ([]models.Question, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Question{}).Scopes(ownedSurveys(s.db, actor))
	if surveyID != 0 {
		q = q.Where("survey_id = ?", surveyID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var questions []models.Question
	if err := page.apply(q).Order("survey_id, order_number").Find(&questions).Error; err != nil {
		return nil, 0, err
	}
	return questions, total, nil
}

// Ordered returns a survey's questions in presentation order
func (s *QuestionService) Ordered(ctx context.Context, actor *models.User, surveyID uint) ([]models.Question, error) {
	if _, err := loadSurveyFor(ctx, s.db, actor, surveyID); err != nil {
		return nil, err
	}
	var questions []models.Question
	err := s.db.WithContext(ctx).
		Where("survey_id = ?", surveyID).
		Order("order_number ASC").
		Find(&questions).Error
	return questions, err
}

// OrderedIn is Ordered with text and options resolved for lang
func (s *QuestionService) OrderedIn(ctx context.Context, actor *models.User, surveyID uint, lang string) ([]LocalizedQuestion, error) {
	questions, err := s.Ordered(ctx, actor, surveyID)
	if err != nil {
		return nil, err
	}
	lang = models.NormalizeLanguage(lang)
	out := make([]LocalizedQuestion, 0, len(questions))
	for i := range questions {
		out = append(out, localize(&questions[i], lang))
	}
	return out, nil
}

func localize(q *models.Question, lang string) LocalizedQuestion {
	return LocalizedQuestion{
		ID:           q.ID,
		OrderNumber:  q.OrderNumber,
		QuestionType: q.QuestionType,
		Language:     lang,
		Text:         q.TextIn(lang),
		Options:      q.OptionsIn(lang),
		IsRequired:   q.IsRequired,
	}
}

// Next returns the first question after orderNumber, or nil when the survey
// has no more questions
func (s *QuestionService) Next(ctx context.Context, surveyID uint, orderNumber int) (*models.Question, error) {
	var questions []models.Question
	err := s.db.WithContext(ctx).
		Where("survey_id = ? AND order_number > ?", surveyID, orderNumber).
		Order("order_number ASC").
		Limit(1).
		Find(&questions).Error
	if err != nil || len(questions) == 0 {
		return nil, err
	}
	return &questions[0], nil
}

func (s *QuestionService) Update(ctx context.Context, actor *models.User, id uint, in QuestionUpdate) (*models.Question, error) {
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if in.QuestionText != nil {
		q.QuestionText = *in.QuestionText
	}
	if in.QuestionTranslations != nil {
		q.QuestionTranslations = in.QuestionTranslations
	}
	if in.QuestionType != nil {
		q.QuestionType = *in.QuestionType
	}
	if in.IsRequired != nil {
		q.IsRequired = *in.IsRequired
	}
	if in.IsConditional != nil {
		q.IsConditional = *in.IsConditional
	}
	if in.ConditionalLogic != nil {
		q.ConditionalLogic = in.ConditionalLogic
	}
	if in.Options != nil {
		q.Options = in.Options
	}
	if in.OptionsTranslations != nil {
		q.OptionsTranslations = in.OptionsTranslations
	}
	if in.MinLength != nil {
		q.MinLength = in.MinLength
	}
	if in.MaxLength != nil {
		q.MaxLength = in.MaxLength
	}
	if in.AIClarificationEnabled != nil {
		q.AIClarificationEnabled = *in.AIClarificationEnabled
	}
	if in.ClarificationPrompts != nil {
		q.ClarificationPrompts = in.ClarificationPrompts
	}

	db := s.db.WithContext(ctx)
	if in.OrderNumber != nil && *in.OrderNumber != q.OrderNumber {
		// responses point at the question id, so reordering is safe
		var taken int64
		if err := db.Model(&models.Question{}).
			Where("survey_id = ? AND order_number = ? AND id <> ?", q.SurveyID, *in.OrderNumber, q.ID).
			Count(&taken).Error; err != nil {
			return nil, err
		}
		if taken > 0 {
			return nil, fmt.Errorf("order_number %d already used in survey %d: %w", *in.OrderNumber, q.SurveyID, models.ErrConflict)
		}
		q.OrderNumber = *in.OrderNumber
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := db.Select("*").Omit("created_at").Save(q).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("order_number %d already used: %w", q.OrderNumber, models.ErrConflict)
		}
		return nil, err
	}
	return q, nil
}

// Delete removes a question. Questions already answered are kept so the
// responses keep their meaning.
func (s *QuestionService) Delete(ctx context.Context, actor *models.User, id uint) error {
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	var answered int64
	if err := s.db.WithContext(ctx).Model(&models.Response{}).Where("question_id = ?", id).Count(&answered).Error; err != nil {
		return err
	}
	if answered > 0 {
		return fmt.Errorf("question %d has %d responses: %w", id, answered, models.ErrConflict)
	}
	return s.db.WithContext(ctx).Delete(q).Error
}

// ValidateAnswer runs ValidateResponse against a stored question
func (s *QuestionService) ValidateAnswer(ctx context.Context, actor *models.User, id uint, text string) (ValidationResult, error) {
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return ValidationResult{}, err
	}
	return ValidateResponse(q, text), nil
}
