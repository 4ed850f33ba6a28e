package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"survey-voice-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Page bounds a list query. Limit defaults to 100 and is capped at 1000.
type Page struct {
	Skip  int
	Limit int
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	skip := p.Skip
	if skip < 0 {
		skip = 0
	}
	return q.Offset(skip).Limit(limit)
}

// saveVersioned writes every column of row, guarded by its version. A row
// changed by someone else since it was read yields ErrConflict.
func saveVersioned(ctx context.Context, db *gorm.DB, row models.Versioned) error {
	prev := row.GetVersion()
	row.BumpVersion()
	res := db.WithContext(ctx).
		Model(row).
		Where("version = ?", prev).
		Select("*").
		Omit("created_at", clause.Associations).
		Updates(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %T was modified concurrently", models.ErrConflict, row)
	}
	return nil
}

// findByID loads one row or wraps gorm.ErrRecordNotFound into ErrNotFound
func findByID[T any](ctx context.Context, db *gorm.DB, id uint, what string) (*T, error) {
	var row T
	if err := db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s %d: %w", what, id, models.ErrNotFound)
		}
		return nil, err
	}
	return &row, nil
}

// loadSurveyFor returns the survey when actor may access it. A nil actor is
// the system itself (worker, telephony callbacks) and is always allowed.
func loadSurveyFor(ctx context.Context, db *gorm.DB, actor *models.User, surveyID uint) (*models.Survey, error) {
	survey, err := findByID[models.Survey](ctx, db, surveyID, "survey")
	if err != nil {
		return nil, err
	}
	if actor != nil && !actor.CanAccess(survey) {
		return nil, fmt.Errorf("survey %d: %w", surveyID, models.ErrForbidden)
	}
	return survey, nil
}

// ownedSurveys is a scope limiting rows to surveys created by actor. Admins
// and the system see everything.
func ownedSurveys(db *gorm.DB, actor *models.User) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if actor == nil || actor.IsAdmin() {
			return q
		}
		return q.Where("survey_id IN (?)",
			db.Model(&models.Survey{}).Select("id").Where("created_by = ?", actor.ID))
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
