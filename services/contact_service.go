package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"survey-voice-api/models"

	"gorm.io/gorm"
)

type ContactService struct {
	db *gorm.DB
}

func NewContactService(db *gorm.DB) *ContactService {
	return &ContactService{db: db}
}

// ContactFilter narrows List
type ContactFilter struct {
	SurveyID uint
	Status   models.ContactStatus
	Page
}

// ContactUpdate carries editable contact fields; nil means unchanged.
// Status moves through the lifecycle operations only.
type ContactUpdate struct {
	PhoneNumber       *string        `json:"phone_number"`
	Name              *string        `json:"name"`
	Email             *string        `json:"email"`
	PreferredLanguage *string        `json:"preferred_language"`
	AdditionalData    map[string]any `json:"additional_data"`
	ResponseLanguage  *string        `json:"response_language"`
}

// ContactStats summarises a survey's contacts
type ContactStats struct {
	SurveyID   uint             `json:"survey_id"`
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByLanguage map[string]int64 `json:"by_language"`
}

func (s *ContactService) Create(ctx context.Context, actor *models.User, c *models.Contact) error {
	if _, err := loadSurveyFor(ctx, s.db, actor, c.SurveyID); err != nil {
		return err
	}
	if err := prepareContact(c); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

func prepareContact(c *models.Contact) error {
	c.ID = 0
	c.Status = models.ContactPending
	c.CallAttempts = 0
	c.Version = 0
	c.PhoneNumber = strings.TrimSpace(c.PhoneNumber)
	c.ApplyDefaults()
	return c.Validate()
}

// BulkCreate inserts all contacts or none
func (s *ContactService) BulkCreate(ctx context.Context, actor *models.User, surveyID uint, contacts []models.Contact) ([]models.Contact, error) {
	if _, err := loadSurveyFor(ctx, s.db, actor, surveyID); err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, models.NewValidationError("contacts", "must not be empty")
	}
	for i := range contacts {
		contacts[i].SurveyID = surveyID
		if err := prepareContact(&contacts[i]); err != nil {
			return nil, fmt.Errorf("contact %d: %w", i+1, err)
		}
	}
	if err := s.db.WithContext(ctx).CreateInBatches(contacts, 100).Error; err != nil {
		return nil, fmt.Errorf("failed to create contacts: %w", err)
	}
	log.Printf("[ContactService] Created %d contacts for survey #%d", len(contacts), surveyID)
	return contacts, nil
}

var csvReservedColumns = map[string]bool{
	"phone_number":       true,
	"name":               true,
	"email":              true,
	"preferred_language": true,
}

// ImportCSV reads contacts from a CSV with a header row. phone_number is
// required; unknown columns end up in additional_data.
func (s *ContactService) ImportCSV(ctx context.Context, actor *models.User, surveyID uint, r io.Reader) ([]models.Contact, error) {
	contacts, err := ParseContactsCSV(r)
	if err != nil {
		return nil, err
	}
	return s.BulkCreate(ctx, actor, surveyID, contacts)
}

// ParseContactsCSV turns CSV rows into unsaved contacts
func ParseContactsCSV(r io.Reader) ([]models.Contact, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, models.NewValidationError("file", "CSV is empty")
		}
		return nil, models.NewValidationError("file", "invalid CSV: "+err.Error())
	}
	cols := make([]string, len(header))
	phoneCol := -1
	for i, h := range header {
		cols[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if cols[i] == "phone_number" {
			phoneCol = i
		}
	}
	if phoneCol < 0 {
		return nil, models.NewValidationError("file", "missing required columns: [phone_number]")
	}

	var contacts []models.Contact
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, models.NewValidationError("file", fmt.Sprintf("line %d: %v", line, err))
		}

		c := models.Contact{}
		extra := map[string]any{}
		for i, value := range record {
			if i >= len(cols) {
				break
			}
			value = strings.TrimSpace(value)
			switch cols[i] {
			case "phone_number":
				c.PhoneNumber = value
			case "name":
				c.Name = value
			case "email":
				c.Email = value
			case "preferred_language":
				c.PreferredLanguage = value
			default:
				if cols[i] != "" && !csvReservedColumns[cols[i]] && value != "" {
					extra[cols[i]] = value
				}
			}
		}
		if c.PhoneNumber == "" {
			return nil, models.NewValidationError("phone_number", fmt.Sprintf("line %d: must not be empty", line))
		}
		if len(extra) > 0 {
			c.AdditionalData = extra
		}
		contacts = append(contacts, c)
	}
	if len(contacts) == 0 {
		return nil, models.NewValidationError("file", "CSV has no contact rows")
	}
	return contacts, nil
}

func (s *ContactService) Get(ctx context.Context, actor *models.User, id uint) (*models.Contact, error) {
	c, err := findByID[models.Contact](ctx, s.db, id, "contact")
	if err != nil {
		return nil, err
	}
	if _, err := loadSurveyFor(ctx, s.db, actor, c.SurveyID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ContactService) List(ctx context.Context, actor *models.User, filter ContactFilter) ([]models.Contact, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Contact{}).Scopes(ownedSurveys(s.db, actor))
	if filter.SurveyID != 0 {
		q = q.Where("survey_id = ?", filter.SurveyID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var contacts []models.Contact
	if err := filter.Page.apply(q).Order("id ASC").Find(&contacts).Error; err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

func (s *ContactService) Update(ctx context.Context, actor *models.User, id uint, in ContactUpdate) (*models.Contact, error) {
	return s.mutate(ctx, actor, id, func(c *models.Contact, _ *models.Survey) error {
		if in.PhoneNumber != nil {
			c.PhoneNumber = strings.TrimSpace(*in.PhoneNumber)
		}
		if in.Name != nil {
			c.Name = *in.Name
		}
		if in.Email != nil {
			c.Email = *in.Email
		}
		if in.PreferredLanguage != nil {
			c.PreferredLanguage = models.NormalizeLanguage(*in.PreferredLanguage)
		}
		if in.AdditionalData != nil {
			c.AdditionalData = in.AdditionalData
		}
		if in.ResponseLanguage != nil {
			c.ResponseLanguage = models.NormalizeLanguage(*in.ResponseLanguage)
		}
		return c.Validate()
	})
}

func (s *ContactService) Delete(ctx context.Context, actor *models.User, id uint) error {
	c, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contact_id = ?", id).Delete(&models.Response{}).Error; err != nil {
			return err
		}
		if err := tx.Where("contact_id = ?", id).Delete(&models.CallLog{}).Error; err != nil {
			return err
		}
		return tx.Delete(c).Error
	})
}

// Schedule queues the contact for a call. A called contact is rescheduled
// only while it has attempts left under the survey's retry_attempts.
func (s *ContactService) Schedule(ctx context.Context, actor *models.User, id uint, when time.Time) (*models.Contact, error) {
	return s.mutate(ctx, actor, id, func(c *models.Contact, survey *models.Survey) error {
		return c.Schedule(when, survey.RetryAttempts)
	})
}

// RecordCallResult counts one dial attempt against the contact
func (s *ContactService) RecordCallResult(ctx context.Context, actor *models.User, id uint, result string, durationSeconds *int) (*models.Contact, error) {
	return s.mutate(ctx, actor, id, func(c *models.Contact, _ *models.Survey) error {
		return c.RecordCallResult(result, durationSeconds, time.Now())
	})
}

func (s *ContactService) MarkCompleted(ctx context.Context, actor *models.User, id uint) (*models.Contact, error) {
	return s.mutate(ctx, actor, id, func(c *models.Contact, _ *models.Survey) error {
		return c.MarkCompleted()
	})
}

func (s *ContactService) MarkFailed(ctx context.Context, actor *models.User, id uint) (*models.Contact, error) {
	return s.mutate(ctx, actor, id, func(c *models.Contact, _ *models.Survey) error {
		return c.MarkFailed()
	})
}

func (s *ContactService) mutate(ctx context.Context, actor *models.User, id uint, fn func(*models.Contact, *models.Survey) error) (*models.Contact, error) {
	c, err := findByID[models.Contact](ctx, s.db, id, "contact")
	if err != nil {
		return nil, err
	}
	survey, err := loadSurveyFor(ctx, s.db, actor, c.SurveyID)
	if err != nil {
		return nil, err
	}
	if err := fn(c, survey); err != nil {
		return nil, err
	}
	if err := saveVersioned(ctx, s.db, c); err != nil {
		return nil, err
	}
	return c, nil
}

// PendingContacts returns the contacts a dialer may call next: pending or
// scheduled, with attempts left under the survey's retry_attempts
func (s *ContactService) PendingContacts(ctx context.Context, actor *models.User, surveyID uint, limit int) ([]models.Contact, error) {
	survey, err := loadSurveyFor(ctx, s.db, actor, surveyID)
	if err != nil {
		return nil, err
	}
	var contacts []models.Contact
	err = Page{Limit: limit}.apply(s.db.WithContext(ctx).
		Where("survey_id = ?", surveyID).
		Where("status IN ?", []models.ContactStatus{models.ContactPending, models.ContactScheduled}).
		Where("call_attempts < ?", survey.RetryAttempts)).
		Order("id ASC").
		Find(&contacts).Error
	return contacts, err
}

// SurveyContactStats counts a survey's contacts by status and language
func (s *ContactService) SurveyContactStats(ctx context.Context, actor *models.User, surveyID uint) (*ContactStats, error) {
	if _, err := loadSurveyFor(ctx, s.db, actor, surveyID); err != nil {
		return nil, err
	}
	stats := &ContactStats{SurveyID: surveyID}
	var err error
	db := s.db.WithContext(ctx)
	if stats.ByStatus, err = countBy(db.Model(&models.Contact{}).Where("survey_id = ?", surveyID), "status"); err != nil {
		return nil, err
	}
	if stats.ByLanguage, err = countBy(db.Model(&models.Contact{}).Where("survey_id = ?", surveyID), "preferred_language"); err != nil {
		return nil, err
	}
	for _, n := range stats.ByStatus {
		stats.Total += n
	}
	return stats, nil
}

type groupCount struct {
	Bucket string
	Count  int64
}

// countBy groups q by column and returns the count per distinct value
func countBy(q *gorm.DB, column string) (map[string]int64, error) {
	var rows []groupCount
	if err := q.Select("COALESCE(" + column + ", '') AS bucket, COUNT(*) AS count").Group(column).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Bucket] += r.Count
	}
	return out, nil
}
