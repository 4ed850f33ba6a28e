package models

import "time"

type ContactStatus string

const (
	ContactPending   ContactStatus = "pending"
	ContactScheduled ContactStatus = "scheduled"
	ContactCalled    ContactStatus = "called"
	ContactCompleted ContactStatus = "completed"
	ContactFailed    ContactStatus = "failed"
)

// called -> scheduled is the retry edge; Contact.Schedule additionally
// checks the survey's retry budget before taking it.
var contactTransitions = transitionTable[ContactStatus]{
	ContactPending:   {ContactScheduled, ContactCalled, ContactFailed},
	ContactScheduled: {ContactCalled, ContactFailed},
	ContactCalled:    {ContactScheduled, ContactCompleted, ContactFailed},
}

func (s ContactStatus) String() string { return string(s) }

func (s ContactStatus) IsValid() bool {
	switch s {
	case ContactPending, ContactScheduled, ContactCalled, ContactCompleted, ContactFailed:
		return true
	}
	return false
}

func (s ContactStatus) CanTransitionTo(next ContactStatus) bool {
	return contactTransitions.allows(s, next)
}

func (s ContactStatus) IsTerminal() bool {
	return contactTransitions.terminal(s)
}

// Contact is one person to be called for a survey
type Contact struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	SurveyID          uint           `gorm:"index;not null" json:"survey_id"`
	PhoneNumber       string         `gorm:"size:32;index;not null" json:"phone_number"`
	Name              string         `json:"name"`
	Email             string         `json:"email"`
	PreferredLanguage string         `gorm:"size:10;not null" json:"preferred_language"`
	AdditionalData    map[string]any `gorm:"serializer:json;type:text" json:"additional_data,omitempty"`
	Status            ContactStatus  `gorm:"size:20;index;not null" json:"status"`
	CallAttempts      int            `gorm:"not null;default:0" json:"call_attempts"`
	LastCallAttempt   *time.Time     `json:"last_call_attempt,omitempty"`
	NextCallScheduled *time.Time     `gorm:"index" json:"next_call_scheduled,omitempty"`
	CallDuration      *int           `json:"call_duration,omitempty"`
	CallResult        string         `gorm:"size:32" json:"call_result,omitempty"`
	ResponseLanguage  string         `gorm:"size:10" json:"response_language,omitempty"`
	Version           int            `gorm:"not null;default:1" json:"version"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

func (c *Contact) GetVersion() int { return c.Version }
func (c *Contact) BumpVersion() { c.Version++ }

func (c *Contact) ApplyDefaults() {
	c.PreferredLanguage = NormalizeLanguage(c.PreferredLanguage)
	if c.Status == "" {
		c.Status = ContactPending
	}
	if c.Version == 0 {
		c.Version = 1
	}
}

func (c *Contact) Validate() error {
	if c.PhoneNumber == "" {
		return NewValidationError("phone_number", "must not be empty")
	}
	if !IsSupportedLanguage(c.PreferredLanguage) {
		return NewValidationError("preferred_language", "unsupported language "+c.PreferredLanguage)
	}
	if !c.Status.IsValid() {
		return NewValidationError("status", "unknown status "+string(c.Status))
	}
	return nil
}

// CanRetry reports whether a called contact still has attempts left
func (c *Contact) CanRetry(retryLimit int) bool {
	return c.CallAttempts < retryLimit
}

// Schedule queues the contact for a call at when. From called this is a
// retry and needs CallAttempts below retryLimit.
func (c *Contact) Schedule(when time.Time, retryLimit int) error {
	if !c.Status.CanTransitionTo(ContactScheduled) {
		return invalidTransition("contact", c.Status, ContactScheduled)
	}
	if c.Status == ContactCalled && !c.CanRetry(retryLimit) {
		return &TransitionError{Entity: "contact", From: c.Status.String(), To: "scheduled (retry budget exhausted)"}
	}
	c.Status = ContactScheduled
	c.NextCallScheduled = &when
	return nil
}

// RecordCallResult registers one finished dial attempt
func (c *Contact) RecordCallResult(result string, durationSeconds *int, now time.Time) error {
	if !c.Status.CanTransitionTo(ContactCalled) {
		return invalidTransition("contact", c.Status, ContactCalled)
	}
	c.Status = ContactCalled
	c.CallAttempts++
	c.LastCallAttempt = &now
	c.CallResult = result
	if durationSeconds != nil {
		d := *durationSeconds
		c.CallDuration = &d
	}
	return nil
}

func (c *Contact) MarkCompleted() error {
	if !c.Status.CanTransitionTo(ContactCompleted) {
		return invalidTransition("contact", c.Status, ContactCompleted)
	}
	c.Status = ContactCompleted
	c.NextCallScheduled = nil
	return nil
}

func (c *Contact) MarkFailed() error {
	if !c.Status.CanTransitionTo(ContactFailed) {
		return invalidTransition("contact", c.Status, ContactFailed)
	}
	c.Status = ContactFailed
	c.NextCallScheduled = nil
	return nil
}
