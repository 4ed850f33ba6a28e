package models

import "time"

type CallStatus string

const (
	CallInitiated CallStatus = "initiated"
	CallRinging   CallStatus = "ringing"
	CallAnswered  CallStatus = "answered"
	CallCompleted CallStatus = "completed"
	CallFailed    CallStatus = "failed"
	CallBusy      CallStatus = "busy"
	CallNoAnswer  CallStatus = "no-answer"
)

// busy and no-answer are reachable targets in the table but are stored as
// failed with the matching CallResult.
var callTransitions = transitionTable[CallStatus]{
	CallInitiated: {CallRinging, CallAnswered, CallFailed, CallBusy, CallNoAnswer},
	CallRinging:   {CallAnswered, CallFailed, CallBusy, CallNoAnswer},
	CallAnswered:  {CallCompleted, CallFailed},
}

func (s CallStatus) String() string { return string(s) }

func (s CallStatus) IsValid() bool {
	switch s {
	case CallInitiated, CallRinging, CallAnswered, CallCompleted, CallFailed, CallBusy, CallNoAnswer:
		return true
	}
	return false
}

func (s CallStatus) CanTransitionTo(next CallStatus) bool {
	return callTransitions.allows(s, next)
}

func (s CallStatus) IsTerminal() bool {
	return callTransitions.terminal(s)
}

type CallResult string

const (
	ResultAnswered  CallResult = "answered"
	ResultBusy      CallResult = "busy"
	ResultNoAnswer  CallResult = "no-answer"
	ResultFailed    CallResult = "failed"
	ResultCompleted CallResult = "completed"
)

// CallLog records a single telephony attempt. CallSessionID is supplied by
// the caller and must be unique.
type CallLog struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	SurveyID          uint       `gorm:"index;not null" json:"survey_id"`
	ContactID         uint       `gorm:"index;not null" json:"contact_id"`
	CallSessionID     string     `gorm:"size:255;uniqueIndex;not null" json:"call_session_id"`
	ExternalCallID    string     `gorm:"size:255;index" json:"external_call_id,omitempty"`
	PhoneNumber       string     `gorm:"size:32" json:"phone_number"`
	Status            CallStatus `gorm:"size:20;index;not null" json:"status"`
	CallResult        CallResult `gorm:"size:20" json:"call_result,omitempty"`
	CallStartTime     time.Time  `json:"call_start_time"`
	CallEndTime       *time.Time `json:"call_end_time,omitempty"`
	CallDuration      *int       `json:"call_duration,omitempty"`
	RingDuration      *int       `json:"ring_duration,omitempty"`
	AnswerDuration    *int       `json:"answer_duration,omitempty"`
	QuestionsAsked    int        `gorm:"not null;default:0" json:"questions_asked"`
	QuestionsAnswered int        `gorm:"not null;default:0" json:"questions_answered"`
	LanguageSwitches  int        `gorm:"not null;default:0" json:"language_switches"`
	AIClarifications  int        `gorm:"not null;default:0" json:"ai_clarifications"`
	SurveyCompleted   bool       `json:"survey_completed"`
	DetectedLanguage  string     `gorm:"size:10" json:"detected_language,omitempty"`
	AudioQualityScore *float64   `json:"audio_quality_score,omitempty"`
	ConnectionQuality string     `gorm:"size:20" json:"connection_quality,omitempty"`
	ErrorCode         string     `gorm:"size:50" json:"error_code,omitempty"`
	ErrorMessage      string     `gorm:"type:text" json:"error_message,omitempty"`
	Version           int        `gorm:"not null;default:1" json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (CallLog) TableName() string {
	return "call_logs"
}

func (l *CallLog) GetVersion() int { return l.Version }
func (l *CallLog) BumpVersion() { l.Version++ }

func (l *CallLog) ApplyDefaults(now time.Time) {
	if l.Status == "" {
		l.Status = CallInitiated
	}
	if l.CallStartTime.IsZero() {
		l.CallStartTime = now
	}
	if l.Version == 0 {
		l.Version = 1
	}
}

func (l *CallLog) Validate() error {
	if l.CallSessionID == "" {
		return NewValidationError("call_session_id", "must not be empty")
	}
	if l.Status != CallInitiated {
		return NewValidationError("status", "call logs start as initiated")
	}
	return nil
}

func (l *CallLog) IsTerminal() bool {
	return l.Status.IsTerminal()
}

func (l *CallLog) guardActive(op string) error {
	if l.IsTerminal() {
		return &TransitionError{Entity: "call_log", From: l.Status.String(), To: op}
	}
	return nil
}

func (l *CallLog) move(next CallStatus) error {
	if !l.Status.CanTransitionTo(next) {
		return invalidTransition("call_log", l.Status, next)
	}
	return nil
}

func (l *CallLog) finish(now time.Time) {
	l.CallEndTime = &now
	if l.CallDuration == nil {
		d := int(now.Sub(l.CallStartTime).Seconds())
		if d < 0 {
			d = 0
		}
		l.CallDuration = &d
	}
}

func (l *CallLog) MarkRinging() error {
	if err := l.move(CallRinging); err != nil {
		return err
	}
	l.Status = CallRinging
	return nil
}

func (l *CallLog) MarkAnswered(now time.Time) error {
	if err := l.move(CallAnswered); err != nil {
		return err
	}
	ring := int(now.Sub(l.CallStartTime).Seconds())
	if ring < 0 {
		ring = 0
	}
	l.RingDuration = &ring
	l.Status = CallAnswered
	l.CallResult = ResultAnswered
	return nil
}

// MarkCompleted ends an answered call. durationSeconds overrides the
// wall-clock duration when the provider reports one.
func (l *CallLog) MarkCompleted(durationSeconds *int, now time.Time) error {
	if err := l.move(CallCompleted); err != nil {
		return err
	}
	if durationSeconds != nil {
		d := *durationSeconds
		l.CallDuration = &d
	}
	if l.RingDuration != nil {
		answered := int(now.Sub(l.CallStartTime).Seconds()) - *l.RingDuration
		if answered < 0 {
			answered = 0
		}
		l.AnswerDuration = &answered
	}
	l.Status = CallCompleted
	l.CallResult = ResultCompleted
	l.SurveyCompleted = true
	l.finish(now)
	return nil
}

func (l *CallLog) MarkFailed(code, message string, now time.Time) error {
	if err := l.move(CallFailed); err != nil {
		return err
	}
	l.Status = CallFailed
	l.CallResult = ResultFailed
	l.ErrorCode = code
	l.ErrorMessage = message
	l.finish(now)
	return nil
}

func (l *CallLog) MarkBusy(now time.Time) error {
	if err := l.move(CallBusy); err != nil {
		return err
	}
	l.Status = CallFailed
	l.CallResult = ResultBusy
	l.finish(now)
	return nil
}

func (l *CallLog) MarkNoAnswer(now time.Time) error {
	if err := l.move(CallNoAnswer); err != nil {
		return err
	}
	l.Status = CallFailed
	l.CallResult = ResultNoAnswer
	l.finish(now)
	return nil
}

func (l *CallLog) IncrementQuestionsAsked() error {
	if err := l.guardActive("questions_asked++"); err != nil {
		return err
	}
	l.QuestionsAsked++
	return nil
}

func (l *CallLog) IncrementQuestionsAnswered() error {
	if err := l.guardActive("questions_answered++"); err != nil {
		return err
	}
	l.QuestionsAnswered++
	return nil
}

func (l *CallLog) IncrementAIClarifications() error {
	if err := l.guardActive("ai_clarifications++"); err != nil {
		return err
	}
	l.AIClarifications++
	return nil
}

func (l *CallLog) IncrementLanguageSwitches(lang string) error {
	if err := l.guardActive("language_switches++"); err != nil {
		return err
	}
	l.LanguageSwitches++
	if lang != "" {
		l.DetectedLanguage = NormalizeLanguage(lang)
	}
	return nil
}
