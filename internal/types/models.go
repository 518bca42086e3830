// internal/types/models.go
package types

import (
	"time"
)

// QuestionType discriminates the two answer modalities a question can have.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionDescriptive    QuestionType = "descriptive"
)

// Question is a single catalog entry. Questions are built once at catalog
// load and never mutated afterwards.
type Question struct {
	Index   int          `json:"index"`
	Prompt  string       `json:"prompt"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
}

// SessionState tracks a session through its lifecycle.
type SessionState string

const (
	StateActive     SessionState = "active"
	StateCompleting SessionState = "completing"
	StateCompleted  SessionState = "completed"
	StateFailed     SessionState = "failed"
)

// TimedOutAnswer is recorded when a question's wait duration expires
// without a response from the initiator.
const TimedOutAnswer = "timed out"

// Answer is immutable once appended to a session.
type Answer struct {
	QuestionIndex int       `json:"question_index"`
	Value         string    `json:"value"`
	RespondedAt   time.Time `json:"responded_at"`
}

// Session is one in-progress questionnaire tied to an initiator. The
// registry creates it on admission; after that only the goroutine running
// the session mutates it.
type Session struct {
	ID            SessionID    `json:"id"`
	Initiator     UserID       `json:"initiator"`
	InitiatorName string       `json:"initiator_name"`
	TargetLabel   string       `json:"target_label"`
	Channel       ChannelID    `json:"channel,omitempty"`
	State         SessionState `json:"state"`
	Answers       []Answer     `json:"answers"`
	StartedAt     time.Time    `json:"started_at"`
}
