package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Submission is a validated form submission. It is built once per request
// and never mutated afterwards.
type Submission struct {
	SubmitterUsername string
	FullName          string
	Email             string
	Message           string
	SubmittedAt       time.Time
}

// SubmissionEvent is the payload written to the submission topic.
type SubmissionEvent struct {
	SubmitterUsername      string `json:"submitterUsername"`
	FullName               string `json:"fullName"`
	Email                  string `json:"email"`
	Message                string `json:"message"`
	SubmittedAtEpochMillis int64  `json:"submittedAtEpochMillis"`
}

func NewSubmission(submitter Principal, fullName, email, message string, at time.Time) Submission {
	return Submission{
		SubmitterUsername: submitter.Subject,
		FullName:          fullName,
		Email:             email,
		Message:           message,
		SubmittedAt:       at.UTC(),
	}
}

func (s Submission) Event() SubmissionEvent {
	return SubmissionEvent{
		SubmitterUsername:      s.SubmitterUsername,
		FullName:               s.FullName,
		Email:                  s.Email,
		Message:                s.Message,
		SubmittedAtEpochMillis: s.SubmittedAt.UnixMilli(),
	}
}

// Fingerprint identifies the submission content regardless of when it was
// sent. Fields are separated by a byte that cannot appear in JSON text input.
func (s Submission) Fingerprint() string {
	h := sha256.New()
	for _, part := range []string{s.SubmitterUsername, s.Email, s.FullName, s.Message} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// UserRegistered announces a new self-registered account.
type UserRegistered struct {
	Username              string `json:"username"`
	Role                  Role   `json:"role"`
	OccurredAtEpochMillis int64  `json:"occurredAtEpochMillis"`
}

// PublishReceipt confirms that the channel accepted an event.
type PublishReceipt struct {
	EventID     string    `json:"eventId"`
	MessageID   string    `json:"messageId"`
	Topic       string    `json:"topic"`
	Attempts    int       `json:"attempts"`
	PublishedAt time.Time `json:"publishedAt"`
}
