package domain

import (
	"fmt"
	"time"
)

// EmailType tags which step of the cadence a message belongs to.
type EmailType string

const (
	EmailTypeNone  EmailType = ""
	EmailInitial   EmailType = "initial"
	EmailFollowUp3 EmailType = "follow_up_3"
	EmailFollowUp5 EmailType = "follow_up_5"
)

func (t EmailType) Valid() bool {
	switch t {
	case EmailInitial, EmailFollowUp3, EmailFollowUp5:
		return true
	}
	return false
}

func ParseEmailType(s string) (EmailType, error) {
	t := EmailType(s)
	if !t.Valid() {
		return EmailTypeNone, fmt.Errorf("unknown email type %q", s)
	}
	return t, nil
}

// EmailStatus is the delivery state recorded in the email log.
type EmailStatus string

const (
	StatusPending   EmailStatus = "pending"
	StatusSent      EmailStatus = "sent"
	StatusDelivered EmailStatus = "delivered"
	StatusOpened    EmailStatus = "opened"
	StatusReplied   EmailStatus = "replied"
	StatusBounced   EmailStatus = "bounced"
	StatusFailed    EmailStatus = "failed"
)

func (s EmailStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusDelivered, StatusOpened,
		StatusReplied, StatusBounced, StatusFailed:
		return true
	}
	return false
}

func ParseEmailStatus(s string) (EmailStatus, error) {
	st := EmailStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown email status %q", s)
	}
	return st, nil
}

// EmailLogEntry is one row of the append-only email log.
type EmailLogEntry struct {
	ID          int64
	RecruiterID int64
	JobID       int64
	MessageID   string // provider id, empty on failure
	Type        EmailType
	SentAt      time.Time
	Status      EmailStatus
	Subject     string
	Body        string
	Error       string
}
