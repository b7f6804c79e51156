package domain

import "time"

type RecruiterStatus string

const (
	RecruiterActive  RecruiterStatus = "active"
	RecruiterBounced RecruiterStatus = "bounced"
	RecruiterFailed  RecruiterStatus = "failed"
)

// Terminal reports whether outreach to a recruiter in this status is over.
func (s RecruiterStatus) Terminal() bool {
	return s == RecruiterBounced || s == RecruiterFailed
}

func (s RecruiterStatus) Valid() bool {
	switch s {
	case RecruiterActive, RecruiterBounced, RecruiterFailed:
		return true
	}
	return false
}

// Recruiter is a hiring contact extracted from a job posting.
type Recruiter struct {
	ID            int64
	Name          string
	ProfileURL    string
	CompanyDomain string
	Email         string // empty until resolved
	SendCount     int
	LastSentAt    *time.Time
	FirstSentAt   *time.Time
	Status        RecruiterStatus
}
