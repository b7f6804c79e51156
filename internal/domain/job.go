package domain

import "time"

// RoleMetadata is the structured part of a posting's top card.
type RoleMetadata struct {
	PostedAt   string `json:"posted_at"`
	Applicants string `json:"applicants"`
}

// Job is a stored posting. ID is the external posting id and is never reused.
type Job struct {
	ID          int64
	CompanyID   int64
	RecruiterID *int64
	Title       string
	Description string
	Role        RoleMetadata
	CreatedAt   time.Time
}

// Posting is the raw data the scraping collaborator extracts for a job id.
// Any field may be empty.
type Posting struct {
	JobID             int64
	Title             string
	CompanyName       string
	CompanyProfileURL string
	CompanyLocation   string
	PostedAt          string
	ApplicantCount    string
	RecruiterName     string
	RecruiterURL      string
	Details           string
}

// Missing lists the empty fields of p that downstream steps care about.
func (p Posting) Missing() []string {
	var out []string
	if p.Title == "" {
		out = append(out, "title")
	}
	if p.CompanyProfileURL == "" {
		out = append(out, "company_url")
	}
	if p.RecruiterName == "" || p.RecruiterURL == "" {
		out = append(out, "recruiter")
	}
	if p.Details == "" {
		out = append(out, "details")
	}
	return out
}
