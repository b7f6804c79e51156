package domain

// Company is an organization seen on a job posting. ProfileURL is the unique
// key; Domain is a secondary key used when the profile URL is unknown.
type Company struct {
	ID         int64
	Name       string
	ProfileURL string
	Domain     string
	Metadata   string // JSON object of scraped attributes, "{}" when empty
	Location   string
}

// CompanyProfile is what the domain resolution collaborator returns for a
// company profile page.
type CompanyProfile struct {
	Domain   string
	Metadata map[string]string
}
