package domain

import "context"

// PostingScraper extracts a job posting by its external id.
// It returns ErrExtractionIncomplete (wrapped) together with whatever fields
// it could read when the page is only partially available.
type PostingScraper interface {
	ScrapePosting(ctx context.Context, jobID int64) (Posting, error)
}

// DomainResolver reads a company's website domain and profile attributes.
type DomainResolver interface {
	ResolveCompany(ctx context.Context, profileURL, name string) (CompanyProfile, error)
}

// JobSearcher lists posting ids from a search results URL.
type JobSearcher interface {
	SearchJobIDs(ctx context.Context, searchURL string, max int) ([]int64, error)
}

// EmailFinder looks up a person's work email. A miss is ErrNotFound.
type EmailFinder interface {
	FindEmail(ctx context.Context, name, companyDomain string) (string, error)
}
