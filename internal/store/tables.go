package store

import (
	"context"

	"leadgen-engine/internal/domain"
)

// Tables is the narrow table API the persistence layer writes through: find
// by one equality predicate, insert, update by id. There are no transactions.
//
// Find* return a wrapped domain.ErrNotFound on a miss. Insert* return a
// wrapped domain.ErrDuplicateKey on a unique-key collision.
type Tables interface {
	FindCompany(ctx context.Context, f Field, v any) (domain.Company, error)
	InsertCompany(ctx context.Context, c domain.Company) (int64, error)
	UpdateCompany(ctx context.Context, id int64, p Patch) error
	SelectCompanies(ctx context.Context, q Query) ([]domain.Company, error)

	FindRecruiter(ctx context.Context, f Field, v any) (domain.Recruiter, error)
	InsertRecruiter(ctx context.Context, r domain.Recruiter) (int64, error)
	UpdateRecruiter(ctx context.Context, id int64, p Patch) error
	SelectRecruiters(ctx context.Context, q Query) ([]domain.Recruiter, error)

	FindJob(ctx context.Context, id int64) (domain.Job, error)
	InsertJob(ctx context.Context, j domain.Job) error
	SelectJobs(ctx context.Context, q Query) ([]domain.Job, error)

	InsertEmailLog(ctx context.Context, e domain.EmailLogEntry) (int64, error)
	SelectEmailLog(ctx context.Context, q Query) ([]domain.EmailLogEntry, error)
}

var _ Tables = (*DB)(nil)

type scanner interface {
	Scan(dest ...any) error
}
