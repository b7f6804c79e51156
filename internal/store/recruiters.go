package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"leadgen-engine/internal/cadence"
	"leadgen-engine/internal/domain"
)

const recruiterCols = `id, name, linkedin_url, company_domain, email, email_count, last_email, first_email, status`

func scanRecruiter(s scanner) (domain.Recruiter, error) {
	var (
		r                  domain.Recruiter
		email, last, first sql.NullString
		status             string
	)
	if err := s.Scan(&r.ID, &r.Name, &r.ProfileURL, &r.CompanyDomain, &email,
		&r.SendCount, &last, &first, &status); err != nil {
		return domain.Recruiter{}, classify(err)
	}
	r.Email = email.String
	r.Status = domain.RecruiterStatus(status)
	if !r.Status.Valid() {
		r.Status = domain.RecruiterActive
	}

	var err error
	if r.LastSentAt, err = parseNullTime(last); err != nil {
		return domain.Recruiter{}, fmt.Errorf("recruiter %d last_email: %w", r.ID, err)
	}
	if r.FirstSentAt, err = parseNullTime(first); err != nil {
		return domain.Recruiter{}, fmt.Errorf("recruiter %d first_email: %w", r.ID, err)
	}
	return r, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := cadence.ParseTimestamp(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *DB) FindRecruiter(ctx context.Context, f Field, v any) (domain.Recruiter, error) {
	tail, args, err := Query{Where: f, Value: v, Limit: 1}.sql(tableRecruiters)
	if err != nil {
		return domain.Recruiter{}, err
	}
	r, err := scanRecruiter(d.queryRow(ctx, `SELECT `+recruiterCols+` FROM recruiters`+tail, args...))
	if err != nil {
		return domain.Recruiter{}, fmt.Errorf("find recruiter by %s: %w", f, err)
	}
	return r, nil
}

func (d *DB) InsertRecruiter(ctx context.Context, r domain.Recruiter) (int64, error) {
	status := r.Status
	if status == "" {
		status = domain.RecruiterActive
	}
	id, err := d.insertID(ctx, `
INSERT INTO recruiters (name, linkedin_url, company_domain, email, email_count, last_email, first_email, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id;`,
		r.Name, r.ProfileURL, r.CompanyDomain, nullString(r.Email), r.SendCount,
		sqlArg(r.LastSentAt), sqlArg(r.FirstSentAt), string(status),
	)
	if err != nil {
		return 0, fmt.Errorf("insert recruiter %q: %w", r.ProfileURL, err)
	}
	return id, nil
}

func (d *DB) UpdateRecruiter(ctx context.Context, id int64, p Patch) error {
	return d.update(ctx, tableRecruiters, id, p)
}

func (d *DB) SelectRecruiters(ctx context.Context, q Query) ([]domain.Recruiter, error) {
	tail, args, err := q.sql(tableRecruiters)
	if err != nil {
		return nil, err
	}
	rows, err := d.query(ctx, `SELECT `+recruiterCols+` FROM recruiters`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("select recruiters: %w", err)
	}
	defer rows.Close()

	var out []domain.Recruiter
	for rows.Next() {
		r, err := scanRecruiter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, classify(rows.Err())
}
