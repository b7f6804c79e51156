package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"leadgen-engine/internal/cadence"
	"leadgen-engine/internal/domain"
)

const jobCols = `id, company_id, recruiter_id, title, description, role_metadata, created_at`

func scanJob(s scanner) (domain.Job, error) {
	var (
		j         domain.Job
		recruiter sql.NullInt64
		role      string
		created   string
	)
	if err := s.Scan(&j.ID, &j.CompanyID, &recruiter, &j.Title, &j.Description, &role, &created); err != nil {
		return domain.Job{}, classify(err)
	}
	if recruiter.Valid {
		id := recruiter.Int64
		j.RecruiterID = &id
	}
	// role_metadata is best-effort; older rows may carry free text
	_ = json.Unmarshal([]byte(role), &j.Role)
	if t, err := cadence.ParseTimestamp(created); err == nil {
		j.CreatedAt = t
	}
	return j, nil
}

func (d *DB) FindJob(ctx context.Context, id int64) (domain.Job, error) {
	j, err := scanJob(d.queryRow(ctx, `SELECT `+jobCols+` FROM linkedin_jobs WHERE id = ? LIMIT 1;`, id))
	if err != nil {
		return domain.Job{}, fmt.Errorf("find job %d: %w", id, err)
	}
	return j, nil
}

// InsertJob writes j once. A second insert with the same id fails with
// ErrDuplicateKey.
func (d *DB) InsertJob(ctx context.Context, j domain.Job) error {
	role, err := json.Marshal(j.Role)
	if err != nil {
		return fmt.Errorf("encode role metadata: %w", err)
	}
	created := j.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err = d.exec(ctx, `
INSERT INTO linkedin_jobs (id, company_id, recruiter_id, title, description, role_metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?);`,
		j.ID, j.CompanyID, sqlArg(j.RecruiterID), j.Title, j.Description, string(role), formatTime(created),
	)
	if err != nil {
		return fmt.Errorf("insert job %d: %w", j.ID, err)
	}
	return nil
}

func (d *DB) SelectJobs(ctx context.Context, q Query) ([]domain.Job, error) {
	tail, args, err := q.sql(tableJobs)
	if err != nil {
		return nil, err
	}
	rows, err := d.query(ctx, `SELECT `+jobCols+` FROM linkedin_jobs`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("select jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, classify(rows.Err())
}
