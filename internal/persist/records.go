package persist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/scrape/util"
	"leadgen-engine/internal/store"
)

// JobExists backs the pre-scrape idempotency check.
func (s *Service) JobExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.tables.FindJob(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// CompanyByURL returns the company stored under the normalized profile URL.
func (s *Service) CompanyByURL(ctx context.Context, profileURL string) (domain.Company, error) {
	return s.tables.FindCompany(ctx, store.FieldProfileURL, util.NormalizeProfileURL(profileURL))
}

func (s *Service) Company(ctx context.Context, id int64) (domain.Company, error) {
	return s.tables.FindCompany(ctx, store.FieldID, id)
}

func (s *Service) Recruiter(ctx context.Context, id int64) (domain.Recruiter, error) {
	return s.tables.FindRecruiter(ctx, store.FieldID, id)
}

func (s *Service) RecruiterByEmail(ctx context.Context, email string) (domain.Recruiter, error) {
	return s.tables.FindRecruiter(ctx, store.FieldEmail, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) Recruiters(ctx context.Context) ([]domain.Recruiter, error) {
	return s.tables.SelectRecruiters(ctx, store.Query{})
}

// RecruitersWithoutEmail lists active recruiters whose email is unresolved.
func (s *Service) RecruitersWithoutEmail(ctx context.Context) ([]domain.Recruiter, error) {
	rs, err := s.tables.SelectRecruiters(ctx, store.Query{Where: store.FieldEmail, Value: nil})
	if err != nil {
		return nil, err
	}
	out := rs[:0]
	for _, r := range rs {
		if !r.Status.Terminal() {
			out = append(out, r)
		}
	}
	return out, nil
}

// DueRecruiters lists recruiters that have an email and are not in a
// terminal status. The cadence decides which of them are actually due.
func (s *Service) DueRecruiters(ctx context.Context) ([]domain.Recruiter, error) {
	rs, err := s.tables.SelectRecruiters(ctx, store.Query{Where: store.FieldStatus, Value: domain.RecruiterActive})
	if err != nil {
		return nil, err
	}
	out := rs[:0]
	for _, r := range rs {
		if r.Email != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Service) SetRecruiterEmail(ctx context.Context, id int64, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("set email for recruiter %d: empty address", id)
	}
	if err := s.tables.UpdateRecruiter(ctx, id, store.Patch{store.FieldEmail: email}); err != nil {
		return fmt.Errorf("set email for recruiter %d: %w", id, err)
	}
	return nil
}

// JobsForRecruiter returns the recruiter's jobs in insertion order.
func (s *Service) JobsForRecruiter(ctx context.Context, recruiterID int64) ([]domain.Job, error) {
	jobs, err := s.tables.SelectJobs(ctx, store.Query{Where: store.FieldRecruiterID, Value: recruiterID})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

// LogEmail appends an attempt to the email log.
func (s *Service) LogEmail(ctx context.Context, e domain.EmailLogEntry) (int64, error) {
	if e.SentAt.IsZero() {
		e.SentAt = s.now().UTC()
	}
	id, err := s.tables.InsertEmailLog(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("log email for recruiter %d: %w", e.RecruiterID, err)
	}
	return id, nil
}

func (s *Service) EmailLog(ctx context.Context) ([]domain.EmailLogEntry, error) {
	return s.tables.SelectEmailLog(ctx, store.Query{})
}

func (s *Service) EmailLogByMessageID(ctx context.Context, messageID string) ([]domain.EmailLogEntry, error) {
	return s.tables.SelectEmailLog(ctx, store.Query{Where: store.FieldMessageID, Value: messageID})
}

// EmailLogForRecruiter returns the recruiter's attempts, newest first.
func (s *Service) EmailLogForRecruiter(ctx context.Context, recruiterID int64) ([]domain.EmailLogEntry, error) {
	return s.tables.SelectEmailLog(ctx, store.Query{
		Where:   store.FieldRecruiterID,
		Value:   recruiterID,
		OrderBy: store.FieldID,
		Desc:    true,
	})
}

func (s *Service) SentLog(ctx context.Context) ([]domain.EmailLogEntry, error) {
	return s.tables.SelectEmailLog(ctx, store.Query{Where: store.FieldStatus, Value: domain.StatusSent})
}

// RecordSend bumps the send counter after a confirmed send.
func (s *Service) RecordSend(ctx context.Context, recruiterID int64, at time.Time) error {
	r, err := s.tables.FindRecruiter(ctx, store.FieldID, recruiterID)
	if err != nil {
		return fmt.Errorf("record send for recruiter %d: %w", recruiterID, err)
	}
	at = at.UTC()
	patch := store.Patch{
		store.FieldEmailCount: r.SendCount + 1,
		store.FieldLastEmail:  at,
	}
	if r.FirstSentAt == nil {
		patch[store.FieldFirstEmail] = at
	}
	if err := s.tables.UpdateRecruiter(ctx, recruiterID, patch); err != nil {
		return fmt.Errorf("record send for recruiter %d: %w", recruiterID, err)
	}
	return nil
}

// SetRecruiterCounters overwrites the cadence counters, used when they are
// recomputed from the email log.
func (s *Service) SetRecruiterCounters(ctx context.Context, recruiterID int64, count int, first, last *time.Time) error {
	err := s.tables.UpdateRecruiter(ctx, recruiterID, store.Patch{
		store.FieldEmailCount: count,
		store.FieldFirstEmail: first,
		store.FieldLastEmail:  last,
	})
	if err != nil {
		return fmt.Errorf("set counters for recruiter %d: %w", recruiterID, err)
	}
	return nil
}

// MarkRecruiter moves a recruiter to status. Terminal statuses are never
// left; the call reports whether anything changed.
func (s *Service) MarkRecruiter(ctx context.Context, recruiterID int64, status domain.RecruiterStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("mark recruiter %d: invalid status %q", recruiterID, status)
	}
	r, err := s.tables.FindRecruiter(ctx, store.FieldID, recruiterID)
	if err != nil {
		return false, fmt.Errorf("mark recruiter %d: %w", recruiterID, err)
	}
	if r.Status == status || r.Status.Terminal() {
		return false, nil
	}
	if err := s.tables.UpdateRecruiter(ctx, recruiterID, store.Patch{store.FieldStatus: status}); err != nil {
		return false, fmt.Errorf("mark recruiter %d: %w", recruiterID, err)
	}
	s.log.Info("recruiter status changed", "recruiter_id", recruiterID, "from", r.Status, "to", status)
	return true, nil
}

// Jobs lists every stored job, newest posting id first.
func (s *Service) Jobs(ctx context.Context) ([]domain.Job, error) {
	return s.tables.SelectJobs(ctx, store.Query{OrderBy: store.FieldID, Desc: true})
}
