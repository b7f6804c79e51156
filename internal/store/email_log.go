package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"leadgen-engine/internal/cadence"
	"leadgen-engine/internal/domain"
)

const emailLogCols = `id, recruiter_id, job_id, message_id, email_type, sent_at, status, subject, content, error_message`

func scanEmailLog(s scanner) (domain.EmailLogEntry, error) {
	var (
		e               domain.EmailLogEntry
		msgID, errText  sql.NullString
		typ, sent, stat string
	)
	if err := s.Scan(&e.ID, &e.RecruiterID, &e.JobID, &msgID, &typ, &sent, &stat,
		&e.Subject, &e.Body, &errText); err != nil {
		return domain.EmailLogEntry{}, classify(err)
	}
	e.MessageID = msgID.String
	e.Error = errText.String
	e.Type = domain.EmailType(typ)
	e.Status = domain.EmailStatus(stat)

	t, err := cadence.ParseTimestamp(sent)
	if err != nil {
		return domain.EmailLogEntry{}, fmt.Errorf("email_log %d sent_at: %w", e.ID, err)
	}
	e.SentAt = t
	return e, nil
}

// InsertEmailLog appends one row. The log is never updated in place.
func (d *DB) InsertEmailLog(ctx context.Context, e domain.EmailLogEntry) (int64, error) {
	if !e.Status.Valid() {
		return 0, fmt.Errorf("insert email_log: invalid status %q", e.Status)
	}
	sent := e.SentAt
	if sent.IsZero() {
		sent = time.Now()
	}
	id, err := d.insertID(ctx, `
INSERT INTO email_log (recruiter_id, job_id, message_id, email_type, sent_at, status, subject, content, error_message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id;`,
		e.RecruiterID, e.JobID, nullString(e.MessageID), string(e.Type), formatTime(sent),
		string(e.Status), e.Subject, e.Body, nullString(e.Error),
	)
	if err != nil {
		return 0, fmt.Errorf("insert email_log recruiter=%d job=%d: %w", e.RecruiterID, e.JobID, err)
	}
	return id, nil
}

func (d *DB) SelectEmailLog(ctx context.Context, q Query) ([]domain.EmailLogEntry, error) {
	tail, args, err := q.sql(tableEmailLog)
	if err != nil {
		return nil, err
	}
	rows, err := d.query(ctx, `SELECT `+emailLogCols+` FROM email_log`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("select email_log: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailLogEntry
	for rows.Next() {
		e, err := scanEmailLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, classify(rows.Err())
}
