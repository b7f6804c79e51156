// Package dispatch sends rendered outreach through an email provider and
// records every attempt in the email log.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"time"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/pacer"
)

// ErrInvalidRecipient marks a provider rejection of the destination address.
var ErrInvalidRecipient = errors.New("invalid recipient")

type Email struct {
	From             string
	To               string
	Subject          string
	HTML             string
	ConfigurationSet string
}

// Provider delivers one message and returns the provider message id.
type Provider interface {
	Send(ctx context.Context, e Email) (string, error)
}

// Ledger is the persistence the dispatcher writes through.
type Ledger interface {
	LogEmail(ctx context.Context, e domain.EmailLogEntry) (int64, error)
	RecordSend(ctx context.Context, recruiterID int64, at time.Time) error
	MarkRecruiter(ctx context.Context, recruiterID int64, status domain.RecruiterStatus) (bool, error)
	Recruiters(ctx context.Context) ([]domain.Recruiter, error)
	SentLog(ctx context.Context) ([]domain.EmailLogEntry, error)
	SetRecruiterCounters(ctx context.Context, recruiterID int64, count int, first, last *time.Time) error
}

type Outbound struct {
	To          string
	Subject     string
	HTML        string
	RecruiterID int64
	JobID       int64
	Type        domain.EmailType
}

type Result struct {
	OK        bool
	MessageID string
}

type Config struct {
	SenderName       string
	SenderEmail      string
	ConfigurationSet string
}

type Dispatcher struct {
	provider Provider
	ledger   Ledger
	pacer    *pacer.Pacer
	from     string
	confSet  string
	log      *slog.Logger
	now      func() time.Time
}

func New(cfg Config, provider Provider, ledger Ledger, p *pacer.Pacer, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	from := (&mail.Address{Name: cfg.SenderName, Address: cfg.SenderEmail}).String()
	return &Dispatcher{
		provider: provider,
		ledger:   ledger,
		pacer:    p,
		from:     from,
		confSet:  cfg.ConfigurationSet,
		log:      log,
		now:      time.Now,
	}
}

// Send delivers o and logs the attempt. It never returns an error; Result.OK
// is the only failure signal. Bookkeeping failures after a confirmed send
// are logged and left for Reconcile.
func (d *Dispatcher) Send(ctx context.Context, o Outbound) Result {
	log := d.log.With("recruiter_id", o.RecruiterID, "job_id", o.JobID, "email_type", o.Type)

	if err := d.pacer.Wait(ctx, pacer.ServiceEmail); err != nil {
		log.Warn("send aborted before provider call", "reason", "pacing interrupted", "err", err)
		return Result{}
	}

	msgID, err := d.provider.Send(ctx, Email{
		From:             d.from,
		To:               o.To,
		Subject:          o.Subject,
		HTML:             o.HTML,
		ConfigurationSet: d.confSet,
	})
	now := d.now().UTC()

	entry := domain.EmailLogEntry{
		RecruiterID: o.RecruiterID,
		JobID:       o.JobID,
		Type:        o.Type,
		SentAt:      now,
		Subject:     o.Subject,
		Body:        o.HTML,
	}

	if err != nil {
		entry.Status = domain.StatusFailed
		entry.Error = err.Error()
		if _, lerr := d.ledger.LogEmail(ctx, entry); lerr != nil {
			log.Error("email log write failed", "status", entry.Status, "err", lerr)
		}
		log.Warn("send failed", "state", "FAILED", "reason", err.Error())

		if errors.Is(err, ErrInvalidRecipient) {
			if _, merr := d.ledger.MarkRecruiter(ctx, o.RecruiterID, domain.RecruiterFailed); merr != nil {
				log.Error("mark recruiter failed", "err", merr)
			}
		}
		return Result{}
	}

	entry.Status = domain.StatusSent
	entry.MessageID = msgID
	if _, lerr := d.ledger.LogEmail(ctx, entry); lerr != nil {
		// the email went out; keep enough here to restore the row by hand
		log.Error("email log write failed after send", "message_id", msgID, "to", o.To,
			"subject", o.Subject, "sent_at", now.Format(time.RFC3339), "err", lerr)
	}
	if cerr := d.ledger.RecordSend(ctx, o.RecruiterID, now); cerr != nil {
		log.Error("counter update failed after send", "message_id", msgID, "err", cerr)
	}

	log.Info("email sent", "state", "SENT", "message_id", msgID, "to", o.To)
	return Result{OK: true, MessageID: msgID}
}

// Reconcile recomputes send counters from the SENT rows of the email log
// and fixes any recruiter whose stored counters fell behind. A counter
// ahead of the log is left alone and logged, since it means a sent email
// is missing from the log and lowering it would resend. It returns the
// number of recruiters corrected.
func (d *Dispatcher) Reconcile(ctx context.Context) (int, error) {
	sent, err := d.ledger.SentLog(ctx)
	if err != nil {
		return 0, err
	}
	type tally struct {
		count       int
		first, last time.Time
	}
	byRecruiter := map[int64]*tally{}
	for _, e := range sent {
		t := byRecruiter[e.RecruiterID]
		if t == nil {
			t = &tally{first: e.SentAt, last: e.SentAt}
			byRecruiter[e.RecruiterID] = t
		}
		t.count++
		if e.SentAt.Before(t.first) {
			t.first = e.SentAt
		}
		if e.SentAt.After(t.last) {
			t.last = e.SentAt
		}
	}

	recruiters, err := d.ledger.Recruiters(ctx)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, r := range recruiters {
		want := tally{}
		if t := byRecruiter[r.ID]; t != nil {
			want = *t
		}
		if r.SendCount == want.count && sameTime(r.FirstSentAt, want.first) && sameTime(r.LastSentAt, want.last) {
			continue
		}
		if r.SendCount > want.count {
			d.log.Warn("counter ahead of email log; left as is", "recruiter_id", r.ID,
				"send_count", r.SendCount, "logged", want.count)
			continue
		}

		var first, last *time.Time
		if want.count > 0 {
			first, last = &want.first, &want.last
		}
		if err := d.ledger.SetRecruiterCounters(ctx, r.ID, want.count, first, last); err != nil {
			d.log.Error("reconcile recruiter", "recruiter_id", r.ID, "err", err)
			continue
		}
		d.log.Info("counters reconciled", "recruiter_id", r.ID, "from", r.SendCount, "to", want.count)
		fixed++
	}
	return fixed, nil
}

func sameTime(stored *time.Time, want time.Time) bool {
	if stored == nil {
		return want.IsZero()
	}
	return stored.Equal(want)
}
