package bounce

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/emersion/go-imap/v2"

	"leadgen-engine/internal/domain"
)

// Ledger is the persistence bounce intake reads and appends to.
type Ledger interface {
	EmailLogByMessageID(ctx context.Context, messageID string) ([]domain.EmailLogEntry, error)
	EmailLogForRecruiter(ctx context.Context, recruiterID int64) ([]domain.EmailLogEntry, error)
	RecruiterByEmail(ctx context.Context, email string) (domain.Recruiter, error)
	LogEmail(ctx context.Context, e domain.EmailLogEntry) (int64, error)
	MarkRecruiter(ctx context.Context, recruiterID int64, status domain.RecruiterStatus) (bool, error)
}

var errRecorded = errors.New("bounce already recorded")

type Intake struct {
	dialer Dialer
	ledger Ledger
	max    int
	log    *slog.Logger
	now    func() time.Time
}

func NewIntake(dialer Dialer, ledger Ledger, max int, log *slog.Logger) *Intake {
	if log == nil {
		log = slog.Default()
	}
	return &Intake{dialer: dialer, ledger: ledger, max: max, log: log, now: time.Now}
}

// Apply records a hard bounce. The original attempt is found by provider
// message id, falling back to the recipient address. It returns false when
// the report is transient, unmatched or already recorded.
func (in *Intake) Apply(ctx context.Context, r Report) (bool, error) {
	log := in.log.With("recipient", r.Recipient, "message_id", r.MessageID)
	if !r.Permanent() {
		log.Debug("bounce skipped", "reason", "not permanent", "status", r.Status)
		return false, nil
	}

	orig, err := in.original(ctx, r)
	if errors.Is(err, errRecorded) {
		log.Debug("bounce skipped", "reason", "already recorded")
		return false, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		log.Info("bounce skipped", "reason", "no matching outreach")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	entry := domain.EmailLogEntry{
		RecruiterID: orig.RecruiterID,
		JobID:       orig.JobID,
		MessageID:   orig.MessageID,
		Type:        orig.Type,
		SentAt:      in.now().UTC(),
		Status:      domain.StatusBounced,
		Subject:     orig.Subject,
		Error:       bounceText(r),
	}
	if _, err := in.ledger.LogEmail(ctx, entry); err != nil {
		return false, err
	}
	if _, err := in.ledger.MarkRecruiter(ctx, orig.RecruiterID, domain.RecruiterBounced); err != nil {
		return true, err
	}
	log.Info("bounce recorded", "recruiter_id", orig.RecruiterID, "job_id", orig.JobID, "status", r.Status)
	return true, nil
}

func (in *Intake) original(ctx context.Context, r Report) (domain.EmailLogEntry, error) {
	var entries []domain.EmailLogEntry
	if r.MessageID != "" {
		es, err := in.ledger.EmailLogByMessageID(ctx, r.MessageID)
		if err != nil {
			return domain.EmailLogEntry{}, err
		}
		entries = es
	}
	if len(entries) == 0 && r.Recipient != "" {
		rec, err := in.ledger.RecruiterByEmail(ctx, r.Recipient)
		if err != nil {
			return domain.EmailLogEntry{}, err
		}
		es, err := in.ledger.EmailLogForRecruiter(ctx, rec.ID)
		if err != nil {
			return domain.EmailLogEntry{}, err
		}
		entries = es
	}

	var sent *domain.EmailLogEntry
	for i := range entries {
		switch entries[i].Status {
		case domain.StatusBounced:
			if r.MessageID == "" || entries[i].MessageID == r.MessageID {
				return domain.EmailLogEntry{}, errRecorded
			}
		case domain.StatusSent, domain.StatusDelivered, domain.StatusOpened:
			if sent == nil {
				sent = &entries[i]
			}
		}
	}
	if sent == nil {
		return domain.EmailLogEntry{}, domain.ErrNotFound
	}
	return *sent, nil
}

func bounceText(r Report) string {
	s := "bounced"
	if r.Status != "" {
		s += " " + r.Status
	}
	if r.Diagnostic != "" {
		s += ": " + r.Diagnostic
	}
	return s
}

// PollOnce reads every unseen message in batches, records each hard bounce
// found and marks the notifications seen. Other mail is left unread, so it
// is looked at again on the next poll.
func (in *Intake) PollOnce(ctx context.Context) (int, error) {
	sess, err := in.dialer.Dial(ctx)
	if err != nil {
		return 0, err
	}
	defer sess.Close()

	uids, err := sess.UnseenUIDs(ctx)
	if err != nil {
		return 0, err
	}

	batch := in.max
	if batch <= 0 {
		batch = 50
	}
	recorded := 0
	for len(uids) > 0 {
		n := min(batch, len(uids))
		page := uids[:n]
		uids = uids[n:]

		msgs, err := sess.Fetch(ctx, page)
		if err != nil {
			return recorded, err
		}
		got, seen := in.applyAll(ctx, msgs)
		recorded += got
		if err := sess.MarkSeen(seen); err != nil {
			return recorded, err
		}
	}
	return recorded, nil
}

// applyAll handles one fetched batch and returns the UIDs that were
// delivery notifications.
func (in *Intake) applyAll(ctx context.Context, msgs []Message) (int, []imap.UID) {
	recorded := 0
	var seen []imap.UID
	for _, m := range msgs {
		r, ok := ParseBounce(m.Raw)
		if !ok {
			continue
		}
		applied, err := in.Apply(ctx, r)
		if err != nil {
			in.log.Error("bounce apply failed", "uid", m.UID, "err", err)
			continue
		}
		if applied {
			recorded++
		}
		seen = append(seen, m.UID)
	}
	return recorded, seen
}
