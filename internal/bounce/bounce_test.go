package bounce

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"

	"leadgen-engine/internal/domain"
)

const sesBounce = "From: MAILER-DAEMON@amazonses.com\r\n" +
	"To: sender@example.com\r\n" +
	"Subject: Delivery Status Notification (Failure)\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/report; report-type=delivery-status; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=UTF-8\r\n" +
	"\r\n" +
	"An error occurred while trying to deliver the mail to jane@acme.com\r\n" +
	"--b1\r\n" +
	"Content-Type: message/delivery-status\r\n" +
	"\r\n" +
	"Reporting-MTA: dns; a8-30.smtp-out.amazonses.com\r\n" +
	"\r\n" +
	"Final-Recipient: rfc822; Jane@Acme.com\r\n" +
	"Action: failed\r\n" +
	"Status: 5.1.1\r\n" +
	"Diagnostic-Code: smtp; 550 5.1.1 user unknown\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/rfc822-headers\r\n" +
	"\r\n" +
	"Message-ID: <0100018abc-def-000000@email.amazonses.com>\r\n" +
	"Subject: Regarding SRE position at Acme\r\n" +
	"--b1--\r\n"

const delayed = "From: postmaster@example.net\r\n" +
	"Content-Type: multipart/report; report-type=delivery-status; boundary=\"x\"\r\n" +
	"\r\n" +
	"--x\r\n" +
	"Content-Type: message/delivery-status\r\n" +
	"\r\n" +
	"Final-Recipient: rfc822;bob@example.net\r\n" +
	"Action: delayed\r\n" +
	"Status: 4.4.7\r\n" +
	"--x--\r\n"

const flattened = "From: mailer@example.org\r\n" +
	"Subject: Undeliverable\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Your message could not be delivered.\r\n" +
	"Final-Recipient: rfc822; gone@example.org\r\n" +
	"Status: 5.0.0\r\n" +
	"Message-ID: <abc123@email.amazonses.com>\r\n"

func TestParseBounce(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		ok        bool
		want      Report
		permanent bool
	}{
		{
			name: "ses dsn",
			raw:  sesBounce,
			ok:   true,
			want: Report{
				Recipient:  "jane@acme.com",
				Action:     "failed",
				Status:     "5.1.1",
				Diagnostic: "smtp; 550 5.1.1 user unknown",
				MessageID:  "0100018abc-def-000000",
			},
			permanent: true,
		},
		{
			name: "delayed",
			raw:  delayed,
			ok:   true,
			want: Report{Recipient: "bob@example.net", Action: "delayed", Status: "4.4.7"},
		},
		{
			name:      "flattened text",
			raw:       flattened,
			ok:        true,
			want:      Report{Recipient: "gone@example.org", Status: "5.0.0", MessageID: "abc123"},
			permanent: true,
		},
		{
			name: "ordinary mail",
			raw:  "From: a@b.c\r\nSubject: hi\r\n\r\nthanks for reaching out\r\n",
		},
		{
			name: "garbage",
			raw:  "not a message",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseBounce([]byte(tt.raw))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (%+v)", ok, tt.ok, got)
			}
			if got != tt.want {
				t.Errorf("report =\n%+v\nwant\n%+v", got, tt.want)
			}
			if got.Permanent() != tt.permanent {
				t.Errorf("Permanent = %v", got.Permanent())
			}
		})
	}
}

type fakeLedger struct {
	log        []domain.EmailLogEntry
	recruiters map[int64]domain.Recruiter
}

func (f *fakeLedger) EmailLogByMessageID(_ context.Context, id string) ([]domain.EmailLogEntry, error) {
	var out []domain.EmailLogEntry
	for _, e := range f.log {
		if e.MessageID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLedger) EmailLogForRecruiter(_ context.Context, rid int64) ([]domain.EmailLogEntry, error) {
	var out []domain.EmailLogEntry
	for i := len(f.log) - 1; i >= 0; i-- {
		if f.log[i].RecruiterID == rid {
			out = append(out, f.log[i])
		}
	}
	return out, nil
}

func (f *fakeLedger) RecruiterByEmail(_ context.Context, email string) (domain.Recruiter, error) {
	for _, r := range f.recruiters {
		if r.Email == email {
			return r, nil
		}
	}
	return domain.Recruiter{}, domain.ErrNotFound
}

func (f *fakeLedger) LogEmail(_ context.Context, e domain.EmailLogEntry) (int64, error) {
	e.ID = int64(len(f.log) + 1)
	f.log = append(f.log, e)
	return e.ID, nil
}

func (f *fakeLedger) MarkRecruiter(_ context.Context, id int64, s domain.RecruiterStatus) (bool, error) {
	r := f.recruiters[id]
	if r.Status == s || r.Status.Terminal() {
		return false, nil
	}
	r.Status = s
	f.recruiters[id] = r
	return true, nil
}

func newLedger() *fakeLedger {
	return &fakeLedger{
		recruiters: map[int64]domain.Recruiter{
			1: {ID: 1, Email: "jane@acme.com", Status: domain.RecruiterActive},
			2: {ID: 2, Email: "gone@example.org", Status: domain.RecruiterActive},
		},
		log: []domain.EmailLogEntry{
			{ID: 1, RecruiterID: 1, JobID: 4011, MessageID: "0100018abc-def-000000", Type: domain.EmailInitial, Status: domain.StatusSent, Subject: "Regarding SRE"},
			{ID: 2, RecruiterID: 2, JobID: 4012, MessageID: "other", Type: domain.EmailFollowUp3, Status: domain.StatusSent},
		},
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestApply(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	in := NewIntake(nil, l, 0, quiet())
	in.now = func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }

	r, _ := ParseBounce([]byte(sesBounce))
	ok, err := in.Apply(ctx, r)
	if err != nil || !ok {
		t.Fatalf("Apply = %v, %v", ok, err)
	}
	last := l.log[len(l.log)-1]
	if last.Status != domain.StatusBounced || last.RecruiterID != 1 || last.JobID != 4011 || last.MessageID != r.MessageID {
		t.Errorf("bounce row = %+v", last)
	}
	if !strings.Contains(last.Error, "5.1.1") {
		t.Errorf("error text = %q", last.Error)
	}
	if l.recruiters[1].Status != domain.RecruiterBounced {
		t.Errorf("recruiter status = %s", l.recruiters[1].Status)
	}

	// replays are ignored
	ok, err = in.Apply(ctx, r)
	if err != nil || ok || len(l.log) != 3 {
		t.Errorf("replay Apply = %v, %v, log %d", ok, err, len(l.log))
	}

	// message id unknown, recipient known
	ok, err = in.Apply(ctx, Report{Recipient: "gone@example.org", Status: "5.0.0", MessageID: "unknown"})
	if err != nil || !ok || l.recruiters[2].Status != domain.RecruiterBounced {
		t.Errorf("recipient fallback = %v, %v", ok, err)
	}

	// delayed notifications never touch the log
	ok, _ = in.Apply(ctx, Report{Recipient: "jane@acme.com", Action: "delayed", Status: "4.4.7"})
	if ok {
		t.Error("delayed report applied")
	}

	ok, err = in.Apply(ctx, Report{Recipient: "stranger@x.io", Action: "failed"})
	if err != nil || ok {
		t.Errorf("unmatched = %v, %v", ok, err)
	}
}

type fakeSession struct {
	msgs    []Message
	seen    []imap.UID
	fetches int
	closed  bool
}

func (s *fakeSession) UnseenUIDs(context.Context) ([]imap.UID, error) {
	var out []imap.UID
	for _, m := range s.msgs {
		if !slices.Contains(s.seen, m.UID) {
			out = append(out, m.UID)
		}
	}
	return out, nil
}

func (s *fakeSession) Fetch(_ context.Context, uids []imap.UID) ([]Message, error) {
	s.fetches++
	var out []Message
	for _, m := range s.msgs {
		if slices.Contains(uids, m.UID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeSession) MarkSeen(uids []imap.UID) error { s.seen = append(s.seen, uids...); return nil }
func (s *fakeSession) Close()                         { s.closed = true }

type fakeDialer struct {
	s   *fakeSession
	err error
}

func (d fakeDialer) Dial(context.Context) (Session, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.s, nil
}

func TestPollOnce(t *testing.T) {
	sess := &fakeSession{msgs: []Message{
		{UID: 10, Raw: []byte("From: a@b.c\r\nSubject: reply\r\n\r\nsounds good\r\n")},
		{UID: 11, Raw: []byte(sesBounce)},
		{UID: 12, Raw: []byte(delayed)},
	}}
	l := newLedger()
	in := NewIntake(fakeDialer{s: sess}, l, 10, quiet())

	n, err := in.PollOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("PollOnce = %d, %v", n, err)
	}
	if len(sess.seen) != 2 || sess.seen[0] != 11 || sess.seen[1] != 12 {
		t.Errorf("seen = %v, want notifications only", sess.seen)
	}
	if !sess.closed {
		t.Error("session not closed")
	}

	_, err = NewIntake(fakeDialer{err: errors.New("refused")}, l, 10, quiet()).PollOnce(context.Background())
	if err == nil {
		t.Error("dial error swallowed")
	}
}

func TestPollOnceReachesOlderBounces(t *testing.T) {
	// one bounce followed by a full batch and more of ordinary mail
	msgs := []Message{{UID: 1, Raw: []byte(sesBounce)}}
	for uid := imap.UID(2); uid <= 60; uid++ {
		msgs = append(msgs, Message{UID: uid, Raw: []byte("From: a@b.c\r\nSubject: hello\r\n\r\nhi\r\n")})
	}
	msgs = append(msgs, Message{UID: 61, Raw: []byte(delayed)})
	sess := &fakeSession{msgs: msgs}
	in := NewIntake(fakeDialer{s: sess}, newLedger(), 10, quiet())

	n, err := in.PollOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("PollOnce = %d, %v", n, err)
	}
	if sess.fetches != 7 {
		t.Errorf("fetches = %d, want 7 batches", sess.fetches)
	}
	if !slices.Equal(sess.seen, []imap.UID{1, 61}) {
		t.Errorf("seen = %v, want the two notifications", sess.seen)
	}
}

func TestIMAPConfigAddr(t *testing.T) {
	tests := []struct {
		cfg  IMAPConfig
		want string
	}{
		{cfg: IMAPConfig{Host: "imap.gmail.com"}, want: "imap.gmail.com:993"},
		{cfg: IMAPConfig{Host: "mail.local", Port: 1993}, want: "mail.local:1993"},
		{cfg: IMAPConfig{Host: "mail.local:143", Port: 993}, want: "mail.local:143"},
	}
	for _, tt := range tests {
		if got := tt.cfg.addr(); got != tt.want {
			t.Errorf("addr(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}
