// Package cadence decides whether a recruiter is due for an outreach email
// and which step of the sequence it is.
package cadence

import (
	"fmt"
	"strings"
	"time"

	"leadgen-engine/internal/domain"
)

const (
	FollowUp3Days = 3
	FollowUp5Days = 5

	// MaxContacts is the number of emails in the full sequence.
	MaxContacts = 3
)

type Decision struct {
	Send   bool
	Type   domain.EmailType
	Reason string
}

// Decide maps the last send time and send count to a decision. It depends
// only on its arguments. Elapsed time is counted in whole UTC days.
func Decide(lastSent *time.Time, sendCount int, now time.Time) Decision {
	if sendCount == 0 || lastSent == nil {
		return Decision{Send: true, Type: domain.EmailInitial, Reason: "no previous contact"}
	}
	if sendCount >= MaxContacts || sendCount < 0 {
		return Decision{Reason: fmt.Sprintf("cadence exhausted after %d emails", sendCount)}
	}

	days := ElapsedDays(*lastSent, now)

	switch sendCount {
	case 1:
		if days >= FollowUp3Days {
			return Decision{Send: true, Type: domain.EmailFollowUp3, Reason: fmt.Sprintf("%d days since initial", days)}
		}
		return Decision{Reason: fmt.Sprintf("waiting: %d of %d days", days, FollowUp3Days)}
	case 2:
		if days >= FollowUp5Days {
			return Decision{Send: true, Type: domain.EmailFollowUp5, Reason: fmt.Sprintf("%d days since first follow-up", days)}
		}
		return Decision{Reason: fmt.Sprintf("waiting: %d of %d days", days, FollowUp5Days)}
	}
	return Decision{Reason: "no rule matched"}
}

// ElapsedDays returns the whole days between from and to, floored. A negative
// span (clock skew) counts as zero.
func ElapsedDays(from, to time.Time) int {
	d := to.UTC().Sub(from.UTC())
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

var offsetlessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp reads an ISO-8601 timestamp. Values without an offset are
// taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	// "2024-05-01 10:00:00+00:00" style, as Postgres renders timestamptz.
	if t, err := time.Parse("2006-01-02 15:04:05.999999999Z07:00", s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range offsetlessLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
