package cadence

import (
	"testing"
	"time"

	"leadgen-engine/internal/domain"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := now.Add(-time.Duration(n) * 24 * time.Hour)
	return &t
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		lastSent *time.Time
		count    int
		wantSend bool
		wantType domain.EmailType
	}{
		{name: "never contacted", lastSent: nil, count: 0, wantSend: true, wantType: domain.EmailInitial},
		{name: "count zero with timestamp", lastSent: daysAgo(1), count: 0, wantSend: true, wantType: domain.EmailInitial},
		{name: "count set but no timestamp", lastSent: nil, count: 2, wantSend: true, wantType: domain.EmailInitial},
		{name: "initial two days ago", lastSent: daysAgo(2), count: 1, wantSend: false},
		{name: "initial exactly three days ago", lastSent: daysAgo(3), count: 1, wantSend: true, wantType: domain.EmailFollowUp3},
		{name: "initial four days ago", lastSent: daysAgo(4), count: 1, wantSend: true, wantType: domain.EmailFollowUp3},
		{name: "follow-up four days ago", lastSent: daysAgo(4), count: 2, wantSend: false},
		{name: "follow-up six days ago", lastSent: daysAgo(6), count: 2, wantSend: true, wantType: domain.EmailFollowUp5},
		{name: "cadence exhausted", lastSent: daysAgo(10), count: 3, wantSend: false},
		{name: "beyond cadence", lastSent: daysAgo(100), count: 7, wantSend: false},
		{name: "future timestamp", lastSent: daysAgo(-2), count: 1, wantSend: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.lastSent, tt.count, now)
			if got.Send != tt.wantSend || got.Type != tt.wantType {
				t.Errorf("Decide() = (%v, %q), want (%v, %q)", got.Send, got.Type, tt.wantSend, tt.wantType)
			}
			if got.Reason == "" {
				t.Error("Decide() returned an empty reason")
			}
		})
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	for count := 0; count <= 4; count++ {
		for days := 0; days <= 8; days++ {
			first := Decide(daysAgo(days), count, now)
			for i := 0; i < 3; i++ {
				if again := Decide(daysAgo(days), count, now); again != first {
					t.Fatalf("Decide(%d days, %d) changed: %+v then %+v", days, count, first, again)
				}
			}
		}
	}
}

func TestElapsedDaysFloorsPartialDays(t *testing.T) {
	from := now.Add(-(3*24*time.Hour - time.Minute))
	if got := ElapsedDays(from, now); got != 2 {
		t.Errorf("ElapsedDays = %d, want 2", got)
	}

	// same instant expressed in another zone
	est := time.FixedZone("EST", -5*3600)
	if got := ElapsedDays(now.Add(-72*time.Hour).In(est), now); got != 3 {
		t.Errorf("ElapsedDays across zones = %d, want 3", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
	}{
		{name: "zulu", input: "2025-03-07T12:00:00Z"},
		{name: "offset", input: "2025-03-07T14:00:00+02:00"},
		{name: "fractional", input: "2025-03-07T12:00:00.000000+00:00"},
		{name: "postgres style", input: "2025-03-07 12:00:00+00:00"},
		{name: "no offset is utc", input: "2025-03-07T12:00:00"},
		{name: "space no offset", input: "2025-03-07 12:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if err != nil {
				t.Fatalf("ParseTimestamp(%q): %v", tt.input, err)
			}
			if !got.Equal(want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.input, got, want)
			}
		})
	}

	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("expected error for garbage input")
	}
}
