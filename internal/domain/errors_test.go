package domain

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestClassifiedErrors(t *testing.T) {
	base := io.ErrUnexpectedEOF

	tests := []struct {
		name string
		err  error
		kind error
	}{
		{name: "transient", err: Transient(base), kind: ErrTransient},
		{name: "provider", err: ProviderError(base), kind: ErrProvider},
		{name: "wrapped transient", err: fmt.Errorf("insert recruiter: %w", Transient(base)), kind: ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.kind)
			}
			if !errors.Is(tt.err, base) {
				t.Errorf("cause lost: %v", tt.err)
			}
		})
	}

	if Transient(nil) != nil || ProviderError(nil) != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestRecruiterStatusTerminal(t *testing.T) {
	if RecruiterActive.Terminal() {
		t.Error("active must not be terminal")
	}
	if !RecruiterBounced.Terminal() || !RecruiterFailed.Terminal() {
		t.Error("bounced and failed must be terminal")
	}
}

func TestParseEmailType(t *testing.T) {
	for _, s := range []string{"initial", "follow_up_3", "follow_up_5"} {
		if _, err := ParseEmailType(s); err != nil {
			t.Errorf("ParseEmailType(%q): %v", s, err)
		}
	}
	if _, err := ParseEmailType("follow_up_7"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestPostingMissing(t *testing.T) {
	p := Posting{Title: "SRE", CompanyProfileURL: "https://www.linkedin.com/company/acme", Details: "x"}
	got := p.Missing()
	if len(got) != 1 || got[0] != "recruiter" {
		t.Errorf("Missing() = %v, want [recruiter]", got)
	}
}
