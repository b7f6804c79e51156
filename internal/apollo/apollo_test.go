package apollo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadgen-engine/internal/domain"
)

func TestFindEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/people/match" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Api-Key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req matchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		switch req.FirstName {
		case "Jane":
			if req.LastName != "Doe" || req.Domain != "acme.com" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			fmt.Fprint(w, `{"person":{"email":"Jane.Doe@acme.com","email_status":"verified"}}`)
		case "Locked":
			fmt.Fprint(w, `{"person":{"email":"email_not_unlocked@domain.com"}}`)
		case "Nobody":
			fmt.Fprint(w, `{"person":null}`)
		case "Busy":
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "k", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	tests := []struct {
		name    string
		person  string
		email   string
		wantErr error
	}{
		{name: "match", person: "Jane Doe", email: "jane.doe@acme.com"},
		{name: "locked", person: "Locked Person", wantErr: domain.ErrNotFound},
		{name: "no person", person: "Nobody Here", wantErr: domain.ErrNotFound},
		{name: "rate limited", person: "Busy Bee", wantErr: domain.ErrTransient},
		{name: "empty name", person: " ", wantErr: domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.FindEmail(ctx, tt.person, "acme.com")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.email {
				t.Fatalf("FindEmail = %q, %v; want %q", got, err, tt.email)
			}
		})
	}
}

func TestFindEmailUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "bad", nil, nil).FindEmail(context.Background(), "Jane Doe", "acme.com")
	if err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrTransient) {
		t.Errorf("err = %v, want plain failure", err)
	}
}
