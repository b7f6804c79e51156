// Package apollo looks up work emails through the Apollo people-match API.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/pacer"
)

const DefaultBaseURL = "https://api.apollo.io"

const lockedPrefix = "email_not_unlocked@"

type Client struct {
	base   string
	apiKey string
	http   *http.Client
	pacer  *pacer.Pacer
	log    *slog.Logger
}

var _ domain.EmailFinder = (*Client)(nil)

func New(baseURL, apiKey string, p *pacer.Pacer, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		base:   base,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 15 * time.Second},
		pacer:  p,
		log:    log,
	}
}

type matchRequest struct {
	Name      string `json:"name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Domain    string `json:"domain,omitempty"`
}

type matchResponse struct {
	Person *struct {
		Email       string `json:"email"`
		EmailStatus string `json:"email_status"`
	} `json:"person"`
}

// FindEmail matches a person by name at a company domain. A person without an
// unlocked email is domain.ErrNotFound.
func (c *Client) FindEmail(ctx context.Context, name, companyDomain string) (string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" || strings.TrimSpace(companyDomain) == "" {
		return "", fmt.Errorf("apollo: name and domain required: %w", domain.ErrNotFound)
	}
	if err := c.pacer.Wait(ctx, pacer.ServiceLookup); err != nil {
		return "", err
	}

	first, last, _ := strings.Cut(name, " ")
	body, err := json.Marshal(matchRequest{Name: name, FirstName: first, LastName: last, Domain: companyDomain})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/people/match", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", domain.Transient(fmt.Errorf("apollo match: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("apollo match %q: %w", name, domain.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", domain.Transient(fmt.Errorf("apollo match: status %s", resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("apollo match: status %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	var out matchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("apollo match: decode: %w", err)
	}
	if out.Person == nil {
		return "", fmt.Errorf("apollo match %q: no person: %w", name, domain.ErrNotFound)
	}
	email := strings.ToLower(strings.TrimSpace(out.Person.Email))
	if email == "" || strings.HasPrefix(email, lockedPrefix) || !strings.Contains(email, "@") {
		return "", fmt.Errorf("apollo match %q: no unlocked email: %w", name, domain.ErrNotFound)
	}
	c.log.Debug("apollo match", "name", name, "domain", companyDomain, "email_status", out.Person.EmailStatus)
	return email, nil
}
