package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"leadgen-engine/internal/domain"
)

// GetCompanyDomain returns the cached domain for a company key, or "" if missing.
func (d *DB) GetCompanyDomain(ctx context.Context, company string) (string, error) {
	company = normalizeCompanyKey(company)
	if company == "" {
		return "", nil
	}

	var dom string
	err := classify(d.queryRow(ctx,
		`SELECT domain FROM company_domains WHERE company = ? LIMIT 1;`,
		company,
	).Scan(&dom))

	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(dom), nil
}

func (d *DB) PutCompanyDomain(ctx context.Context, company, dom string) error {
	company = normalizeCompanyKey(company)
	dom = strings.ToLower(strings.TrimSpace(dom))

	if company == "" || dom == "" {
		return nil
	}

	_, err := d.exec(ctx, `
INSERT INTO company_domains(company, domain, fetched_at)
VALUES(?,?,?)
ON CONFLICT(company) DO UPDATE SET
  domain = excluded.domain,
  fetched_at = excluded.fetched_at;
`, company, dom, formatTime(time.Now()))

	return err
}

func normalizeCompanyKey(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ToLower(s)
	return s
}
