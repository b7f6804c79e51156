package store

import (
	"context"
	"fmt"
	"strings"
)

const schemaVersion = 1

// Migrate creates the schema. It is safe to call on every start.
func (d *DB) Migrate(ctx context.Context) error {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var v int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version;`).Scan(&v); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v >= schemaVersion {
		return tx.Commit()
	}

	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.Dialect == DialectPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	// ---- Schema v1: tables ----

	stmts := []string{`
CREATE TABLE IF NOT EXISTS companies (
  id {{serial}},
  name TEXT NOT NULL DEFAULT '',
  linkedin_url TEXT NOT NULL UNIQUE,
  company_domain TEXT NOT NULL DEFAULT '',
  metadata TEXT NOT NULL DEFAULT '{}',
  location TEXT NOT NULL DEFAULT ''
);`, `
CREATE TABLE IF NOT EXISTS recruiters (
  id {{serial}},
  name TEXT NOT NULL DEFAULT '',
  linkedin_url TEXT NOT NULL UNIQUE,
  company_domain TEXT NOT NULL DEFAULT '',
  email TEXT,
  email_count INTEGER NOT NULL DEFAULT 0,
  last_email TEXT,
  first_email TEXT,
  status TEXT NOT NULL DEFAULT 'active'
);`, `
CREATE TABLE IF NOT EXISTS linkedin_jobs (
  id BIGINT PRIMARY KEY,
  company_id BIGINT NOT NULL REFERENCES companies(id),
  recruiter_id BIGINT REFERENCES recruiters(id),
  title TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  role_metadata TEXT NOT NULL DEFAULT '{}',
  created_at TEXT NOT NULL
);`, `
CREATE TABLE IF NOT EXISTS email_log (
  id {{serial}},
  recruiter_id BIGINT NOT NULL REFERENCES recruiters(id),
  job_id BIGINT NOT NULL,
  message_id TEXT,
  email_type TEXT NOT NULL,
  sent_at TEXT NOT NULL,
  status TEXT NOT NULL,
  subject TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL DEFAULT '',
  error_message TEXT
);`, `
CREATE TABLE IF NOT EXISTS company_domains (
  company TEXT PRIMARY KEY,
  domain TEXT NOT NULL,
  fetched_at TEXT NOT NULL
);`,

		// ---- Schema v1: indexes ----

		`CREATE INDEX IF NOT EXISTS idx_companies_domain ON companies(company_domain);`,
		`CREATE INDEX IF NOT EXISTS idx_recruiters_email ON recruiters(email);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_recruiter ON linkedin_jobs(recruiter_id);`,
		`CREATE INDEX IF NOT EXISTS idx_email_log_recruiter ON email_log(recruiter_id);`,
		`CREATE INDEX IF NOT EXISTS idx_email_log_message ON email_log(message_id);`,
	}

	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, strings.ReplaceAll(s, "{{serial}}", serial)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, d.rebind(`INSERT INTO schema_version(version) VALUES (?);`), schemaVersion); err != nil {
		return fmt.Errorf("mark schema v%d: %w", schemaVersion, err)
	}

	return tx.Commit()
}
