package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadgen-engine/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		url  string
		want Dialect
	}{
		{url: "postgres://u:p@localhost/leads", want: DialectPostgres},
		{url: "postgresql://localhost/leads", want: DialectPostgres},
		{url: "POSTGRES://localhost/leads", want: DialectPostgres},
		{url: "/var/lib/leadgen/leadgen.db", want: DialectSQLite},
		{url: ":memory:", want: DialectSQLite},
	}
	for _, tt := range tests {
		if got := DialectFor(tt.url); got != tt.want {
			t.Errorf("DialectFor(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: DialectPostgres}
	if got := pg.rebind("SELECT a FROM t WHERE b = ? AND c = ?"); got != "SELECT a FROM t WHERE b = $1 AND c = $2" {
		t.Errorf("rebind = %q", got)
	}
	lite := &DB{Dialect: DialectSQLite}
	if got := lite.rebind("x = ?"); got != "x = ?" {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestCompanyFindInsertUpdate(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	id, err := db.InsertCompany(ctx, domain.Company{Name: "Acme", ProfileURL: "https://www.linkedin.com/company/acme", Domain: "acme.com"})
	if err != nil {
		t.Fatalf("InsertCompany: %v", err)
	}

	got, err := db.FindCompany(ctx, FieldCompanyDomain, "acme.com")
	if err != nil {
		t.Fatalf("FindCompany: %v", err)
	}
	if got.ID != id || got.Metadata != "{}" {
		t.Errorf("FindCompany = %+v", got)
	}

	if err := db.UpdateCompany(ctx, id, Patch{FieldMetadata: `{"size":"50"}`}); err != nil {
		t.Fatalf("UpdateCompany: %v", err)
	}
	got, _ = db.FindCompany(ctx, FieldID, id)
	if got.Metadata != `{"size":"50"}` {
		t.Errorf("metadata = %q", got.Metadata)
	}

	_, err = db.InsertCompany(ctx, domain.Company{ProfileURL: "https://www.linkedin.com/company/acme"})
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Errorf("duplicate insert err = %v, want ErrDuplicateKey", err)
	}

	_, err = db.FindCompany(ctx, FieldProfileURL, "https://www.linkedin.com/company/nobody")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("miss err = %v, want ErrNotFound", err)
	}

	if err := db.UpdateCompany(ctx, 9999, Patch{FieldName: "x"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("update missing row err = %v, want ErrNotFound", err)
	}
}

func TestRejectsUnknownColumns(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if _, err := db.FindCompany(ctx, Field("name; DROP TABLE companies"), "x"); err == nil {
		t.Error("expected error for unknown column")
	}
	if err := db.UpdateRecruiter(ctx, 1, Patch{FieldID: 2}); err == nil {
		t.Error("expected error when patching id")
	}
}

func TestRecruiterNullEmailAndTimes(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	id, err := db.InsertRecruiter(ctx, domain.Recruiter{Name: "Jane", ProfileURL: "https://www.linkedin.com/in/jane"})
	if err != nil {
		t.Fatalf("InsertRecruiter: %v", err)
	}
	if _, err := db.InsertRecruiter(ctx, domain.Recruiter{Name: "Bob", ProfileURL: "https://www.linkedin.com/in/bob", Email: "bob@acme.com"}); err != nil {
		t.Fatalf("InsertRecruiter: %v", err)
	}

	missing, err := db.SelectRecruiters(ctx, Query{Where: FieldEmail, Value: nil})
	if err != nil {
		t.Fatalf("SelectRecruiters: %v", err)
	}
	if len(missing) != 1 || missing[0].ID != id {
		t.Fatalf("recruiters without email = %+v", missing)
	}
	if r := missing[0]; r.Status != domain.RecruiterActive || r.LastSentAt != nil || r.SendCount != 0 {
		t.Errorf("fresh recruiter = %+v", r)
	}

	sent := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := db.UpdateRecruiter(ctx, id, Patch{FieldEmailCount: 1, FieldLastEmail: sent, FieldFirstEmail: &sent}); err != nil {
		t.Fatalf("UpdateRecruiter: %v", err)
	}
	r, err := db.FindRecruiter(ctx, FieldID, id)
	if err != nil {
		t.Fatalf("FindRecruiter: %v", err)
	}
	if r.SendCount != 1 || r.LastSentAt == nil || !r.LastSentAt.Equal(sent) || r.FirstSentAt == nil {
		t.Errorf("after update = %+v", r)
	}

	all, _ := db.SelectRecruiters(ctx, Query{})
	if len(all) != 2 {
		t.Errorf("SelectRecruiters(all) = %d rows, want 2", len(all))
	}
}

func TestInsertJobTwiceReportsDuplicate(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	cid, _ := db.InsertCompany(ctx, domain.Company{ProfileURL: "https://www.linkedin.com/company/acme"})
	job := domain.Job{ID: 4012345678, CompanyID: cid, Title: "SRE", Role: domain.RoleMetadata{PostedAt: "2 days ago", Applicants: "40 applicants"}}

	if err := db.InsertJob(ctx, job); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	err := db.InsertJob(ctx, job)
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("second InsertJob err = %v, want ErrDuplicateKey", err)
	}

	jobs, err := db.SelectJobs(ctx, Query{Where: FieldCompanyID, Value: cid})
	if err != nil {
		t.Fatalf("SelectJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("stored %d jobs, want 1", len(jobs))
	}
	if jobs[0].Role.Applicants != "40 applicants" || jobs[0].RecruiterID != nil {
		t.Errorf("stored job = %+v", jobs[0])
	}
}

func TestEmailLogAppendAndSelect(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	rid, _ := db.InsertRecruiter(ctx, domain.Recruiter{ProfileURL: "https://www.linkedin.com/in/jane"})
	entries := []domain.EmailLogEntry{
		{RecruiterID: rid, JobID: 1, MessageID: "010001-abc", Type: domain.EmailInitial, Status: domain.StatusSent},
		{RecruiterID: rid, JobID: 1, Type: domain.EmailFollowUp3, Status: domain.StatusFailed, Error: "throttled"},
	}
	for _, e := range entries {
		if _, err := db.InsertEmailLog(ctx, e); err != nil {
			t.Fatalf("InsertEmailLog: %v", err)
		}
	}

	if _, err := db.InsertEmailLog(ctx, domain.EmailLogEntry{RecruiterID: rid, Status: "lost"}); err == nil {
		t.Error("expected invalid status to be rejected")
	}

	got, err := db.SelectEmailLog(ctx, Query{Where: FieldMessageID, Value: "010001-abc"})
	if err != nil {
		t.Fatalf("SelectEmailLog: %v", err)
	}
	if len(got) != 1 || got[0].Type != domain.EmailInitial || got[0].SentAt.IsZero() {
		t.Errorf("by message id = %+v", got)
	}

	failed, _ := db.SelectEmailLog(ctx, Query{Where: FieldStatus, Value: domain.StatusFailed})
	if len(failed) != 1 || failed[0].Error != "throttled" || failed[0].MessageID != "" {
		t.Errorf("failed rows = %+v", failed)
	}
}

func TestCompanyDomainCache(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if got, err := db.GetCompanyDomain(ctx, "Acme"); err != nil || got != "" {
		t.Fatalf("empty cache = %q, %v", got, err)
	}
	if err := db.PutCompanyDomain(ctx, "  Acme   Corp ", "ACME.com"); err != nil {
		t.Fatalf("PutCompanyDomain: %v", err)
	}
	if err := db.PutCompanyDomain(ctx, "acme corp", "acme.io"); err != nil {
		t.Fatalf("PutCompanyDomain overwrite: %v", err)
	}
	if got, _ := db.GetCompanyDomain(ctx, "ACME CORP"); got != "acme.io" {
		t.Errorf("GetCompanyDomain = %q, want acme.io", got)
	}
}
