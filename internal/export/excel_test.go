package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"leadgen-engine/internal/domain"
)

func sample() ([]domain.Recruiter, []domain.EmailLogEntry) {
	sent := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	recruiters := []domain.Recruiter{
		{ID: 1, Name: "Jane Doe", ProfileURL: "https://www.linkedin.com/in/jane", CompanyDomain: "acme.com",
			Email: "jane@acme.com", SendCount: 1, FirstSentAt: &sent, LastSentAt: &sent, Status: domain.RecruiterActive},
		{ID: 2, Name: "Raj Patel", Status: domain.RecruiterBounced},
	}
	log := []domain.EmailLogEntry{
		{ID: 1, RecruiterID: 1, JobID: 4011, MessageID: "m-1", Type: domain.EmailInitial, SentAt: sent,
			Status: domain.StatusSent, Subject: "Regarding SRE position at Acme"},
	}
	return recruiters, log
}

func TestWrite(t *testing.T) {
	recruiters, log := sample()
	var buf bytes.Buffer
	if err := Write(&buf, recruiters, log); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 2 || got[0] != SheetRecruiters || got[1] != SheetEmailLog {
		t.Fatalf("sheets = %v", got)
	}

	rows, err := f.GetRows(SheetRecruiters)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("recruiter rows = %d", len(rows))
	}
	if rows[0][1] != "Name" || rows[1][4] != "jane@acme.com" || rows[1][7] != "2026-03-01T09:00:00Z" || rows[2][5] != "bounced" {
		t.Errorf("recruiter rows = %v", rows)
	}

	rows, _ = f.GetRows(SheetEmailLog)
	if len(rows) != 2 || rows[1][2] != "4011" || rows[1][3] != "initial" || rows[1][7] != "m-1" {
		t.Errorf("log rows = %v", rows)
	}
}

func TestWriteFileAddsExtension(t *testing.T) {
	recruiters, log := sample()
	path, err := WriteFile(filepath.Join(t.TempDir(), "report"), recruiters, log)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if filepath.Ext(path) != ".xlsx" {
		t.Errorf("path = %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("stat: %v", err)
	}
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, _ := f.GetRows(SheetEmailLog)
	if len(rows) != 1 {
		t.Errorf("empty log rows = %v", rows)
	}
}
