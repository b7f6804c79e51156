// Package export writes the outreach state to an xlsx workbook.
package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"leadgen-engine/internal/domain"
)

const (
	SheetRecruiters = "Recruiters"
	SheetEmailLog   = "Email Log"
)

var (
	recruiterHeader = []any{"ID", "Name", "Profile URL", "Company Domain", "Email", "Status", "Emails Sent", "First Email", "Last Email"}
	emailLogHeader  = []any{"ID", "Recruiter ID", "Job ID", "Type", "Status", "Sent At", "Subject", "Message ID", "Error"}
)

// Write renders recruiters and the email log as a two-sheet workbook.
func Write(w io.Writer, recruiters []domain.Recruiter, log []domain.EmailLogEntry) error {
	f, err := build(recruiters, log)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteFile saves the workbook at path, adding the .xlsx extension if
// missing, and returns the final path.
func WriteFile(path string, recruiters []domain.Recruiter, log []domain.EmailLogEntry) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	path = filepath.Clean(path)

	f, err := build(recruiters, log)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func build(recruiters []domain.Recruiter, log []domain.EmailLogEntry) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetRecruiters); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(SheetEmailLog); err != nil {
		_ = f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	rows := make([][]any, 0, len(recruiters))
	for _, r := range recruiters {
		rows = append(rows, []any{
			r.ID, r.Name, r.ProfileURL, r.CompanyDomain, r.Email, string(r.Status),
			r.SendCount, stamp(r.FirstSentAt), stamp(r.LastSentAt),
		})
	}
	if err := writeSheet(f, SheetRecruiters, recruiterHeader, rows, headerStyle); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("recruiters sheet: %w", err)
	}

	rows = rows[:0]
	for _, e := range log {
		rows = append(rows, []any{
			e.ID, e.RecruiterID, e.JobID, string(e.Type), string(e.Status),
			stamp(&e.SentAt), e.Subject, e.MessageID, e.Error,
		})
	}
	if err := writeSheet(f, SheetEmailLog, emailLogHeader, rows, headerStyle); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("email log sheet: %w", err)
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	lastCol, _, _ := excelize.SplitCellName(last)
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
