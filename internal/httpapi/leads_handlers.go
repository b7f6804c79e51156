package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/export"
)

type LeadsHandler struct {
	Leads LeadReader
}

func (h LeadsHandler) Recruiters(w http.ResponseWriter, r *http.Request) {
	rs, err := h.Leads.Recruiters(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if rs == nil {
		rs = []domain.Recruiter{}
	}
	writeJSON(w, rs)
}

// RecruiterByPath serves /recruiters/{id} with the recruiter's jobs and
// email attempts.
func (h LeadsHandler) RecruiterByPath(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromPath(r.URL.Path, "/recruiters/")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "invalid_id", "invalid recruiter id")
		return
	}

	rec, err := h.Leads.Recruiter(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", fmt.Sprintf("recruiter %d not found", id))
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	jobs, err := h.Leads.JobsForRecruiter(r.Context(), id)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	emails, err := h.Leads.EmailLogForRecruiter(r.Context(), id)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	writeJSON(w, map[string]any{
		"recruiter": rec,
		"jobs":      jobs,
		"emails":    emails,
	})
}

func (h LeadsHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Leads.Jobs(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	writeJSON(w, jobs)
}

func (h LeadsHandler) EmailLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Leads.EmailLog(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if entries == nil {
		entries = []domain.EmailLogEntry{}
	}
	writeJSON(w, entries)
}

// Export streams an xlsx workbook of recruiters and the email log.
func (h LeadsHandler) Export(w http.ResponseWriter, r *http.Request) {
	rs, err := h.Leads.Recruiters(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	entries, err := h.Leads.EmailLog(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	name := fmt.Sprintf("leadgen-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := export.Write(w, rs, entries); err != nil {
		// headers are already out; the client sees a truncated file
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
