// Package persist owns every write to companies, recruiters, jobs and the
// email log. Upserts are read-modify-write over store.Tables and are
// idempotent on profile URL and domain.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/scrape/util"
	"leadgen-engine/internal/store"
)

type Service struct {
	tables store.Tables
	log    *slog.Logger
	now    func() time.Time
}

func New(tables store.Tables, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{tables: tables, log: log, now: time.Now}
}

type CompanyInput struct {
	Name       string
	ProfileURL string
	Domain     string
	Location   string
	Metadata   map[string]string
}

type RecruiterInput struct {
	Name       string
	ProfileURL string
	Domain     string
}

type JobInput struct {
	ID          int64
	CompanyID   int64
	RecruiterID *int64
	Title       string
	Description string
	Role        domain.RoleMetadata
}

// UpsertCompany finds a company by profile URL, then by domain, and inserts
// it when neither matches. A hit is patched with a non-empty domain and with
// merged metadata; nothing is written when the stored row already matches.
func (s *Service) UpsertCompany(ctx context.Context, in CompanyInput) (int64, error) {
	profileURL := util.NormalizeProfileURL(in.ProfileURL)
	dom := util.NormalizeDomain(in.Domain)
	if profileURL == "" {
		return 0, fmt.Errorf("upsert company %q: empty profile url", in.Name)
	}

	existing, err := s.tables.FindCompany(ctx, store.FieldProfileURL, profileURL)
	if errors.Is(err, domain.ErrNotFound) && dom != "" {
		existing, err = s.tables.FindCompany(ctx, store.FieldCompanyDomain, dom)
	}

	switch {
	case err == nil:
		patch := store.Patch{}
		if dom != "" && dom != existing.Domain {
			patch[store.FieldCompanyDomain] = dom
		}
		if merged, changed := MergeMetadata(existing.Metadata, in.Metadata); changed {
			patch[store.FieldMetadata] = merged
		}
		if existing.Name == "" && strings.TrimSpace(in.Name) != "" {
			patch[store.FieldName] = strings.TrimSpace(in.Name)
		}
		if existing.Location == "" && strings.TrimSpace(in.Location) != "" {
			patch[store.FieldLocation] = strings.TrimSpace(in.Location)
		}
		if len(patch) == 0 {
			return existing.ID, nil
		}
		if err := s.tables.UpdateCompany(ctx, existing.ID, patch); err != nil {
			return 0, fmt.Errorf("upsert company %q: %w", profileURL, err)
		}
		s.log.Debug("company patched", "company_id", existing.ID, "fields", patchFields(patch))
		return existing.ID, nil

	case errors.Is(err, domain.ErrNotFound):
		meta, _ := MergeMetadata("", in.Metadata)
		id, err := s.tables.InsertCompany(ctx, domain.Company{
			Name:       strings.TrimSpace(in.Name),
			ProfileURL: profileURL,
			Domain:     dom,
			Metadata:   meta,
			Location:   strings.TrimSpace(in.Location),
		})
		if err != nil {
			return 0, fmt.Errorf("upsert company %q: %w", profileURL, err)
		}
		s.log.Info("company created", "company_id", id, "url", profileURL, "domain", dom)
		return id, nil

	default:
		return 0, fmt.Errorf("upsert company %q: %w", profileURL, err)
	}
}

// MergeMetadata unions the stored JSON object with the incoming attributes.
// Incoming non-empty values win per key; empty incoming values never erase
// stored ones. It reports whether the result differs from stored.
func MergeMetadata(stored string, incoming map[string]string) (string, bool) {
	base := map[string]any{}
	stored = strings.TrimSpace(stored)
	if stored != "" && stored != "{}" {
		if err := json.Unmarshal([]byte(stored), &base); err != nil {
			// not a JSON object; leave it as is
			return stored, false
		}
		if base == nil {
			base = map[string]any{}
		}
	}

	changed := false
	for k, v := range nonEmpty(incoming) {
		if cur, ok := base[k].(string); ok && cur == v {
			continue
		}
		base[k] = v
		changed = true
	}
	if stored == "" && !changed {
		return "{}", false
	}
	if !changed {
		return stored, false
	}

	b, err := json.Marshal(base) // map keys marshal sorted
	if err != nil {
		return stored, false
	}
	return string(b), true
}

func nonEmpty(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

// UpsertRecruiter finds a recruiter by profile URL, refreshing name and
// domain on a hit, and inserts on a miss. When the write fails with a
// transient or duplicate-key error the lookup is retried once so an id
// written by an earlier or concurrent attempt is recovered.
func (s *Service) UpsertRecruiter(ctx context.Context, in RecruiterInput) (int64, error) {
	profileURL := util.NormalizeProfileURL(in.ProfileURL)
	if profileURL == "" {
		return 0, fmt.Errorf("upsert recruiter %q: empty profile url", in.Name)
	}
	name := strings.TrimSpace(in.Name)
	dom := util.NormalizeDomain(in.Domain)

	id, err := s.writeRecruiter(ctx, profileURL, name, dom)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, domain.ErrTransient) && !errors.Is(err, domain.ErrDuplicateKey) {
		return 0, fmt.Errorf("upsert recruiter %q: %w", profileURL, err)
	}

	s.log.Warn("recruiter write failed, retrying lookup", "url", profileURL, "err", err)
	r, lerr := s.tables.FindRecruiter(ctx, store.FieldProfileURL, profileURL)
	if lerr == nil {
		return r.ID, nil
	}
	return 0, fmt.Errorf("upsert recruiter %q: %w (retry lookup: %v)", profileURL, err, lerr)
}

func (s *Service) writeRecruiter(ctx context.Context, profileURL, name, dom string) (int64, error) {
	existing, err := s.tables.FindRecruiter(ctx, store.FieldProfileURL, profileURL)
	switch {
	case err == nil:
		patch := store.Patch{}
		if name != "" && name != existing.Name {
			patch[store.FieldName] = name
		}
		if dom != "" && dom != existing.CompanyDomain {
			patch[store.FieldCompanyDomain] = dom
		}
		if err := s.tables.UpdateRecruiter(ctx, existing.ID, patch); err != nil {
			return 0, err
		}
		return existing.ID, nil

	case errors.Is(err, domain.ErrNotFound):
		id, err := s.tables.InsertRecruiter(ctx, domain.Recruiter{
			Name:          name,
			ProfileURL:    profileURL,
			CompanyDomain: dom,
			Status:        domain.RecruiterActive,
		})
		if err != nil {
			return 0, err
		}
		s.log.Info("recruiter created", "recruiter_id", id, "url", profileURL)
		return id, nil

	default:
		return 0, err
	}
}

// InsertJob stores a posting once. A repeated id surfaces as a wrapped
// domain.ErrDuplicateKey.
func (s *Service) InsertJob(ctx context.Context, in JobInput) error {
	if in.ID <= 0 {
		return fmt.Errorf("insert job: invalid id %d", in.ID)
	}
	err := s.tables.InsertJob(ctx, domain.Job{
		ID:          in.ID,
		CompanyID:   in.CompanyID,
		RecruiterID: in.RecruiterID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Role:        in.Role,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert job %d: %w", in.ID, err)
	}
	return nil
}

func patchFields(p store.Patch) []string {
	out := make([]string, 0, len(p))
	for f := range p {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}
