package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/persist"
)

// Collect stores each posting that is not already known. A known job id is
// skipped before any scraping or writing.
func (p *Pipeline) Collect(ctx context.Context, jobIDs []int64) *Report {
	rep := newReport(p.now())
	_ = p.collect(ctx, rep, jobIDs)
	rep.FinishedAt = p.now().UTC()
	return rep
}

// CollectSearch gathers ids from every configured search URL and collects
// them.
func (p *Pipeline) CollectSearch(ctx context.Context) *Report {
	rep := newReport(p.now())
	if err := p.collectSearch(ctx, rep); err != nil {
		rep.Err = err.Error()
	}
	rep.FinishedAt = p.now().UTC()
	return rep
}

func (p *Pipeline) collectSearch(ctx context.Context, rep *Report) error {
	if p.deps.Searcher == nil || len(p.cfg.SearchURLs) == 0 {
		return nil
	}
	seen := map[int64]bool{}
	var ids []int64
	for _, u := range p.cfg.SearchURLs {
		if err := ctx.Err(); err != nil {
			return err
		}
		found, err := p.deps.Searcher.SearchJobIDs(ctx, u, p.cfg.MaxItems)
		if err != nil {
			p.log.Warn("search failed", "url", u, "found", len(found), "err", err)
		}
		for _, id := range found {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		if p.cfg.MaxItems > 0 && len(ids) >= p.cfg.MaxItems {
			ids = ids[:p.cfg.MaxItems]
			break
		}
	}
	p.log.Info("search collected", "urls", len(p.cfg.SearchURLs), "job_ids", len(ids))
	return p.collect(ctx, rep, ids)
}

func (p *Pipeline) collect(ctx context.Context, rep *Report, jobIDs []int64) error {
	for _, id := range jobIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		o := p.collectOne(ctx, id)
		o.Stage = StageCollect
		o.JobID = id
		p.record(rep, o)
	}
	return nil
}

func (p *Pipeline) collectOne(ctx context.Context, jobID int64) Outcome {
	exists, err := p.deps.Store.JobExists(ctx, jobID)
	if err != nil {
		return failed("job lookup", err)
	}
	if exists {
		return Outcome{State: StateSkipped, Reason: "job already stored"}
	}

	post, err := p.deps.Scraper.ScrapePosting(ctx, jobID)
	switch {
	case errors.Is(err, domain.ErrExtractionIncomplete):
		p.log.Info("posting incomplete", "job_id", jobID, "missing", strings.Join(post.Missing(), ","))
	case err != nil:
		return failed("scrape posting", err)
	}
	if post.CompanyProfileURL == "" {
		return Outcome{State: StateFailed, Reason: "posting has no company link"}
	}

	companyID, companyDomain, err := p.company(ctx, post)
	if err != nil {
		return failed("upsert company", err)
	}

	var recruiterID *int64
	if post.RecruiterName != "" && post.RecruiterURL != "" {
		rid, err := p.deps.Store.UpsertRecruiter(ctx, persist.RecruiterInput{
			Name:       post.RecruiterName,
			ProfileURL: post.RecruiterURL,
			Domain:     companyDomain,
		})
		if err != nil {
			return failed("upsert recruiter", err)
		}
		recruiterID = &rid
	}

	err = p.deps.Store.InsertJob(ctx, persist.JobInput{
		ID:          jobID,
		CompanyID:   companyID,
		RecruiterID: recruiterID,
		Title:       post.Title,
		Description: post.Details,
		Role:        domain.RoleMetadata{PostedAt: post.PostedAt, Applicants: post.ApplicantCount},
	})
	if errors.Is(err, domain.ErrDuplicateKey) {
		return Outcome{State: StateSkipped, Reason: "job inserted concurrently"}
	}
	if err != nil {
		return failed("insert job", err)
	}

	o := Outcome{State: StateDiscovered}
	if recruiterID != nil {
		o.RecruiterID = *recruiterID
	} else {
		o.Reason = "no recruiter on posting"
	}
	return o
}

// company upserts the posting's company. The domain resolver only runs for
// companies not yet stored under the profile URL.
func (p *Pipeline) company(ctx context.Context, post domain.Posting) (int64, string, error) {
	in := persist.CompanyInput{
		Name:       post.CompanyName,
		ProfileURL: post.CompanyProfileURL,
		Location:   post.CompanyLocation,
	}

	known, err := p.deps.Store.CompanyByURL(ctx, post.CompanyProfileURL)
	switch {
	case err == nil:
		id, err := p.deps.Store.UpsertCompany(ctx, in)
		return id, known.Domain, err
	case !errors.Is(err, domain.ErrNotFound):
		return 0, "", err
	}

	if p.deps.Resolver != nil {
		prof, rerr := p.deps.Resolver.ResolveCompany(ctx, post.CompanyProfileURL, post.CompanyName)
		if rerr != nil {
			p.log.Info("company details unavailable", "company", post.CompanyName, "err", rerr)
		}
		in.Domain = prof.Domain
		in.Metadata = prof.Metadata
	}

	id, err := p.deps.Store.UpsertCompany(ctx, in)
	return id, in.Domain, err
}

func failed(step string, err error) Outcome {
	return Outcome{State: StateFailed, Reason: fmt.Sprintf("%s: %v", step, err)}
}
