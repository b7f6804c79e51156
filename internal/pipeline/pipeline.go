// Package pipeline runs the outreach batch: collect postings, resolve
// recruiter emails, then send whatever the cadence says is due. Every unit of
// work ends in a recorded state with a reason; one failing unit never stops
// the batch.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadgen-engine/internal/dispatch"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/persist"
	"leadgen-engine/internal/render"
)

type State string

const (
	StateDiscovered    State = "DISCOVERED"
	StateEmailResolved State = "EMAIL_RESOLVED"
	StateEvaluated     State = "EVALUATED"
	StateSent          State = "SENT"
	StateSkipped       State = "SKIPPED"
	StateFailed        State = "FAILED"
)

// PrimaryJob picks which of a recruiter's jobs an email is about.
type PrimaryJob string

const (
	PrimaryMostRecent PrimaryJob = "most_recent"
	PrimaryFirst      PrimaryJob = "first"
)

func ParsePrimaryJob(s string) (PrimaryJob, error) {
	switch p := PrimaryJob(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PrimaryMostRecent, nil
	case PrimaryMostRecent, PrimaryFirst:
		return p, nil
	}
	return "", fmt.Errorf("unknown primary job policy %q", s)
}

// Store is the persistence the pipeline reads and writes through.
type Store interface {
	JobExists(ctx context.Context, id int64) (bool, error)
	CompanyByURL(ctx context.Context, profileURL string) (domain.Company, error)
	Company(ctx context.Context, id int64) (domain.Company, error)
	UpsertCompany(ctx context.Context, in persist.CompanyInput) (int64, error)
	UpsertRecruiter(ctx context.Context, in persist.RecruiterInput) (int64, error)
	InsertJob(ctx context.Context, in persist.JobInput) error
	RecruitersWithoutEmail(ctx context.Context) ([]domain.Recruiter, error)
	SetRecruiterEmail(ctx context.Context, id int64, email string) error
	DueRecruiters(ctx context.Context) ([]domain.Recruiter, error)
	JobsForRecruiter(ctx context.Context, recruiterID int64) ([]domain.Job, error)
}

type Renderer interface {
	Render(in render.Input) (render.Message, error)
}

type Sender interface {
	Send(ctx context.Context, o dispatch.Outbound) dispatch.Result
}

type Config struct {
	SearchURLs []string
	MaxItems   int
	PrimaryJob PrimaryJob
}

// Deps are the collaborators of a run. Searcher, Finder and Sender are
// optional; a nil one skips its stage.
type Deps struct {
	Store    Store
	Scraper  domain.PostingScraper
	Resolver domain.DomainResolver
	Searcher domain.JobSearcher
	Finder   domain.EmailFinder
	Renderer Renderer
	Sender   Sender

	// OnUnit, when set, observes every finished unit.
	OnUnit func(runID string, o Outcome)
}

type Pipeline struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
	now  func() time.Time
}

func New(cfg Config, deps Deps, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if cfg.PrimaryJob == "" {
		cfg.PrimaryJob = PrimaryMostRecent
	}
	return &Pipeline{cfg: cfg, deps: deps, log: log, now: time.Now}
}

// Outcome is the final state of one unit of work.
type Outcome struct {
	Stage       string           `json:"stage"`
	JobID       int64            `json:"job_id,omitempty"`
	RecruiterID int64            `json:"recruiter_id,omitempty"`
	State       State            `json:"state"`
	Reason      string           `json:"reason,omitempty"`
	Type        domain.EmailType `json:"email_type,omitempty"`
	MessageID   string           `json:"message_id,omitempty"`
}

type Report struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Counts     map[State]int `json:"counts"`
	Outcomes   []Outcome     `json:"outcomes"`
	Err        string        `json:"error,omitempty"`
}

func newReport(now time.Time) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: now.UTC(),
		Counts:    map[State]int{},
	}
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Counts[o.State]++
}

// Count returns how many units of stage ended in s. An empty stage counts
// every stage.
func (r *Report) Count(stage string, s State) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == s && (stage == "" || o.Stage == stage) {
			n++
		}
	}
	return n
}

const (
	StageCollect = "collect"
	StageResolve = "resolve"
	StageSend    = "send"
)

// Run collects the configured searches, resolves missing emails and sends
// due outreach, in that order. Only a cancelled context stops it early.
func (p *Pipeline) Run(ctx context.Context) *Report {
	rep := newReport(p.now())
	log := p.log.With("run_id", rep.RunID)
	log.Info("run started")

	steps := []struct {
		name string
		fn   func(context.Context, *Report) error
	}{
		{StageCollect, p.collectSearch},
		{StageResolve, p.resolveEmails},
		{StageSend, p.sendDue},
	}
	for _, s := range steps {
		if err := s.fn(ctx, rep); err != nil {
			log.Error("run step failed", "step", s.name, "err", err)
			rep.Err = fmt.Sprintf("%s: %v", s.name, err)
			if ctx.Err() != nil {
				break
			}
		}
	}

	rep.FinishedAt = p.now().UTC()
	log.Info("run finished",
		"sent", rep.Counts[StateSent],
		"skipped", rep.Counts[StateSkipped],
		"failed", rep.Counts[StateFailed],
		"took", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond),
	)
	return rep
}

func (p *Pipeline) record(rep *Report, o Outcome) {
	rep.add(o)
	if p.deps.OnUnit != nil {
		p.deps.OnUnit(rep.RunID, o)
	}
	attrs := []any{"stage", o.Stage, "state", o.State}
	if o.JobID != 0 {
		attrs = append(attrs, "job_id", o.JobID)
	}
	if o.RecruiterID != 0 {
		attrs = append(attrs, "recruiter_id", o.RecruiterID)
	}
	if o.Type != domain.EmailTypeNone {
		attrs = append(attrs, "email_type", o.Type)
	}
	if o.Reason != "" {
		attrs = append(attrs, "reason", o.Reason)
	}
	switch o.State {
	case StateFailed:
		p.log.Warn("unit failed", attrs...)
	case StateSkipped:
		p.log.Info("unit skipped", attrs...)
	default:
		p.log.Info("unit done", attrs...)
	}
}
