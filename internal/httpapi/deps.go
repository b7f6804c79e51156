package httpapi

import (
	"context"
	"log/slog"
	"sync/atomic"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/events"
	"leadgen-engine/internal/pipeline"
	"leadgen-engine/internal/runner"
)

// LeadReader is the read side of the persistence layer.
type LeadReader interface {
	Recruiters(ctx context.Context) ([]domain.Recruiter, error)
	Recruiter(ctx context.Context, id int64) (domain.Recruiter, error)
	Jobs(ctx context.Context) ([]domain.Job, error)
	JobsForRecruiter(ctx context.Context, recruiterID int64) ([]domain.Job, error)
	EmailLog(ctx context.Context) ([]domain.EmailLogEntry, error)
	EmailLogForRecruiter(ctx context.Context, recruiterID int64) ([]domain.EmailLogEntry, error)
}

type Runner interface {
	Run(ctx context.Context) (*pipeline.Report, error)
	Status() runner.Status
}

type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

type Deps struct {
	Leads      LeadReader
	Runner     Runner
	Reconciler Reconciler // nil when sending is disabled

	Hub *events.Hub
	Log *slog.Logger

	// RunCtx bounds runs started over HTTP; they outlive the request.
	RunCtx context.Context

	// Atomic stores
	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Secret storage (inject for testability)
	SetSecret    func(name, value string) error
	DeleteSecret func(name string) error
}
