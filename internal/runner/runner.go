// Package runner serializes pipeline runs within the process and across
// processes sharing a data dir.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"leadgen-engine/internal/events"
	"leadgen-engine/internal/pipeline"
)

// ErrBusy means another run holds the lock.
var ErrBusy = errors.New("a run is already in progress")

type Pipeline interface {
	Run(ctx context.Context) *pipeline.Report
}

type Status struct {
	Running   bool             `json:"running"`
	LastRunAt string           `json:"last_run_at,omitempty"`
	LastRunID string           `json:"last_run_id,omitempty"`
	LastError string           `json:"last_error,omitempty"`
	Last      *pipeline.Report `json:"last_report,omitempty"`
}

type Runner struct {
	p       Pipeline
	lock    *flock.Flock
	hub     *events.Hub
	log     *slog.Logger
	running atomic.Bool

	mu     sync.Mutex
	status Status
}

// New builds a runner whose cross-process lock lives at lockPath.
func New(p Pipeline, lockPath string, hub *events.Hub, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{p: p, lock: flock.New(lockPath), hub: hub, log: log}
}

// Run executes one pipeline run, or returns ErrBusy when one is already
// going here or in another process.
func (r *Runner) Run(ctx context.Context) (*pipeline.Report, error) {
	return r.RunWith(ctx, r.p.Run)
}

// RunWith runs fn under the same in-process flag and file lock as Run,
// for partial runs such as collecting a fixed list of postings.
func (r *Runner) RunWith(ctx context.Context, fn func(context.Context) *pipeline.Report) (*pipeline.Report, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer r.running.Store(false)

	locked, err := r.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("run lock %s: %w", r.lock.Path(), err)
	}
	if !locked {
		return nil, ErrBusy
	}
	defer func() {
		if err := r.lock.Unlock(); err != nil {
			r.log.Warn("run lock release failed", "path", r.lock.Path(), "err", err)
		}
	}()

	r.setStatus(func(s *Status) {
		s.Running = true
		s.LastRunAt = time.Now().Format(time.RFC3339)
	})
	r.hub.Publish(events.TypeRunStarted, "", nil)

	rep := fn(ctx)

	r.setStatus(func(s *Status) {
		s.Running = false
		s.LastRunID = rep.RunID
		s.LastError = rep.Err
		s.Last = rep
	})
	r.hub.Publish(events.TypeRunFinished, rep.RunID, rep.Counts)
	return rep, nil
}

// Task adapts Run to a scheduler task. A busy lock is not an error.
func (r *Runner) Task(ctx context.Context) error {
	_, err := r.Run(ctx)
	if errors.Is(err, ErrBusy) {
		r.log.Info("scheduled run skipped", "reason", err.Error())
		return nil
	}
	return err
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Runner) setStatus(fn func(*Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.status)
}
