package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

type Task func(ctx context.Context) error

// Every runs task now and then once per interval until ctx is done.
func Every(ctx context.Context, interval time.Duration, name string, task Task, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	// run immediately
	runTask(ctx, name, task, log)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			runTask(ctx, name, task, log)
		}
	}
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour, Minute int
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// ParseClock reads "HH:MM" in 24-hour form.
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return Clock{}, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// NextRun is the first instant strictly after now at clock, in now's
// location.
func NextRun(now time.Time, clock Clock) time.Time {
	y, mo, d := now.Date()
	next := time.Date(y, mo, d, clock.Hour, clock.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(y, mo, d+1, clock.Hour, clock.Minute, 0, 0, now.Location())
	}
	return next
}

// Daily runs task every day at clock, and once at start when immediate is
// set, until ctx is done.
func Daily(ctx context.Context, clock Clock, immediate bool, name string, task Task, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	if immediate {
		runTask(ctx, name, task, log)
	}
	for {
		next := NextRun(time.Now(), clock)
		log.Info("next run scheduled", "task", name, "at", next.Format(time.RFC3339))

		t := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
			runTask(ctx, name, task, log)
		}
	}
}

func runTask(ctx context.Context, name string, task Task, log *slog.Logger) {
	if err := task(ctx); err != nil {
		log.Error("scheduled task failed", "task", name, "err", err)
	}
}
