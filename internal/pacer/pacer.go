// Package pacer enforces a fixed delay between calls to each external
// service.
package pacer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ServiceSite   = "site"
	ServiceEmail  = "email"
	ServiceLookup = "lookup"
	ServiceSearch = "search"
)

// Pacer holds one limiter per service. Each limiter admits one call per
// configured delay with a burst of one, so the first call is immediate.
type Pacer struct {
	mu       sync.Mutex
	m        map[string]*rate.Limiter
	delays   map[string]time.Duration
	fallback time.Duration
}

// New builds a pacer. Services missing from delays use fallback; a zero
// delay disables pacing for that service.
func New(delays map[string]time.Duration, fallback time.Duration) *Pacer {
	d := make(map[string]time.Duration, len(delays))
	for k, v := range delays {
		d[k] = v
	}
	return &Pacer{
		m:        make(map[string]*rate.Limiter),
		delays:   d,
		fallback: fallback,
	}
}

func (p *Pacer) limiterFor(service string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if lim, ok := p.m[service]; ok {
		return lim
	}
	delay, ok := p.delays[service]
	if !ok {
		delay = p.fallback
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	lim := rate.NewLimiter(limit, 1)
	p.m[service] = lim
	return lim
}

// Wait blocks until the next call to service may proceed or ctx is done.
// A nil pacer never blocks.
func (p *Pacer) Wait(ctx context.Context, service string) error {
	if p == nil {
		return ctx.Err()
	}
	return p.limiterFor(service).Wait(ctx)
}
