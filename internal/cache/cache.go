// Package cache keeps company domain lookups in Redis in front of the
// database table, so repeated runs skip the search engine.
package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backing is the durable domain store behind the cache.
type Backing interface {
	GetCompanyDomain(ctx context.Context, company string) (string, error)
	PutCompanyDomain(ctx context.Context, company, domain string) error
}

type kv interface {
	get(ctx context.Context, key string) (string, bool, error)
	set(ctx context.Context, key, val string, ttl time.Duration) error
}

// Domains is a read-through Redis cache over a Backing store. Redis errors
// are logged and fall through to the backing store.
type Domains struct {
	kv     kv
	next   Backing
	ttl    time.Duration
	log    *slog.Logger
	closer func() error
}

// New connects to Redis at redisURL (redis://host:6379/0).
func New(redisURL string, ttl time.Duration, next Backing, log *slog.Logger) (*Domains, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}

	d := newDomains(redisKV{client}, ttl, next, log)
	d.closer = client.Close
	return d, nil
}

func newDomains(store kv, ttl time.Duration, next Backing, log *slog.Logger) *Domains {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Domains{kv: store, next: next, ttl: ttl, log: log}
}

func (d *Domains) GetCompanyDomain(ctx context.Context, company string) (string, error) {
	key := buildKey(company)
	v, ok, err := d.kv.get(ctx, key)
	if err != nil {
		d.log.Warn("redis get failed", "key", key, "err", err)
	} else if ok {
		return v, nil
	}

	if d.next == nil {
		return "", nil
	}
	v, err = d.next.GetCompanyDomain(ctx, company)
	if err != nil || v == "" {
		return v, err
	}
	if err := d.kv.set(ctx, key, v, d.ttl); err != nil {
		d.log.Warn("redis set failed", "key", key, "err", err)
	}
	return v, nil
}

func (d *Domains) PutCompanyDomain(ctx context.Context, company, domain string) error {
	if d.next != nil {
		if err := d.next.PutCompanyDomain(ctx, company, domain); err != nil {
			return err
		}
	}
	if err := d.kv.set(ctx, buildKey(company), domain, d.ttl); err != nil {
		d.log.Warn("redis set failed", "company", company, "err", err)
	}
	return nil
}

// Close closes the Redis connection.
func (d *Domains) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}

func buildKey(company string) string {
	raw := strings.ToLower(strings.Join(strings.Fields(company), " "))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("leadgen:domain:%x", hash[:8])
}

type redisKV struct{ c *redis.Client }

func (r redisKV) get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r redisKV) set(ctx context.Context, key, val string, ttl time.Duration) error {
	return r.c.Set(ctx, key, val, ttl).Err()
}
