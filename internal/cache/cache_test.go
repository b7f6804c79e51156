package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type memKV struct {
	m    map[string]string
	ttls map[string]time.Duration
	err  error
}

func (k *memKV) get(_ context.Context, key string) (string, bool, error) {
	if k.err != nil {
		return "", false, k.err
	}
	v, ok := k.m[key]
	return v, ok, nil
}

func (k *memKV) set(_ context.Context, key, val string, ttl time.Duration) error {
	if k.err != nil {
		return k.err
	}
	k.m[key] = val
	k.ttls[key] = ttl
	return nil
}

type memBacking struct {
	m    map[string]string
	gets int
}

func (b *memBacking) GetCompanyDomain(_ context.Context, company string) (string, error) {
	b.gets++
	return b.m[company], nil
}

func (b *memBacking) PutCompanyDomain(_ context.Context, company, d string) error {
	b.m[company] = d
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestReadThrough(t *testing.T) {
	ctx := context.Background()
	kv := &memKV{m: map[string]string{}, ttls: map[string]time.Duration{}}
	back := &memBacking{m: map[string]string{"Acme": "acme.com"}}
	d := newDomains(kv, time.Hour, back, quiet())

	got, err := d.GetCompanyDomain(ctx, "Acme")
	if err != nil || got != "acme.com" {
		t.Fatalf("first Get = %q, %v", got, err)
	}
	got, _ = d.GetCompanyDomain(ctx, "Acme")
	if got != "acme.com" || back.gets != 1 {
		t.Errorf("second Get = %q, backing reads %d", got, back.gets)
	}
	if kv.ttls[buildKey("Acme")] != time.Hour {
		t.Errorf("ttl = %v", kv.ttls[buildKey("Acme")])
	}

	if err := d.PutCompanyDomain(ctx, "Globex", "globex.io"); err != nil {
		t.Fatal(err)
	}
	if back.m["Globex"] != "globex.io" || kv.m[buildKey("globex")] != "globex.io" {
		t.Errorf("put did not reach both layers: %v %v", back.m, kv.m)
	}

	got, _ = d.GetCompanyDomain(ctx, "Initech")
	if got != "" {
		t.Errorf("miss = %q", got)
	}
	if _, cached := kv.m[buildKey("Initech")]; cached {
		t.Error("empty result cached")
	}
}

func TestRedisDownFallsThrough(t *testing.T) {
	kv := &memKV{err: errors.New("connection refused")}
	back := &memBacking{m: map[string]string{"Acme": "acme.com"}}
	d := newDomains(kv, 0, back, quiet())

	got, err := d.GetCompanyDomain(context.Background(), "Acme")
	if err != nil || got != "acme.com" {
		t.Errorf("Get = %q, %v", got, err)
	}
	if err := d.PutCompanyDomain(context.Background(), "X", "x.com"); err != nil {
		t.Errorf("Put = %v", err)
	}
}

func TestBuildKey(t *testing.T) {
	if buildKey("Acme  Corp") != buildKey(" acme corp") {
		t.Error("key not normalized")
	}
	if buildKey("Acme") == buildKey("Acme Corp") {
		t.Error("distinct companies collide")
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("http://nope", time.Minute, nil, quiet()); err == nil {
		t.Error("expected invalid URL error")
	}
}
