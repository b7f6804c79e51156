package pacer

import (
	"context"
	"testing"
	"time"
)

func TestWaitSpacesCalls(t *testing.T) {
	p := New(map[string]time.Duration{ServiceEmail: 50 * time.Millisecond}, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx, ServiceEmail); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	// first call is free, the next two wait one delay each
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("three paced calls took %v, want >= ~100ms", elapsed)
	}
}

func TestZeroDelayDoesNotBlock(t *testing.T) {
	p := New(nil, 0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := p.Wait(context.Background(), ServiceSite); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("unpaced service blocked")
	}
}

func TestWaitHonorsCancel(t *testing.T) {
	p := New(map[string]time.Duration{ServiceLookup: time.Hour}, 0)
	ctx, cancel := context.WithCancel(context.Background())

	_ = p.Wait(ctx, ServiceLookup)
	cancel()
	if err := p.Wait(ctx, ServiceLookup); err == nil {
		t.Error("expected error after cancel")
	}
}

func TestNilPacer(t *testing.T) {
	var p *Pacer
	if err := p.Wait(context.Background(), ServiceEmail); err != nil {
		t.Errorf("nil pacer Wait = %v", err)
	}
}
