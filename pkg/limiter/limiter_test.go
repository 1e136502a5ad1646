package limiter

import (
	"context"
	"testing"
	"time"
)

func TestAcquireImmediateWithinBurst(t *testing.T) {
	l := New(5)
	ctx := context.Background()

	// The bucket starts full, so the first 5 permits return immediately.
	start := time.Now()
	for range 5 {
		if err := l.Acquire(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("expected burst permits without waiting, took %v", elapsed)
	}
}

func TestAcquirePacesBeyondBurst(t *testing.T) {
	l := New(10)
	ctx := context.Background()

	// Drain the burst, then 10 more permits must take roughly a second.
	for range 10 {
		if err := l.Acquire(ctx); err != nil {
			t.Fatal(err)
		}
	}

	start := time.Now()
	for range 10 {
		if err := l.Acquire(ctx); err != nil {
			t.Fatal(err)
		}
	}
	elapsed := time.Since(start)
	if elapsed < 800*time.Millisecond {
		t.Errorf("10 permits at 10/s finished in %v, expected about 1s", elapsed)
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	l := New(1)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	// Bucket is empty; a short deadline must abort the wait.
	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Acquire(shortCtx); err == nil {
		t.Fatal("expected error when context expires before a permit is free")
	}
}

func TestAllow(t *testing.T) {
	l := New(1)

	if !l.Allow() {
		t.Fatal("expected first permit to be available")
	}
	if l.Allow() {
		t.Fatal("expected bucket to be empty after one permit")
	}
}

func TestFractionalRateKeepsBurstOfOne(t *testing.T) {
	l := New(0.5)

	if !l.Allow() {
		t.Fatal("expected one permit even for sub-1/s rates")
	}
	if l.Allow() {
		t.Fatal("expected no second immediate permit at 0.5/s")
	}
}
