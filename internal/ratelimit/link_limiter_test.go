package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/teleload/internal/clock"
	"github.com/smallbiznis/teleload/internal/config"
)

func testRateConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:     true,
		LinkRate:    1,
		LinkBurst:   2,
		LinkLockTTL: time.Minute,
	}
}

func TestLocalLinkLimiterAllowsBurstThenDenies(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	limiter := NewLocalLinkLimiter(testRateConfig(), fake.Now, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "42")
		if err != nil || !ok {
			t.Fatalf("expected request %d allowed, got ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := limiter.Allow(ctx, "42"); ok {
		t.Fatalf("expected third request denied")
	}
	if ok, _ := limiter.Allow(ctx, "43"); !ok {
		t.Fatalf("expected other user to have an independent bucket")
	}

	fake.Advance(time.Second)
	if ok, _ := limiter.Allow(ctx, "42"); !ok {
		t.Fatalf("expected a token after refill")
	}
}

func TestLocalLimiterDropsIdleVisitors(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	limiter := newLocalLimiter(1, 1, time.Minute, fake.Now)

	limiter.Allow("a")
	limiter.Allow("b")
	if got := limiter.size(); got != 2 {
		t.Fatalf("expected 2 visitors, got %d", got)
	}

	fake.Advance(2 * time.Minute)
	limiter.Allow("c")
	if got := limiter.size(); got != 1 {
		t.Fatalf("expected idle visitors collected, got %d", got)
	}
}

func TestAcquireKeepsOneLinkInFlight(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	limiter := NewLocalLinkLimiter(testRateConfig(), fake.Now, nil)
	ctx := context.Background()

	release, ok, err := limiter.Acquire(ctx, "42")
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, got ok=%v err=%v", ok, err)
	}

	if _, ok, _ := limiter.Acquire(ctx, "42"); ok {
		t.Fatalf("expected second acquire to be refused while held")
	}
	if _, ok, _ := limiter.Acquire(ctx, "43"); !ok {
		t.Fatalf("expected lock to be per user")
	}

	release()
	release()

	if _, ok, _ := limiter.Acquire(ctx, "42"); !ok {
		t.Fatalf("expected acquire after release")
	}
}

func TestAcquireLeaseExpires(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	limiter := NewLocalLinkLimiter(testRateConfig(), fake.Now, nil)
	ctx := context.Background()

	if _, ok, _ := limiter.Acquire(ctx, "42"); !ok {
		t.Fatalf("expected acquire")
	}
	fake.Advance(2 * time.Minute)
	if _, ok, _ := limiter.Acquire(ctx, "42"); !ok {
		t.Fatalf("expected expired lease to be replaced")
	}
}

func TestStaleReleaseDoesNotDropNewLease(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	limiter := NewLocalLinkLimiter(testRateConfig(), fake.Now, nil)
	ctx := context.Background()

	stale, _, _ := limiter.Acquire(ctx, "42")
	fake.Advance(2 * time.Minute)
	if _, ok, _ := limiter.Acquire(ctx, "42"); !ok {
		t.Fatalf("expected new lease")
	}

	stale()
	if _, ok, _ := limiter.Acquire(ctx, "42"); ok {
		t.Fatalf("expected stale release to leave the new lease in place")
	}
}

func TestDisabledLimiterAlwaysAllows(t *testing.T) {
	var nilLimiter *LinkLimiter
	ctx := context.Background()

	for _, limiter := range []*LinkLimiter{nilLimiter, {enabled: false}} {
		for i := 0; i < 10; i++ {
			if ok, err := limiter.Allow(ctx, "42"); err != nil || !ok {
				t.Fatalf("expected disabled limiter to allow, got ok=%v err=%v", ok, err)
			}
		}
		release, ok, err := limiter.Acquire(ctx, "42")
		if err != nil || !ok || release == nil {
			t.Fatalf("expected disabled limiter to grant the lock")
		}
		release()
	}
}

func TestLocalLockerValidatesInput(t *testing.T) {
	locks := newLocalLocker(nil)
	if _, _, err := locks.TryLock(context.Background(), "", time.Minute); err != ErrLockKeyEmpty {
		t.Fatalf("expected ErrLockKeyEmpty, got %v", err)
	}
	if _, _, err := locks.TryLock(context.Background(), "k", 0); err != ErrLockTTLInvalid {
		t.Fatalf("expected ErrLockTTLInvalid, got %v", err)
	}
}

func TestCastToFloatParsesStrings(t *testing.T) {
	if got := castToFloat("1.5"); got != 1.5 {
		t.Fatalf("expected 1.5, got %v", got)
	}
	if got := castToFloat(int64(2)); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
	if got := defaultBucketTTL(0.2, 3); got != 30*time.Second {
		t.Fatalf("expected 30s bucket ttl, got %v", got)
	}
}
