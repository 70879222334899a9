package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/teleload/internal/clock"
	"github.com/smallbiznis/teleload/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultLinkRate    = 0.2
	defaultLinkBurst   = 3
	defaultLinkLockTTL = 2 * time.Minute
	releaseTimeout     = 2 * time.Second
)

type lockBackend interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// LinkLimiter throttles link submissions per user and keeps at most one link in flight per user.
// With REDIS_ADDR set the bucket and lock live in redis, so several bot replicas share them.
type LinkLimiter struct {
	enabled bool
	rate    float64
	burst   int
	lockTTL time.Duration

	bucket *TokenBucket
	local  *localLimiter
	locks  lockBackend
	log    *zap.Logger
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Clock     clock.Clock `optional:"true"`
}

func NewLinkLimiter(p Params) *LinkLimiter {
	cfg := p.Config.RateLimit
	log := p.Log.Named("ratelimit")

	now := time.Now
	if p.Clock != nil {
		now = p.Clock.Now
	}

	if !cfg.Enabled {
		log.Info("link rate limiting disabled")
		return &LinkLimiter{enabled: false, log: log}
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Info("link rate limiting in process", zap.Float64("rate", cfg.LinkRate), zap.Int("burst", cfg.LinkBurst))
		return NewLocalLinkLimiter(cfg, now, log)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warn("redis ping failed", zap.String("addr", addr), zap.Error(err))
				}
				return nil
			},
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}

	log.Info("link rate limiting via redis", zap.String("addr", addr))
	l := newLinkLimiter(cfg, log)
	l.bucket = NewTokenBucket(client)
	l.locks = NewLocker(client)
	return l
}

// NewLocalLinkLimiter builds an in-process limiter. now defaults to time.Now.
func NewLocalLinkLimiter(cfg config.RateLimitConfig, now func() time.Time, log *zap.Logger) *LinkLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	l := newLinkLimiter(cfg, log)
	l.local = newLocalLimiter(l.rate, l.burst, defaultVisitorTTL, now)
	l.locks = newLocalLocker(now)
	return l
}

func newLinkLimiter(cfg config.RateLimitConfig, log *zap.Logger) *LinkLimiter {
	l := &LinkLimiter{
		enabled: true,
		rate:    cfg.LinkRate,
		burst:   cfg.LinkBurst,
		lockTTL: cfg.LinkLockTTL,
		log:     log,
	}
	if l.rate <= 0 {
		l.rate = defaultLinkRate
	}
	if l.burst <= 0 {
		l.burst = defaultLinkBurst
	}
	if l.lockTTL <= 0 {
		l.lockTTL = defaultLinkLockTTL
	}
	return l
}

func (l *LinkLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow consumes one token from the user's bucket.
func (l *LinkLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	if l.bucket != nil {
		res, err := l.bucket.Allow(ctx, linkRateKey(userID), l.rate, l.burst)
		if err != nil {
			return false, err
		}
		return res.Allowed, nil
	}
	if l.local != nil {
		return l.local.Allow(userID), nil
	}
	return true, nil
}

// Acquire takes the user's in-flight lock. When ok is false another link is still being processed.
// release is never nil and is safe to call more than once.
func (l *LinkLimiter) Acquire(ctx context.Context, userID string) (func(), bool, error) {
	noop := func() {}
	if !l.Enabled() || l.locks == nil {
		return noop, true, nil
	}

	key := linkLockKey(userID)
	token, ok, err := l.locks.TryLock(ctx, key, l.lockTTL)
	if err != nil {
		return noop, false, err
	}
	if !ok {
		return noop, false, nil
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := l.locks.Release(releaseCtx, key, token); err != nil {
			l.log.Warn("link lock release failed", zap.String("key", key), zap.Error(err))
		}
	}, true, nil
}

func linkRateKey(userID string) string {
	return fmt.Sprintf("teleload:link:rate:%s", userID)
}

func linkLockKey(userID string) string {
	return fmt.Sprintf("teleload:link:lock:%s", userID)
}
