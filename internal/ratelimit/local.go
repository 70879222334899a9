package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultVisitorTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localLimiter keeps one token bucket per key in memory. Idle keys are dropped after ttl.
type localLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

func newLocalLimiter(perSecond float64, burst int, ttl time.Duration, now func() time.Time) *localLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = defaultVisitorTTL
	}
	if now == nil {
		now = time.Now
	}
	return &localLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		ttl:      ttl,
		now:      now,
	}
}

func (l *localLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	now := l.now()

	l.mu.Lock()
	v := l.getVisitorLocked(key, now)
	l.gcLocked(now)
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

func (l *localLimiter) getVisitorLocked(key string, now time.Time) *visitor {
	if v, ok := l.visitors[key]; ok {
		v.lastSeen = now
		return v
	}

	v := &visitor{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	l.visitors[key] = v
	return v
}

func (l *localLimiter) gcLocked(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, key)
		}
	}
}

func (l *localLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// KeyLimiter is an in-process token bucket per key, for surfaces that never
// share state across replicas.
type KeyLimiter struct {
	local *localLimiter
}

func NewKeyLimiter(perSecond float64, burst int, now func() time.Time) *KeyLimiter {
	return &KeyLimiter{local: newLocalLimiter(perSecond, burst, defaultVisitorTTL, now)}
}

func (k *KeyLimiter) Allow(key string) bool {
	if k == nil {
		return true
	}
	return k.local.Allow(key)
}
