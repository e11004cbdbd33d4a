package api

import (
	"sync"
	"time"
)

// Idle buckets are dropped at most once per sweepInterval.
const (
	sweepInterval = time.Minute
	minIdle       = time.Minute
)

// rateLimiter is a per-client token bucket. A non-positive rate disables it.
type rateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rate      float64
	burst     float64
	clock     clock
	idle      time.Duration
	lastSweep time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(perSecond, burst int, clk clock) *rateLimiter {
	if clk == nil {
		clk = realClock{}
	}
	if burst < perSecond {
		burst = perSecond
	}
	limiter := &rateLimiter{
		buckets:   map[string]*bucket{},
		rate:      float64(perSecond),
		burst:     float64(burst),
		clock:     clk,
		idle:      minIdle,
		lastSweep: clk.Now(),
	}
	// A bucket idle for burst/rate seconds is full again and can be forgotten.
	if perSecond > 0 {
		if refill := time.Duration(float64(burst) / float64(perSecond) * float64(time.Second)); refill > limiter.idle {
			limiter.idle = refill
		}
	}
	return limiter
}

func (r *rateLimiter) allow(client string) bool {
	if r == nil || r.rate <= 0 {
		return true
	}

	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Sub(r.lastSweep) >= sweepInterval {
		r.sweepLocked(now)
	}
	b := r.buckets[client]
	if b == nil {
		b = &bucket{tokens: r.burst, last: now}
		r.buckets[client] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * r.rate
		if b.tokens > r.burst {
			b.tokens = r.burst
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (r *rateLimiter) sweepLocked(now time.Time) {
	for client, b := range r.buckets {
		if now.Sub(b.last) >= r.idle {
			delete(r.buckets, client)
		}
	}
	r.lastSweep = now
}
