// Package fetch retrieves site pages politely: a single shared rate limiter
// spaces outbound requests, transient failures are retried with capped
// exponential backoff and every successful response lands in a local cache so
// reruns do not touch the network.
package fetch

import (
	"math/rand"
	"sync"
	"time"
)

// Limiter spaces calls at least interval apart with optional jitter. Safe for
// concurrent use, all workers share one instance so the site sees a single
// polite client no matter the worker count.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	jitter   float64 // 0..1, fraction of interval
	next     time.Time
	rnd      *rand.Rand

	now   func() time.Time
	sleep func(time.Duration)
}

func NewLimiter(interval time.Duration, jitter float64) *Limiter {
	return newLimiter(interval, jitter, time.Now, time.Sleep)
}

func newLimiter(interval time.Duration, jitter float64, now func() time.Time, sleep func(time.Duration)) *Limiter {
	return &Limiter{
		interval: interval,
		jitter:   jitter,
		next:     now(),
		rnd:      rand.New(rand.NewSource(now().UnixNano())),
		now:      now,
		sleep:    sleep,
	}
}

// Wait blocks until the next request slot and reserves the one after it.
// Calls are serialized, the lock is held across the sleep on purpose.
func (l *Limiter) Wait() {
	if l == nil || l.interval <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if d := l.next.Sub(now); d > 0 {
		l.sleep(d)
		now = l.now()
	}
	factor := 1.0
	if l.jitter > 0 {
		factor = 1 - l.jitter + 2*l.jitter*l.rnd.Float64()
	}
	base := l.next
	if now.After(base) {
		base = now
	}
	l.next = base.Add(time.Duration(float64(l.interval) * factor))
}
