package server

import (
	"sync"

	"github.com/cockroachdb/tokenbucket"
)

// loginLimiter rate-limits LOGIN attempts per remote address, one
// token bucket per address, reusing the accept loop's natural per-
// connection checkpoint rather than a global limiter that would let
// one noisy address starve every other client.
type loginLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenbucket.TokenBucket
	rate    tokenbucket.TokensPerSecond
	burst   tokenbucket.Tokens
}

func newLoginLimiter(rate tokenbucket.TokensPerSecond, burst tokenbucket.Tokens) *loginLimiter {
	return &loginLimiter{
		buckets: make(map[string]*tokenbucket.TokenBucket),
		rate:    rate,
		burst:   burst,
	}
}

// Allow reports whether addr may attempt another LOGIN right now.
func (l *loginLimiter) Allow(addr string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[addr]
	if !ok {
		bucket = &tokenbucket.TokenBucket{}
		bucket.Init(l.rate, l.burst)
		l.buckets[addr] = bucket
	}
	l.mu.Unlock()

	fulfilled, _ := bucket.TryToFulfill(1)
	return fulfilled
}

// forget drops a bucket once its connection closes, so a long-lived
// server doesn't accumulate one bucket per address forever.
func (l *loginLimiter) forget(addr string) {
	l.mu.Lock()
	delete(l.buckets, addr)
	l.mu.Unlock()
}
