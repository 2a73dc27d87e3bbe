package fetch

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"boardwatch/internal/urlutil"
)

// Limiter enforces a minimum interval between requests per registrable
// domain (jobs.example.com and www.example.com share a budget). Distinct
// domains never wait on each other; waiters for one domain are served in
// FIFO order by the underlying rate.Limiter.
type Limiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
	r  rate.Limit
}

// NewLimiter allows reqPerSec requests per second per domain, burst 1,
// i.e. a strict 1/reqPerSec interval between permits.
func NewLimiter(reqPerSec float64) *Limiter {
	if reqPerSec <= 0 {
		reqPerSec = 1.0
	}
	return &Limiter{
		m: make(map[string]*rate.Limiter),
		r: rate.Limit(reqPerSec),
	}
}

func (l *Limiter) limiterFor(domain string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.m[domain]; ok {
		return lim
	}
	lim := rate.NewLimiter(l.r, 1)
	l.m[domain] = lim
	return lim
}

// Wait blocks until the URL's domain may be fetched again. It only errors
// on context cancellation.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain := urlutil.DomainKey(rawURL)
	if domain == "" {
		domain = "_"
	}
	return l.limiterFor(domain).Wait(ctx)
}
