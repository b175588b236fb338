package server

import (
	"net"
	"sync"

	"golang.org/x/time/rate"
)

// ipLimiters tracks one token bucket per client IP.
type ipLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perSec   int
}

func newIPLimiters(perSec int) *ipLimiters {
	return &ipLimiters{
		limiters: make(map[string]*rate.Limiter),
		perSec:   perSec,
	}
}

func (l *ipLimiters) allow(addr net.Addr) bool {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}

	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.perSec), l.perSec)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
