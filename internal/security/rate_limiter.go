// Package security provides per-source-IP query rate limiting for the
// server loop, protecting an authoritative name server from a flood of
// queries (misbehaving client, amplification attempt) without penalizing
// well-behaved resolvers sharing a NAT'd address.
package security

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// entry pairs a token-bucket limiter with the time it was last consulted,
// so Cleanup can evict sources that have gone quiet.
type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter tracks one token-bucket limiter per source IP, bounded to
// maxEntries so an attacker spoofing source addresses cannot grow the map
// without limit.
type RateLimiter struct {
	qps        rate.Limit
	burst      int
	maxEntries int

	mu      sync.Mutex
	sources map[string]*entry
}

// NewRateLimiter creates a limiter allowing qps queries/second per source
// IP (bursting up to burst), tracking at most maxEntries distinct sources.
func NewRateLimiter(qps float64, burst, maxEntries int) *RateLimiter {
	return &RateLimiter{
		qps:        rate.Limit(qps),
		burst:      burst,
		maxEntries: maxEntries,
		sources:    make(map[string]*entry),
	}
}

// Allow reports whether a query from sourceIP should be processed. Once
// allowed, the call consumes one token, so sustained traffic above qps is
// throttled rather than buffered.
func (rl *RateLimiter) Allow(sourceIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.sources[sourceIP]
	if !ok {
		if len(rl.sources) >= rl.maxEntries {
			rl.evictOldestLocked()
		}
		e = &entry{limiter: rate.NewLimiter(rl.qps, rl.burst)}
		rl.sources[sourceIP] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

// evictOldestLocked removes the least-recently-consulted 10% of entries.
// Callers must hold rl.mu.
func (rl *RateLimiter) evictOldestLocked() {
	evictCount := rl.maxEntries / 10
	if evictCount == 0 {
		evictCount = 1
	}

	type aged struct {
		ip       string
		lastSeen time.Time
	}
	all := make([]aged, 0, len(rl.sources))
	for ip, e := range rl.sources {
		all = append(all, aged{ip, e.lastSeen})
	}

	for i := 0; i < evictCount && i < len(all); i++ {
		oldest := i
		for j := i + 1; j < len(all); j++ {
			if all[j].lastSeen.Before(all[oldest].lastSeen) {
				oldest = j
			}
		}
		all[i], all[oldest] = all[oldest], all[i]
		delete(rl.sources, all[i].ip)
	}
}

// Cleanup removes sources that have not queried in the last staleAfter
// duration. The server loop does not call it; the map is otherwise bounded
// only by the eviction in Allow.
func (rl *RateLimiter) Cleanup(staleAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-staleAfter)
	for ip, e := range rl.sources {
		if e.lastSeen.Before(cutoff) {
			delete(rl.sources, ip)
		}
	}
}
