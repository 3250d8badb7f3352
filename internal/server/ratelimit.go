package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterTTL       = 10 * time.Minute
	limiterSweepTick = time.Minute
)

// clientLimiters keeps one token bucket per client address. Buckets for
// clients idle longer than limiterTTL are swept periodically so the map does
// not grow without bound.
type clientLimiters struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiters(perSecond float64, burst int) *clientLimiters {
	return &clientLimiters{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
	}
}

func (c *clientLimiters) allow(clientAddr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.clients[clientAddr]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[clientAddr] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter.Allow()
}

func (c *clientLimiters) cleanup(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			for addr, entry := range c.clients {
				if time.Since(entry.lastSeen) > limiterTTL {
					delete(c.clients, addr)
				}
			}
			c.mu.Unlock()
		}
	}
}

// withRateLimit rejects clients that exceed the configured request rate with
// a JSON 429.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiters.allow(clientAddr(r)) {
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded",
				"slow down and retry shortly")
			return
		}
		next(w, r)
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
