package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/taskdeck/taskdeck-api/internal/api/shared"
)

const (
	// clientTTL is how long an idle client keeps its bucket. After that the
	// entry is dropped and the client starts over with a full burst.
	clientTTL = 3 * time.Minute

	// sweepInterval bounds how often the stale-entry sweep runs. The sweep
	// happens inline under the lock, so it must stay cheap.
	sweepInterval = time.Minute
)

// RateLimiter applies a per-client token bucket to incoming requests.
// Clients are keyed by IP, so it should sit behind chi's RealIP middleware
// when the server runs behind a proxy.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*rateLimitedClient
	lastSweep time.Time

	perSecond rate.Limit
	burst     int
}

type rateLimitedClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter allowing perSecond requests with the
// given burst per client. Non-positive values fall back to permissive
// defaults rather than locking every client out.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst <= 0 {
		burst = 20
	}

	return &RateLimiter{
		clients:   make(map[string]*rateLimitedClient),
		lastSweep: time.Now(),
		perSecond: rate.Limit(perSecond),
		burst:     burst,
	}
}

// Limit rejects requests that exceed the client's token bucket with 429.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientKey(r)) {
			shared.RespondWithError(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow takes one token from the client's bucket, creating the bucket on
// first sight.
func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > sweepInterval {
		rl.sweepLocked(now)
	}

	c, ok := rl.clients[key]
	if !ok {
		c = &rateLimitedClient{limiter: rate.NewLimiter(rl.perSecond, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now

	return c.limiter.Allow()
}

// sweepLocked drops clients that have been idle longer than clientTTL.
// Callers must hold rl.mu.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > clientTTL {
			delete(rl.clients, key)
		}
	}
	rl.lastSweep = now
}

// clientKey identifies the client for rate-limiting purposes. The port is
// stripped so reconnects share a bucket.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
