package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethpandaops/reportoor/pkg/config"
	"golang.org/x/time/rate"
)

const (
	rateLimitCleanupInterval = 5 * time.Minute
	rateLimitEntryTTL        = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters holds one token bucket per client IP.
type clientLimiters struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
}

func newClientLimiters(requestsPerMinute int, done <-chan struct{}) *clientLimiters {
	cl := &clientLimiters{
		clients: make(map[string]*clientLimiter, 64),
		limit:   rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:   requestsPerMinute,
	}

	go cl.evictLoop(done)

	return cl
}

func (cl *clientLimiters) allow(ip string, now time.Time) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	entry, ok := cl.clients[ip]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.clients[ip] = entry
	}

	entry.lastSeen = now

	return entry.limiter.AllowN(now, 1)
}

func (cl *clientLimiters) evict(now time.Time) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	for ip, entry := range cl.clients {
		if now.Sub(entry.lastSeen) > rateLimitEntryTTL {
			delete(cl.clients, ip)
		}
	}
}

func (cl *clientLimiters) evictLoop(done <-chan struct{}) {
	ticker := time.NewTicker(rateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			cl.evict(now)
		case <-done:
			return
		}
	}
}

// rateLimitMiddleware limits each client IP to the tier's request rate.
func (s *server) rateLimitMiddleware(
	tier config.RateLimitTier,
) func(http.Handler) http.Handler {
	limiters := newClientLimiters(tier.RequestsPerMinute, s.done)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.allow(clientIP(r), time.Now()) {
				writeJSON(w, http.StatusTooManyRequests,
					errorResponse{"rate limit exceeded"})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the first X-Forwarded-For hop, or the remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}
