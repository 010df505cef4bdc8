package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	visitorSweepInterval = 5 * time.Minute
	visitorIdleEviction  = 10 * time.Minute
)

type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per route key and client. Idle clients
// are swept out so the visitor table stays bounded.
type RateLimiter struct {
	logger   *slog.Logger
	limits   map[string]RateLimit
	mu       sync.Mutex
	visitors map[string]*rateEntry
	clockNow func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(limits map[string]RateLimit, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := &RateLimiter{
		logger:   logger,
		limits:   limits,
		visitors: make(map[string]*rateEntry),
		clockNow: time.Now,
		stop:     make(chan struct{}),
	}
	go limiter.sweep()
	return limiter
}

// Stop terminates the background sweeper.
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *RateLimiter) Middleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			limit, ok := r.limits[key]
			if !ok {
				next.ServeHTTP(w, req)
				return
			}
			identifier := key + "|" + clientID(req)
			limiter := r.obtainLimiter(identifier, limit)
			if !limiter.Allow() {
				r.logger.Warn("request throttled", "route", key, "client", clientID(req))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func (r *RateLimiter) obtainLimiter(id string, cfg RateLimit) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clockNow()
	entry, ok := r.visitors[id]
	if ok {
		entry.lastSeen = now
		return entry.limiter
	}
	perSecond := cfg.RequestsPerMinute / 60.0
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	r.visitors[id] = &rateEntry{limiter: limiter, lastSeen: now}
	return limiter
}

func (r *RateLimiter) sweep() {
	ticker := time.NewTicker(visitorSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evictIdle()
		}
	}
}

func (r *RateLimiter) evictIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.clockNow().Add(-visitorIdleEviction)
	for id, entry := range r.visitors {
		if entry.lastSeen.Before(cutoff) {
			delete(r.visitors, id)
		}
	}
}

// clientID keys the bucket. The gateway terminates client traffic behind a
// load balancer, so proxy headers are honored before falling back to the
// socket address.
func clientID(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first := forwarded
		if comma := strings.IndexByte(forwarded, ','); comma > 0 {
			first = strings.TrimSpace(forwarded[:comma])
		}
		if parsed := net.ParseIP(first); parsed != nil {
			return parsed.String()
		}
		return first
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
