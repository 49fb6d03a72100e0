package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// staleAfter is how long a client may stay idle before its limiter is dropped.
const staleAfter = 5 * time.Minute

// CostFunc returns how many tokens a request spends.
type CostFunc func(r *http.Request) int

// RouteCost charges the listed "METHOD /path" routes their weight and every
// other request one token.
func RouteCost(weights map[string]int) CostFunc {
	return func(r *http.Request) int {
		if w, ok := weights[r.Method+" "+r.URL.Path]; ok && w > 0 {
			return w
		}
		return 1
	}
}

// RateLimiter is a per-client token bucket. Clients are keyed by IP.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*client
	rate     rate.Limit
	burst    int
	cost     CostFunc
	cleanup  time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the token refill rate per client.
	RequestsPerSecond float64
	// Burst is the bucket size.
	Burst int
	// CleanupInterval is how often idle clients are dropped.
	CleanupInterval time.Duration
	// Cost weighs requests. Nil charges one token per request.
	Cost CostFunc
}

// DefaultRateLimiterConfig returns sensible defaults.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 100,
		Burst:             200,
		CleanupInterval:   time.Minute,
	}
}

// RateLimiterConfigFor derives a config from a per-second limit, allowing
// bursts of twice the rate.
func RateLimiterConfigFor(requestsPerSecond int) RateLimiterConfig {
	cfg := DefaultRateLimiterConfig()
	cfg.RequestsPerSecond = float64(requestsPerSecond)
	cfg.Burst = 2 * requestsPerSecond
	return cfg
}

// NewRateLimiter starts a limiter and its cleanup goroutine. Call Stop when
// done.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	rl := &RateLimiter{
		clients: make(map[string]*client),
		rate:    rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		cost:    cfg.Cost,
		cleanup: cfg.CleanupInterval,
		done:    make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) getLimiter(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.evict(now.Add(-staleAfter))
		}
	}
}

// evict drops clients not seen since threshold.
func (rl *RateLimiter) evict(threshold time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, c := range rl.clients {
		if c.lastSeen.Before(threshold) {
			delete(rl.clients, ip)
		}
	}
}

// Allow spends one token for ip.
func (rl *RateLimiter) Allow(ip string) bool {
	ok, _ := rl.take(ip, 1)
	return ok
}

// take spends n tokens for ip, capped at the burst size. When the bucket
// is short it spends nothing and returns how long until n tokens are
// available.
func (rl *RateLimiter) take(ip string, n int) (bool, time.Duration) {
	n = min(max(n, 1), rl.burst)
	now := time.Now()
	r := rl.getLimiter(ip, now).ReserveN(now, n)
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Middleware rejects requests over the client's budget with 429 and a
// Retry-After header in whole seconds.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cost := 1
		if rl.cost != nil {
			cost = rl.cost(r)
		}

		ok, wait := rl.take(getClientIP(r), cost)
		if !ok {
			retry := max(int(math.Ceil(wait.Seconds())), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			apperrors.WriteError(w, apperrors.RateLimitedError(retry))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP prefers proxy headers over the socket address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
