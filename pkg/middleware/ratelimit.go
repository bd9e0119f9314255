package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/iotnet/mqtt-auth/pkg/httputil"
	"github.com/iotnet/mqtt-auth/pkg/observability"
)

// RateLimitConfig tunes the per-client token bucket guarding the decision
// routes. Brokers retry failed auth aggressively, so the defaults are generous
// for legitimate fleets while still capping brute-force attempts.
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerWindow is the sustained request budget per client per window.
	RequestsPerWindow int
	// WindowDuration is the refill window.
	WindowDuration time.Duration
	// BurstSize is the extra headroom above the sustained rate.
	BurstSize int
}

// DefaultRateLimitConfig returns the default decision-route limits.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           true,
		RequestsPerWindow: 300,
		WindowDuration:    time.Minute,
		BurstSize:         50,
	}
}

// RateLimiter is an in-memory token bucket map keyed by client address. Buckets
// refill continuously and idle ones are reaped by Cleanup.
type RateLimiter struct {
	config  RateLimitConfig
	buckets map[string]*bucket
	mu      sync.Mutex

	done     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter creates a limiter with the given config.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.RequestsPerWindow <= 0 {
		config.RequestsPerWindow = DefaultRateLimitConfig().RequestsPerWindow
	}
	if config.WindowDuration <= 0 {
		config.WindowDuration = DefaultRateLimitConfig().WindowDuration
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
}

func (rl *RateLimiter) capacity() float64 {
	return float64(rl.config.RequestsPerWindow + rl.config.BurstSize)
}

// Allow consumes one token for key, reporting whether the request may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.capacity(), lastUpdate: now}
		rl.buckets[key] = b
	}

	refill := now.Sub(b.lastUpdate).Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds()
	b.tokens += refill
	if b.tokens > rl.capacity() {
		b.tokens = rl.capacity()
	}
	b.lastUpdate = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Remaining returns the whole tokens left for key.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		return int(rl.capacity())
	}
	return int(b.tokens)
}

// Cleanup drops buckets idle for more than two windows.
func (rl *RateLimiter) Cleanup() {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
	}
}

// startCleanup reaps idle buckets every window until Stop is called.
func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-rl.done:
				return
			}
		}
	}()
}

// Stop terminates the background cleanup goroutine. Safe to call more than
// once, and a no-op when cleanup was never started.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// RateLimitMiddleware throttles requests per client IP.
type RateLimitMiddleware struct {
	limiter *RateLimiter
	logger  *observability.Logger
}

// NewRateLimitMiddleware creates the throttling middleware.
func NewRateLimitMiddleware(config RateLimitConfig, logger *observability.Logger) *RateLimitMiddleware {
	limiter := NewRateLimiter(config)
	if config.Enabled {
		limiter.startCleanup()
	}
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
	}
}

// Stop shuts down the limiter's bucket reaper. Call on server shutdown.
func (m *RateLimitMiddleware) Stop() {
	m.limiter.Stop()
}

// Handler wraps next with the rate check. Disabled config passes everything
// through untouched.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	if !m.limiter.config.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)

		if !m.limiter.Allow(key) {
			m.logger.WithField("client", key).Warn("rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(int(m.limiter.config.WindowDuration.Seconds())))
			httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limiter.config.RequestsPerWindow))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(m.limiter.Remaining(key)))
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers proxy-provided headers, falling back to the socket address
// with the port stripped.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
