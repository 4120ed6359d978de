package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vaidashi/storefront-orders/internal/metrics"
	"github.com/vaidashi/storefront-orders/pkg/logger"
	"github.com/vaidashi/storefront-orders/pkg/ratelimit"
)

// RateLimiterMiddleware applies a global and a per-client token bucket
type RateLimiterMiddleware struct {
	globalLimiter     *ratelimit.TokenBucket
	ipLimiter         *ratelimit.IPRateLimiter
	logger            logger.Logger
	trustForwardedFor bool
}

// RateLimiterConfig configures the rate limiter middleware
type RateLimiterConfig struct {
	GlobalMaxTokens   float64
	GlobalRefillRate  float64
	IPMaxTokens       float64
	IPRefillRate      float64
	TrustForwardedFor bool
}

// NewRateLimiterMiddleware creates a new rate limiter middleware
func NewRateLimiterMiddleware(cfg *RateLimiterConfig, logger logger.Logger) *RateLimiterMiddleware {
	return &RateLimiterMiddleware{
		globalLimiter:     ratelimit.NewTokenBucket(cfg.GlobalMaxTokens, cfg.GlobalRefillRate),
		ipLimiter:         ratelimit.NewIPRateLimiter(cfg.IPMaxTokens, cfg.IPRefillRate),
		logger:            logger,
		trustForwardedFor: cfg.TrustForwardedFor,
	}
}

// Middleware returns a middleware function
func (m *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.globalLimiter.Allow() {
			m.logger.Warn("Global rate limit exceeded", "method", r.Method, "path", r.URL.Path)
			tooManyRequests(w, "global", m.globalLimiter.RetryAfter(), "Too many requests. Please try again later.")
			return
		}

		ip := ClientIP(r, m.trustForwardedFor)

		if !m.ipLimiter.Allow(ip) {
			m.logger.Warn("IP rate limit exceeded", "method", r.Method, "path", r.URL.Path, "ip", ip)
			tooManyRequests(w, "ip", m.ipLimiter.RetryAfter(ip), "Too many requests from this address. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Stop stops the rate limiters
func (m *RateLimiterMiddleware) Stop() {
	m.ipLimiter.Stop()
}

// GetMetrics returns the current state of the limiters
func (m *RateLimiterMiddleware) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"global_available":   m.globalLimiter.Available(),
		"global_max_tokens":  m.globalLimiter.MaxTokens(),
		"global_refill_rate": m.globalLimiter.RefillRate(),
		"tracked_clients":    m.ipLimiter.Size(),
	}
}

// ClientIP extracts the client address, honouring X-Forwarded-For only when trusted
func ClientIP(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
			// X-Forwarded-For can contain multiple IPs; use the first one
			return strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func tooManyRequests(w http.ResponseWriter, limiter string, retryAfter time.Duration, message string) {
	metrics.RateLimitedTotal.WithLabelValues(limiter).Inc()
	reject(w, http.StatusTooManyRequests, retryAfter, message)
}

// reject writes an error envelope with a Retry-After of at least one second
func reject(w http.ResponseWriter, status int, retryAfter time.Duration, message string) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
