package middleware

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/vaidashi/storefront-orders/pkg/logger"
	"github.com/vaidashi/storefront-orders/pkg/ratelimit"
)

// EndpointRateLimiterMiddleware limits each client separately on each route it
// is attached to. Routes are keyed by their template, so /users/1 and /users/2
// share a limit.
type EndpointRateLimiterMiddleware struct {
	limiters          map[string]*ratelimit.IPRateLimiter
	mu                sync.RWMutex
	defaultTokens     float64
	defaultRate       float64
	trustForwardedFor bool
	logger            logger.Logger
}

// NewEndpointRateLimiterMiddleware creates a new EndpointRateLimiterMiddleware
func NewEndpointRateLimiterMiddleware(defaultTokens, defaultRate float64, trustForwardedFor bool, logger logger.Logger) *EndpointRateLimiterMiddleware {
	return &EndpointRateLimiterMiddleware{
		limiters:          make(map[string]*ratelimit.IPRateLimiter),
		defaultTokens:     defaultTokens,
		defaultRate:       defaultRate,
		trustForwardedFor: trustForwardedFor,
		logger:            logger,
	}
}

// SetLimit replaces the limit of one endpoint ("METHOD:/template")
func (m *EndpointRateLimiterMiddleware) SetLimit(endpoint string, maxTokens, refillRate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.limiters[endpoint]; ok {
		old.Stop()
	}
	m.limiters[endpoint] = ratelimit.NewIPRateLimiter(maxTokens, refillRate)
}

func (m *EndpointRateLimiterMiddleware) getLimiter(endpoint string) *ratelimit.IPRateLimiter {
	m.mu.RLock()
	limiter, exists := m.limiters[endpoint]
	m.mu.RUnlock()

	if exists {
		return limiter
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if limiter, exists = m.limiters[endpoint]; !exists {
		limiter = ratelimit.NewIPRateLimiter(m.defaultTokens, m.defaultRate)
		m.limiters[endpoint] = limiter
	}
	return limiter
}

// Middleware returns a middleware function for per-endpoint rate limiting
func (m *EndpointRateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.Method + ":" + routeTemplate(r)
		ip := ClientIP(r, m.trustForwardedFor)
		limiter := m.getLimiter(endpoint)

		if !limiter.Allow(ip) {
			m.logger.Warn("Endpoint rate limit exceeded", "endpoint", endpoint, "ip", ip)
			tooManyRequests(w, "endpoint", limiter.RetryAfter(ip), "Too many attempts. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Stop stops every endpoint limiter
func (m *EndpointRateLimiterMiddleware) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.limiters {
		l.Stop()
	}
}

// GetAllLimits returns the number of tracked clients per endpoint
func (m *EndpointRateLimiterMiddleware) GetAllLimits() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]int, len(m.limiters))
	for endpoint, limiter := range m.limiters {
		result[endpoint] = limiter.Size()
	}
	return result
}

// routeTemplate is the matched mux template, or the raw path outside a router
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}
