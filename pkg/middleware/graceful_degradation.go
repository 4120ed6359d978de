package middleware

import (
	"net/http"
	"strings"

	"github.com/vaidashi/storefront-orders/pkg/circuitbreaker"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// GracefulDegradation answers non-essential requests with 503 while the
// circuit guarding their backing store is open
type GracefulDegradation struct {
	breaker   *circuitbreaker.CircuitBreaker
	essential []string
	logger    logger.Logger
}

// NewGracefulDegradation creates a new graceful degradation middleware. Paths
// under any of the essential prefixes are always served.
func NewGracefulDegradation(breaker *circuitbreaker.CircuitBreaker, essential []string, logger logger.Logger) *GracefulDegradation {
	return &GracefulDegradation{
		breaker:   breaker,
		essential: essential,
		logger:    logger,
	}
}

// Middleware returns a middleware function
func (gd *GracefulDegradation) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gd.isEssential(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if wait := gd.breaker.RetryAfter(); wait > 0 {
			gd.logger.Warn("Circuit is open, request rejected",
				"path", r.URL.Path,
				"method", r.Method,
				"state", gd.breaker.State().String())

			reject(w, http.StatusServiceUnavailable, wait, "Service is temporarily unavailable. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (gd *GracefulDegradation) isEssential(path string) bool {
	for _, prefix := range gd.essential {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
