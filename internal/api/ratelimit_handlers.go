package api

import (
	"net/http"

	"github.com/vaidashi/storefront-orders/pkg/errors"
)

// getRateLimitsHandler returns the current rate limiter state
func (s *Server) getRateLimitsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"global_metrics":  s.rateLimiter.GetMetrics(),
		"endpoint_limits": s.endpointRateLimiter.GetAllLimits(),
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response})
}

// requeueOutboxHandler gives parked order events a fresh attempt budget
func (s *Server) requeueOutboxHandler(w http.ResponseWriter, r *http.Request) {
	if s.outbox == nil {
		s.respondWithError(w, r, errors.NewServiceUnavailableError("order event outbox is disabled"))
		return
	}

	n, err := s.outbox.RequeueFailed(r.Context())
	if err != nil {
		s.respondWithError(w, r, errors.NewServiceUnavailableError("failed to requeue outbox messages"))
		return
	}

	s.logger.Info("Outbox messages requeued", "count", n)
	s.respondOK(w, http.StatusOK, map[string]int64{"requeued": n})
}
