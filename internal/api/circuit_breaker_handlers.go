package api

import (
	"net/http"
)

// getCircuitBreakerStatusHandler returns the state of the document store breaker
func (s *Server) getCircuitBreakerStatusHandler(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: s.breaker.Metrics()})
}

// resetCircuitBreakerHandler closes the document store breaker
func (s *Server) resetCircuitBreakerHandler(w http.ResponseWriter, r *http.Request) {
	s.breaker.Reset()
	s.logger.Info("Document store circuit breaker reset by operator")

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]string{
			"message": "Circuit breaker reset successfully",
		},
	})
}
