package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/vaidashi/storefront-orders/pkg/circuitbreaker"
	"github.com/vaidashi/storefront-orders/pkg/errors"
)

const maxBodyBytes = 1 << 20

type ApiResponse struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Health represents the health check response
type Health struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// healthCheckHandler reports the state of the document store breaker and the
// optional backing services
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	health := Health{
		Status:     "ok",
		Version:    "1.0.0",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: map[string]string{},
	}

	if s.breaker != nil {
		state := s.breaker.State()
		health.Components["docstore"] = state.String()
		if state == circuitbreaker.StateOpen {
			health.Status = "degraded"
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, check := range s.healthChecks {
		if err := check(ctx); err != nil {
			s.logger.Warn("Health check failed", "component", name, "error", err)
			health.Components[name] = "down"
			health.Status = "degraded"
			continue
		}
		health.Components[name] = "up"
	}

	code := http.StatusOK
	if health.Status != "ok" {
		code = http.StatusServiceUnavailable
	}

	s.respondWithJSON(w, code, ApiResponse{
		Success: code == http.StatusOK,
		Data:    health,
	})
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return errors.NewAppError(errors.ErrValidation, "Invalid request payload", http.StatusBadRequest, false)
	}
	return nil
}

// respondWithError maps err onto the envelope. Validation failures carry their
// field messages; unexpected errors are not echoed to the client.
func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.StatusCode(err)
	resp := ApiResponse{Success: false, Error: err.Error()}

	if fields := errors.Fields(err); fields != nil {
		resp.Error = "Validation failed."
		resp.Fields = fields
	}

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		resp.Error = "Internal server error"
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err, "method", r.Method, "path", r.URL.Path, "status", code)
	}

	s.respondWithJSON(w, code, resp)
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (s *Server) respondOK(w http.ResponseWriter, code int, data interface{}) {
	s.respondWithJSON(w, code, ApiResponse{Success: true, Data: data})
}
