package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/internal/validation"
	"github.com/vaidashi/storefront-orders/pkg/errors"
)

type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      models.Profile `json:"user"`
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var form validation.Signup
	if err := decodeJSON(w, r, &form); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	profile, err := s.auth.Register(r.Context(), form)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondOK(w, http.StatusCreated, profile)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var form validation.Login
	if err := decodeJSON(w, r, &form); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	sess, profile, err := s.auth.Login(r.Context(), form)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondOK(w, http.StatusOK, loginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: *profile})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), bearerToken(r)); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondOK(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var update models.ProfileUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	profile, err := s.auth.EditProfile(r.Context(), userID(r), update)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondOK(w, http.StatusOK, profile)
}

// requireSession admits a request only when its session belongs to the user in the path
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.auth.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			s.respondWithError(w, r, err)
			return
		}

		if sess.UserID != userID(r) {
			s.respondWithError(w, r, errors.NewAppError(errors.ErrUnauthorized,
				"session does not belong to this user", http.StatusForbidden, false))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "

	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func userID(r *http.Request) models.DocumentID {
	return models.DocumentID(mux.Vars(r)["userId"])
}
