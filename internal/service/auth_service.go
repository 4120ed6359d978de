package service

import (
	"context"
	"crypto/subtle"
	stderrors "errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/internal/session"
	"github.com/vaidashi/storefront-orders/internal/validation"
	"github.com/vaidashi/storefront-orders/pkg/errors"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// UserStore is the account side of the user documents
type UserStore interface {
	Get(ctx context.Context, id models.DocumentID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User, update models.ProfileUpdate) (*models.User, error)
}

// AuthService registers users and manages their sessions
type AuthService struct {
	users    UserStore
	sessions session.Store
	guard    *Guard
	logger   logger.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(users UserStore, sessions session.Store, guard *Guard, logger logger.Logger) *AuthService {
	return &AuthService{users: users, sessions: sessions, guard: guard, logger: logger}
}

// Register creates an account with an empty cart and order history
func (s *AuthService) Register(ctx context.Context, form validation.Signup) (*models.Profile, error) {
	if err := validation.ValidateSignup(form); err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, form.Email, ""); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to hash password: %v", err))
	}

	user, err := s.users.Create(ctx, &models.User{
		Username: strings.TrimSpace(form.Username),
		Email:    form.Email,
		Password: string(hash),
		Phone:    form.Phone,
		Address:  strings.TrimSpace(form.Address),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered", "userID", user.ID)
	profile := user.Profile()
	return &profile, nil
}

// Login checks the credentials and opens a session
func (s *AuthService) Login(ctx context.Context, form validation.Login) (*session.Session, *models.Profile, error) {
	if err := validation.ValidateLogin(form); err != nil {
		return nil, nil, err
	}

	user, err := s.users.FindByEmail(ctx, form.Email)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return nil, nil, errors.NewUnauthorizedError("Email not registered.")
		}
		return nil, nil, err
	}

	if !passwordMatches(user.Password, form.Password) {
		s.logger.Warn("Login rejected", "userID", user.ID)
		return nil, nil, errors.NewUnauthorizedError("Incorrect password for this email.")
	}

	sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, nil, errors.NewServiceUnavailableError(fmt.Sprintf("failed to open session: %v", err))
	}

	s.logger.Info("User logged in", "userID", user.ID)
	profile := user.Profile()
	return sess, &profile, nil
}

// Logout closes a session. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, token); err != nil {
		return errors.NewServiceUnavailableError(fmt.Sprintf("failed to close session: %v", err))
	}
	return nil
}

// Authenticate resolves a session token
func (s *AuthService) Authenticate(ctx context.Context, token string) (*session.Session, error) {
	if token == "" {
		return nil, errors.NewUnauthorizedError("missing session token")
	}

	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		if stderrors.Is(err, session.ErrNotFound) {
			return nil, errors.NewUnauthorizedError("session expired or unknown")
		}
		return nil, errors.NewServiceUnavailableError(fmt.Sprintf("failed to load session: %v", err))
	}
	return sess, nil
}

// EditProfile updates the username, email, phone and address of a user
func (s *AuthService) EditProfile(ctx context.Context, userID models.DocumentID, update models.ProfileUpdate) (*models.Profile, error) {
	if err := validation.Profile(update); err != nil {
		return nil, err
	}

	var profile models.Profile

	err := s.guard.Do(ctx, userID, func() error {
		user, err := s.users.Get(ctx, userID)
		if err != nil {
			return err
		}

		if err := s.ensureEmailFree(ctx, update.Email, userID); err != nil {
			return err
		}

		updated, err := s.users.UpdateProfile(ctx, user, update)
		if err != nil {
			return err
		}

		profile = updated.Profile()
		return nil
	})

	if err != nil {
		return nil, err
	}

	s.logger.Info("Profile updated", "userID", userID)
	return &profile, nil
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email string, owner models.DocumentID) error {
	existing, err := s.users.FindByEmail(ctx, email)

	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID == owner:
		return nil
	}

	return errors.NewConflictError("Email already registered.").WithContext("email", email)
}

// passwordMatches accepts bcrypt hashes and the plain passwords of seeded accounts
func passwordMatches(stored, given string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
