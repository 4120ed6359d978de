// Package session keeps the logged-in user behind an opaque token.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vaidashi/storefront-orders/internal/models"
)

// ErrNotFound is returned for unknown or expired tokens
var ErrNotFound = errors.New("session not found")

// Session binds a token to a user until it expires
type Session struct {
	Token     string            `json:"token"`
	UserID    models.DocumentID `json:"userId"`
	CreatedAt time.Time         `json:"createdAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Store persists sessions
type Store interface {
	Create(ctx context.Context, userID models.DocumentID) (*Session, error)
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

func newToken() string {
	return uuid.NewString()
}
