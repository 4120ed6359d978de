package service

import (
	"context"
	"sync"
	"time"

	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/errors"
	"github.com/vaidashi/storefront-orders/pkg/logger"
	"github.com/vaidashi/storefront-orders/pkg/retry"
)

// Guard serialises read-modify-write cycles on one user document within the
// process and replays a cycle whose write was refused as stale.
type Guard struct {
	mu    sync.Mutex
	locks map[models.DocumentID]*userLock

	retryConfig *retry.RetryConfig
}

type userLock struct {
	sync.Mutex
	refs int
}

// NewGuard creates a Guard replaying stale cycles up to attempts times in total
func NewGuard(attempts int, logger logger.Logger) *Guard {
	return &Guard{
		locks: make(map[models.DocumentID]*userLock),
		retryConfig: &retry.RetryConfig{
			MaxAttempts:     attempts,
			BackoffStrategy: &retry.LinearBackoff{InitialInterval: 10 * time.Millisecond, Step: 20 * time.Millisecond, MaxInterval: 100 * time.Millisecond},
			Logger:          logger,
			RetryableErrors: []error{errors.ErrStaleWrite},
		},
	}
}

// Do runs cycle while holding the user's lock. cycle must re-read the document
// each time it is called.
func (g *Guard) Do(ctx context.Context, userID models.DocumentID, cycle func() error) error {
	unlock := g.lock(userID)
	defer unlock()

	return retry.Retry(ctx, cycle, g.retryConfig)
}

func (g *Guard) lock(userID models.DocumentID) func() {
	g.mu.Lock()
	l, ok := g.locks[userID]
	if !ok {
		l = &userLock{}
		g.locks[userID] = l
	}
	l.refs++
	g.mu.Unlock()

	l.Lock()

	return func() {
		l.Unlock()

		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, userID)
		}
		g.mu.Unlock()
	}
}
