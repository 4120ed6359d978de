package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/vaidashi/storefront-orders/internal/models"
	apperrors "github.com/vaidashi/storefront-orders/pkg/errors"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrDatabase = errors.New("database error")
)

// AnyVersion skips the optimistic version check on a write
const AnyVersion int64 = -1

// DocumentStore is the transport to the json-server style document store
type DocumentStore interface {
	Get(ctx context.Context, path string, out interface{}) error
	Patch(ctx context.Context, path string, body, out interface{}) error
	Post(ctx context.Context, path string, body, out interface{}) error
}

// userDocuments reads and writes whole fields of the per-user document
type userDocuments struct {
	store             DocumentStore
	optimisticLocking bool
	logger            logger.Logger
}

func userPath(userID models.DocumentID) string {
	return "/users/" + url.PathEscape(userID.String())
}

func (d *userDocuments) load(ctx context.Context, userID models.DocumentID) (*models.User, error) {
	var user models.User

	if err := d.store.Get(ctx, userPath(userID), &user); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("user %s not found", userID)).
				WithContext("userID", userID)
		}
		return nil, err
	}

	if user.ID == "" {
		user.ID = userID
	}

	return &user, nil
}

// write PATCHes fields onto the user document. With optimistic locking on and a
// concrete expected version, the document is re-read first and the write refused
// when someone else has written since.
func (d *userDocuments) write(ctx context.Context, userID models.DocumentID, expected int64, fields map[string]interface{}) (*models.User, error) {
	if d.optimisticLocking {
		current, err := d.load(ctx, userID)
		if err != nil {
			return nil, err
		}

		if expected != AnyVersion && current.Version != expected {
			d.logger.Warn("Refusing stale write to user document",
				"userID", userID,
				"expectedVersion", expected,
				"currentVersion", current.Version)

			return nil, apperrors.NewStaleWriteError(fmt.Sprintf("user %s changed since it was read", userID)).
				WithContext("userID", userID)
		}

		fields["version"] = current.Version + 1
	}

	var updated models.User

	if err := d.store.Patch(ctx, userPath(userID), fields, &updated); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("user %s not found", userID)).
				WithContext("userID", userID)
		}
		d.logger.Error("Failed to write user document", "error", err, "userID", userID)
		return nil, err
	}

	if updated.ID == "" {
		updated.ID = userID
	}

	return &updated, nil
}
