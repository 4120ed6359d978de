package repository

import (
	"context"

	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// CartRepository maps the cart onto the cart field of the user document
type CartRepository struct {
	docs userDocuments
}

// NewCartRepository creates a new CartRepository
func NewCartRepository(store DocumentStore, optimisticLocking bool, logger logger.Logger) *CartRepository {
	return &CartRepository{
		docs: userDocuments{store: store, optimisticLocking: optimisticLocking, logger: logger},
	}
}

// FetchCart returns the cart lines, empty when the field is absent
func (r *CartRepository) FetchCart(ctx context.Context, userID models.DocumentID) ([]models.Item, error) {
	user, err := r.docs.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return nonNilItems(user.Cart), nil
}

// LoadUser reads the whole user document
func (r *CartRepository) LoadUser(ctx context.Context, userID models.DocumentID) (*models.User, error) {
	return r.docs.load(ctx, userID)
}

// PersistCart replaces the cart field. The last writer wins.
func (r *CartRepository) PersistCart(ctx context.Context, userID models.DocumentID, cart []models.Item) ([]models.Item, error) {
	updated, err := r.docs.write(ctx, userID, AnyVersion, map[string]interface{}{"cart": nonNilItems(cart)})
	if err != nil {
		return nil, err
	}
	return nonNilItems(updated.Cart), nil
}

// ReplaceCart replaces the cart field of a document previously read as user
func (r *CartRepository) ReplaceCart(ctx context.Context, user *models.User, cart []models.Item) ([]models.Item, error) {
	updated, err := r.docs.write(ctx, user.ID, user.Version, map[string]interface{}{"cart": nonNilItems(cart)})
	if err != nil {
		return nil, err
	}
	return nonNilItems(updated.Cart), nil
}
