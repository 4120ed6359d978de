package repository

import (
	"context"

	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// OrderRepository maps a user's order history onto the orders field of the
// user document. Every write replaces the whole list.
type OrderRepository struct {
	docs userDocuments
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(store DocumentStore, optimisticLocking bool, logger logger.Logger) *OrderRepository {
	return &OrderRepository{
		docs: userDocuments{store: store, optimisticLocking: optimisticLocking, logger: logger},
	}
}

// FetchOrders returns the user's orders in insertion order, empty when the field is absent
func (r *OrderRepository) FetchOrders(ctx context.Context, userID models.DocumentID) ([]models.Order, error) {
	user, err := r.docs.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.Orders == nil {
		return []models.Order{}, nil
	}
	return user.Orders, nil
}

// LoadUser reads the whole user document, for read-modify-write operations
func (r *OrderRepository) LoadUser(ctx context.Context, userID models.DocumentID) (*models.User, error) {
	return r.docs.load(ctx, userID)
}

// PersistOrders replaces the orders field. The last writer wins.
func (r *OrderRepository) PersistOrders(ctx context.Context, userID models.DocumentID, orders []models.Order) error {
	_, err := r.docs.write(ctx, userID, AnyVersion, map[string]interface{}{"orders": nonNilOrders(orders)})
	return err
}

// ReplaceOrders replaces the orders field of a document previously read as user
func (r *OrderRepository) ReplaceOrders(ctx context.Context, user *models.User, orders []models.Order) error {
	_, err := r.docs.write(ctx, user.ID, user.Version, map[string]interface{}{"orders": nonNilOrders(orders)})
	return err
}

// ReplaceOrdersAndCart writes orders and cart in a single request, so a
// placement and the cart change it implies land together or not at all.
func (r *OrderRepository) ReplaceOrdersAndCart(ctx context.Context, user *models.User, orders []models.Order, cart []models.Item) error {
	_, err := r.docs.write(ctx, user.ID, user.Version, map[string]interface{}{
		"orders": nonNilOrders(orders),
		"cart":   nonNilItems(cart),
	})
	return err
}

func nonNilOrders(orders []models.Order) []models.Order {
	if orders == nil {
		return []models.Order{}
	}
	return orders
}

func nonNilItems(items []models.Item) []models.Item {
	if items == nil {
		return []models.Item{}
	}
	return items
}
