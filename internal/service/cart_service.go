package service

import (
	"context"
	"fmt"

	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/errors"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// CartStore is the cart side of the user document
type CartStore interface {
	FetchCart(ctx context.Context, userID models.DocumentID) ([]models.Item, error)
	LoadUser(ctx context.Context, userID models.DocumentID) (*models.User, error)
	ReplaceCart(ctx context.Context, user *models.User, cart []models.Item) ([]models.Item, error)
}

// CartService edits a user's cart
type CartService struct {
	carts  CartStore
	guard  *Guard
	logger logger.Logger
}

// NewCartService creates a new CartService
func NewCartService(carts CartStore, guard *Guard, logger logger.Logger) *CartService {
	return &CartService{carts: carts, guard: guard, logger: logger}
}

// FetchCart returns the user's cart lines
func (s *CartService) FetchCart(ctx context.Context, userID models.DocumentID) ([]models.Item, error) {
	return s.carts.FetchCart(ctx, userID)
}

// AddToCart adds one unit of product, as a new line or onto the existing one
func (s *CartService) AddToCart(ctx context.Context, userID models.DocumentID, product models.Item) ([]models.Item, error) {
	if product.ID == "" {
		return nil, errors.NewValidationError(errors.FieldErrors{"product": "Product is required."})
	}

	return s.edit(ctx, userID, "add", func(cart []models.Item) ([]models.Item, error) {
		if i := findLine(cart, product.ID); i >= 0 {
			cart[i].Quantity = cart[i].EffectiveQuantity() + 1
			return cart, nil
		}
		return append(cart, product.Snapshot(1)), nil
	})
}

// UpdateQuantity sets the quantity of an existing line
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID models.DocumentID, quantity int) ([]models.Item, error) {
	if quantity < 1 {
		return nil, errors.NewValidationError(errors.FieldErrors{"quantity": "Quantity must be at least 1."})
	}

	return s.edit(ctx, userID, "update", func(cart []models.Item) ([]models.Item, error) {
		i := findLine(cart, productID)
		if i < 0 {
			return nil, errors.NewNotFoundError(fmt.Sprintf("product %s is not in the cart", productID)).
				WithContext("productID", productID)
		}
		cart[i].Quantity = quantity
		return cart, nil
	})
}

// RemoveFromCart drops a line. Removing a missing line is a no-op.
func (s *CartService) RemoveFromCart(ctx context.Context, userID, productID models.DocumentID) ([]models.Item, error) {
	return s.edit(ctx, userID, "remove", func(cart []models.Item) ([]models.Item, error) {
		out := cart[:0]
		for _, line := range cart {
			if line.ID != productID {
				out = append(out, line)
			}
		}
		return out, nil
	})
}

// ClearCart empties the cart
func (s *CartService) ClearCart(ctx context.Context, userID models.DocumentID) ([]models.Item, error) {
	return s.edit(ctx, userID, "clear", func([]models.Item) ([]models.Item, error) {
		return []models.Item{}, nil
	})
}

func (s *CartService) edit(ctx context.Context, userID models.DocumentID, op string, change func([]models.Item) ([]models.Item, error)) ([]models.Item, error) {
	var result []models.Item

	err := s.guard.Do(ctx, userID, func() error {
		user, err := s.carts.LoadUser(ctx, userID)
		if err != nil {
			return err
		}

		cart, err := change(append([]models.Item(nil), user.Cart...))
		if err != nil {
			return err
		}

		result, err = s.carts.ReplaceCart(ctx, user, cart)
		return err
	})

	if err != nil {
		s.logger.Warn("Cart change failed", "error", err, "operation", op, "userID", userID)
		return nil, err
	}

	s.logger.Debug("Cart changed", "operation", op, "userID", userID, "lines", len(result))
	return result, nil
}

func findLine(cart []models.Item, id models.DocumentID) int {
	for i := range cart {
		if cart[i].ID == id {
			return i
		}
	}
	return -1
}
