package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaidashi/storefront-orders/internal/lifecycle"
	"github.com/vaidashi/storefront-orders/internal/metrics"
	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/internal/validation"
	"github.com/vaidashi/storefront-orders/pkg/errors"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// OrderStore is the order side of the user document
type OrderStore interface {
	FetchOrders(ctx context.Context, userID models.DocumentID) ([]models.Order, error)
	LoadUser(ctx context.Context, userID models.DocumentID) (*models.User, error)
	ReplaceOrders(ctx context.Context, user *models.User, orders []models.Order) error
	ReplaceOrdersAndCart(ctx context.Context, user *models.User, orders []models.Order, cart []models.Item) error
}

// OrderService places, cancels and lists a user's orders
type OrderService struct {
	orders OrderStore
	events EventRecorder
	guard  *Guard
	policy lifecycle.Policy
	now    func() time.Time
	ids    *models.OrderIDGenerator
	logger logger.Logger
}

// OrderServiceConfig holds the collaborators that have defaults
type OrderServiceConfig struct {
	Policy lifecycle.Policy
	// Now overrides the clock, mostly for tests
	Now    func() time.Time
	Events EventRecorder
}

// NewOrderService creates a new OrderService
func NewOrderService(orders OrderStore, guard *Guard, cfg OrderServiceConfig, logger logger.Logger) *OrderService {
	now := cfg.Now
	if now == nil {
		now = models.GetCurrentTime
	}
	events := cfg.Events
	if events == nil {
		events = NopRecorder{}
	}

	return &OrderService{
		orders: orders,
		events: events,
		guard:  guard,
		policy: cfg.Policy,
		now:    now,
		ids:    &models.OrderIDGenerator{},
		logger: logger,
	}
}

// OrderView is an order with its total and time-derived state at one instant
type OrderView struct {
	models.Order
	Total       decimal.Decimal    `json:"total"`
	Progress    lifecycle.Progress `json:"progress"`
	Cancellable bool               `json:"cancellable"`
}

// View evaluates order against the service clock
func (s *OrderService) View(order models.Order) OrderView {
	cancellable, progress := s.policy.Evaluate(&order, s.now())

	return OrderView{
		Order:       order,
		Total:       lifecycle.OrderTotal(order.Items),
		Progress:    progress,
		Cancellable: cancellable,
	}
}

// Views evaluates every order at the same instant
func (s *OrderService) Views(orders []models.Order) []OrderView {
	now := s.now()
	views := make([]OrderView, 0, len(orders))

	for i := range orders {
		cancellable, progress := s.policy.Evaluate(&orders[i], now)
		views = append(views, OrderView{
			Order:       orders[i],
			Total:       lifecycle.OrderTotal(orders[i].Items),
			Progress:    progress,
			Cancellable: cancellable,
		})
	}
	return views
}

// FetchOrders returns all of the user's orders in insertion order
func (s *OrderService) FetchOrders(ctx context.Context, userID models.DocumentID) ([]models.Order, error) {
	orders, err := s.orders.FetchOrders(ctx, userID)
	metrics.RecordOrderOperation(metrics.OpFetch, err == nil)

	if err != nil {
		s.logger.Error("Failed to fetch orders", "error", err, "userID", userID)
		return nil, err
	}
	return orders, nil
}

// FetchOrdersInRange returns the orders placed within [from, to]. Either bound may be nil.
func (s *OrderService) FetchOrdersInRange(ctx context.Context, userID models.DocumentID, from, to *time.Time) ([]models.Order, error) {
	orders, err := s.FetchOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FilterByDate(orders, from, to), nil
}

// FilterByDate keeps the orders whose date lies within the inclusive bounds
func FilterByDate(orders []models.Order, from, to *time.Time) []models.Order {
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if from != nil && o.Date.Before(*from) {
			continue
		}
		if to != nil && o.Date.After(*to) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// PlaceOrderFromCart orders the given cart lines and empties the cart in the same write
func (s *OrderService) PlaceOrderFromCart(ctx context.Context, userID models.DocumentID, cartItems []models.Item, info models.UserInfo) (*models.Order, error) {
	if err := validation.Checkout(info); err != nil {
		return nil, err
	}
	if len(cartItems) == 0 {
		return nil, errors.NewValidationError(errors.FieldErrors{"cart": "Your cart is empty."})
	}

	var placed *models.Order

	err := s.guard.Do(ctx, userID, func() error {
		user, err := s.orders.LoadUser(ctx, userID)
		if err != nil {
			return err
		}

		at := s.now()
		order := models.NewOrder(s.ids.Next(at), cartItems, info, at)

		if err := s.orders.ReplaceOrdersAndCart(ctx, user, appendOrder(user.Orders, *order), []models.Item{}); err != nil {
			return err
		}

		placed = order
		return nil
	})

	return s.finishPlacement(ctx, metrics.OpPlaceFromCart, userID, placed, err)
}

// PlaceOrderDirect orders a single unit of product without touching the cart
func (s *OrderService) PlaceOrderDirect(ctx context.Context, userID models.DocumentID, info models.UserInfo, product models.Item) (*models.Order, error) {
	if err := validation.Checkout(info); err != nil {
		return nil, err
	}
	if product.ID == "" {
		return nil, errors.NewValidationError(errors.FieldErrors{"product": "Product is required."})
	}

	var placed *models.Order

	err := s.guard.Do(ctx, userID, func() error {
		user, err := s.orders.LoadUser(ctx, userID)
		if err != nil {
			return err
		}

		at := s.now()
		order := models.NewOrder(s.ids.Next(at), []models.Item{product.Snapshot(1)}, info, at)

		if err := s.orders.ReplaceOrders(ctx, user, appendOrder(user.Orders, *order)); err != nil {
			return err
		}

		placed = order
		return nil
	})

	return s.finishPlacement(ctx, metrics.OpPlaceDirect, userID, placed, err)
}

// CheckoutSelected orders the selected cart lines and leaves the rest in the cart
func (s *OrderService) CheckoutSelected(ctx context.Context, userID models.DocumentID, selected []models.DocumentID, info models.UserInfo) (*models.Order, error) {
	if err := validation.Checkout(info); err != nil {
		return nil, err
	}

	noSelection := errors.NewValidationError(errors.FieldErrors{"cart": "Please select at least one item to proceed."})
	if len(selected) == 0 {
		return nil, noSelection
	}

	wanted := make(map[models.DocumentID]bool, len(selected))
	for _, id := range selected {
		wanted[id] = true
	}

	var placed *models.Order

	err := s.guard.Do(ctx, userID, func() error {
		user, err := s.orders.LoadUser(ctx, userID)
		if err != nil {
			return err
		}

		var ordered, kept []models.Item
		for _, line := range user.Cart {
			if wanted[line.ID] {
				ordered = append(ordered, line)
			} else {
				kept = append(kept, line)
			}
		}

		if len(ordered) == 0 {
			return noSelection
		}

		at := s.now()
		order := models.NewOrder(s.ids.Next(at), ordered, info, at)

		if err := s.orders.ReplaceOrdersAndCart(ctx, user, appendOrder(user.Orders, *order), kept); err != nil {
			return err
		}

		placed = order
		return nil
	})

	return s.finishPlacement(ctx, metrics.OpCheckout, userID, placed, err)
}

func (s *OrderService) finishPlacement(ctx context.Context, op string, userID models.DocumentID, order *models.Order, err error) (*models.Order, error) {
	metrics.RecordOrderOperation(op, err == nil)

	if err != nil {
		s.logger.Error("Failed to place order", "error", err, "operation", op, "userID", userID)
		return nil, err
	}

	s.logger.Info("Order placed",
		"operation", op,
		"userID", userID,
		"orderID", order.ID,
		"items", len(order.Items))

	s.record(ctx, models.EventOrderPlaced, userID, order, "")
	return order, nil
}

// CancelOrder moves an order to Cancelled while the cancellation window is open.
// Cancelling an already cancelled order returns it unchanged.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID models.DocumentID) (*models.Order, error) {
	var (
		result   models.Order
		previous models.OrderStatus
		changed  bool
	)

	err := s.guard.Do(ctx, userID, func() error {
		changed = false

		user, err := s.orders.LoadUser(ctx, userID)
		if err != nil {
			return err
		}

		idx := models.FindOrder(user.Orders, orderID)
		if idx < 0 {
			return errors.NewNotFoundError(fmt.Sprintf("order %s not found", orderID)).
				WithContext("userID", userID).
				WithContext("orderID", orderID)
		}

		current := user.Orders[idx]
		if current.IsCancelled() {
			result = current
			return nil
		}

		if err := s.policy.Check(&current, s.now()); err != nil {
			return err
		}

		orders := normalised(user.Orders)
		previous = current.PersistedStatus()
		orders[idx].Status = models.OrderStatusCancelled

		if err := s.orders.ReplaceOrders(ctx, user, orders); err != nil {
			return err
		}

		result = orders[idx]
		changed = true
		return nil
	})

	metrics.RecordOrderOperation(metrics.OpCancel, err == nil)

	if err != nil {
		if errors.StatusCode(err) >= 500 {
			s.logger.Error("Failed to cancel order", "error", err, "userID", userID, "orderID", orderID)
		} else {
			s.logger.Warn("Order not cancelled", "reason", err, "userID", userID, "orderID", orderID)
		}
		return nil, err
	}

	if !changed {
		s.logger.Info("Order already cancelled", "userID", userID, "orderID", orderID)
		return &result, nil
	}

	s.logger.Info("Order cancelled", "userID", userID, "orderID", orderID, "previousStatus", previous)
	s.record(ctx, models.EventOrderCancelled, userID, &result, previous)
	return &result, nil
}

// record queues a lifecycle event. A failure here never fails the operation
// that already reached the store.
func (s *OrderService) record(ctx context.Context, eventType string, userID models.DocumentID, order *models.Order, previous models.OrderStatus) {
	if err := s.events.Record(ctx, eventType, eventData(userID, order, previous)); err != nil {
		s.logger.Warn("Failed to record order event",
			"error", err,
			"eventType", eventType,
			"userID", userID,
			"orderID", order.ID)
	}
}

func appendOrder(orders []models.Order, order models.Order) []models.Order {
	return append(normalised(orders), order)
}

// normalised copies orders, rewriting legacy statuses to the ones written today
func normalised(orders []models.Order) []models.Order {
	out := make([]models.Order, len(orders), len(orders)+1)
	for i, o := range orders {
		o.Status = o.PersistedStatus()
		out[i] = o
	}
	return out
}
