package models

import (
	"time"
)

// OrderStatus is the persisted status of an order, or a derived display stage
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "Pending"
	OrderStatusPlaced         OrderStatus = "Placed"
	OrderStatusConfirmed      OrderStatus = "Confirmed"
	OrderStatusShipped        OrderStatus = "Shipped"
	OrderStatusOutForDelivery OrderStatus = "Out for Delivery"
	OrderStatusDelivered      OrderStatus = "Delivered"
	OrderStatusCancelled      OrderStatus = "Cancelled"
)

// UserInfo is the contact and payment detail captured at checkout
type UserInfo struct {
	Name    string `json:"name" validate:"notblank"`
	Email   string `json:"email" validate:"notblank,storefront_email"`
	Address string `json:"address" validate:"notblank"`
	Phone   string `json:"phone" validate:"notblank,phone10"`
	Payment string `json:"payment" validate:"notblank,payment_method"`
}

// Order is an immutable history record. Only Status changes after placement,
// and only towards Cancelled.
type Order struct {
	ID       DocumentID  `json:"id"`
	Items    []Item      `json:"items"`
	UserInfo UserInfo    `json:"userInfo"`
	Date     time.Time   `json:"date"`
	Status   OrderStatus `json:"status"`
}

// NewOrder creates a Placed order from snapshots of the given lines
func NewOrder(id DocumentID, items []Item, info UserInfo, placedAt time.Time) *Order {
	lines := make([]Item, 0, len(items))
	for _, it := range items {
		lines = append(lines, it.Snapshot(it.EffectiveQuantity()))
	}

	return &Order{
		ID:       id,
		Items:    lines,
		UserInfo: info,
		Date:     placedAt.UTC(),
		Status:   OrderStatusPlaced,
	}
}

// IsCancelled reports whether the order reached its terminal cancelled state
func (o *Order) IsCancelled() bool {
	return o.Status == OrderStatusCancelled
}

// PersistedStatus normalises legacy statuses written by older checkouts
func (o *Order) PersistedStatus() OrderStatus {
	if o.Status == OrderStatusPending || o.Status == "" {
		return OrderStatusPlaced
	}
	return o.Status
}

// FindOrder returns the index of the order with the given id, or -1
func FindOrder(orders []Order, id DocumentID) int {
	for i := range orders {
		if orders[i].ID == id {
			return i
		}
	}
	return -1
}
