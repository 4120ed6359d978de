// Package lifecycle derives an order's progress and cancellability from the time
// elapsed since placement. Nothing here is persisted or cached: every call is a
// pure function of the order and the instant it is evaluated at.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/errors"
)

// Stages is the fixed display timeline of a non-cancelled order
var Stages = []models.OrderStatus{
	models.OrderStatusPlaced,
	models.OrderStatusConfirmed,
	models.OrderStatusShipped,
	models.OrderStatusOutForDelivery,
	models.OrderStatusDelivered,
}

// cancellableFrom lists the persisted statuses a cancellation may leave
var cancellableFrom = map[models.OrderStatus]bool{
	models.OrderStatusPlaced:    true,
	models.OrderStatusConfirmed: true,
}

// Policy holds the timing rules of the lifecycle
type Policy struct {
	CancelWindow  time.Duration
	StageDuration time.Duration
}

// NewPolicy builds a policy from hour counts
func NewPolicy(cancelWindowHours, stageDurationHours float64) Policy {
	return Policy{
		CancelWindow:  hours(cancelWindowHours),
		StageDuration: hours(stageDurationHours),
	}
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// ElapsedHours is the wall-clock time between placement and now, in hours
func ElapsedHours(order *models.Order, now time.Time) float64 {
	return float64(now.Sub(order.Date).Milliseconds()) / 3_600_000
}

// CanCancel reports whether the order is not cancelled and still within the window
func CanCancel(order *models.Order, now time.Time, cancelWindowHours float64) bool {
	return ElapsedHours(order, now) <= cancelWindowHours && !order.IsCancelled()
}

// CheckCancellable explains why an order cannot be cancelled, or returns nil
func CheckCancellable(order *models.Order, now time.Time, cancelWindowHours float64) error {
	status := order.PersistedStatus()

	if status == models.OrderStatusCancelled {
		return errors.NewCancellationRejectedError("order is already cancelled").
			WithContext("orderID", order.ID)
	}

	if !cancellableFrom[status] {
		return errors.NewCancellationRejectedError(fmt.Sprintf("order in status %q cannot be cancelled", status)).
			WithContext("orderID", order.ID)
	}

	if !CanCancel(order, now, cancelWindowHours) {
		return errors.NewCancellationRejectedError(
			fmt.Sprintf("order can't be cancelled after %s hours", formatHours(cancelWindowHours))).
			WithContext("orderID", order.ID)
	}

	return nil
}

func formatHours(h float64) string {
	return decimal.NewFromFloat(h).String()
}

// Milestone is one step of the rendered timeline
type Milestone struct {
	Name    models.OrderStatus `json:"name"`
	Reached bool               `json:"reached"`
}

// Progress is the derived display state of an order at a given instant
type Progress struct {
	// Stage is the furthest reached stage, or Cancelled
	Stage     models.OrderStatus `json:"stage"`
	Index     int                `json:"index"`
	Cancelled bool               `json:"cancelled"`
	Timeline  []Milestone        `json:"timeline"`
}

// DerivedStage maps elapsed time onto the stage list. Stage i is reached once
// elapsed >= i * stageDurationHours; stage 0 is always reached. A cancelled
// order never progresses and its first milestone becomes the cancellation marker.
func DerivedStage(order *models.Order, now time.Time, stageDurationHours float64) Progress {
	timeline := make([]Milestone, len(Stages))

	if order.IsCancelled() {
		for i, s := range Stages {
			timeline[i] = Milestone{Name: s}
		}
		timeline[0] = Milestone{Name: models.OrderStatusCancelled, Reached: true}

		return Progress{
			Stage:     models.OrderStatusCancelled,
			Index:     0,
			Cancelled: true,
			Timeline:  timeline,
		}
	}

	elapsed := ElapsedHours(order, now)
	index := 0

	for i, s := range Stages {
		reached := i == 0 || elapsed >= float64(i)*stageDurationHours
		timeline[i] = Milestone{Name: s, Reached: reached}
		if reached {
			index = i
		}
	}

	return Progress{
		Stage:    Stages[index],
		Index:    index,
		Timeline: timeline,
	}
}

// LineTotal is offerPrice x quantity, with a missing price counting as zero
func LineTotal(line models.Item) decimal.Decimal {
	return line.OfferPrice.Mul(decimal.NewFromInt(int64(line.EffectiveQuantity())))
}

// OrderTotal sums the line totals of an order
func OrderTotal(items []models.Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(LineTotal(it))
	}
	return total
}

// Evaluate computes cancellability and progress with the policy's durations
func (p Policy) Evaluate(order *models.Order, now time.Time) (bool, Progress) {
	window := p.CancelWindow.Hours()
	return CanCancel(order, now, window), DerivedStage(order, now, p.StageDuration.Hours())
}

// Check applies CheckCancellable with the policy's window
func (p Policy) Check(order *models.Order, now time.Time) error {
	return CheckCancellable(order, now, p.CancelWindow.Hours())
}
