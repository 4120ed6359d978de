package service

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/storefront-orders/internal/docstore"
	"github.com/vaidashi/storefront-orders/internal/docstore/docstoretest"
	"github.com/vaidashi/storefront-orders/internal/lifecycle"
	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/internal/repository"
	"github.com/vaidashi/storefront-orders/pkg/errors"
	"github.com/vaidashi/storefront-orders/pkg/logger"
	"github.com/vaidashi/storefront-orders/pkg/retry"
)

var placedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordedEvent struct {
	eventType string
	data      models.OrderEventData
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (r *fakeRecorder) Record(_ context.Context, eventType string, data models.OrderEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, recordedEvent{eventType: eventType, data: data})
	return nil
}

func (r *fakeRecorder) recorded() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

type harness struct {
	srv    *docstoretest.Server
	client *docstore.Client
	clock  *fakeClock
	events *fakeRecorder
	guard  *Guard
	orders *OrderService
	carts  *CartService
}

func newHarness(t *testing.T, optimisticLocking bool) *harness {
	t.Helper()

	srv := docstoretest.NewServer()
	t.Cleanup(srv.Close)

	client := docstore.NewClient(srv.URL, docstore.Options{
		MaxAttempts: 2,
		Backoff:     &retry.ConstantBackoff{Interval: time.Millisecond},
	}, logger.NewNopLogger())

	h := &harness{
		srv:    srv,
		client: client,
		clock:  &fakeClock{t: placedAt},
		events: &fakeRecorder{},
		guard:  NewGuard(3, logger.NewNopLogger()),
	}

	h.orders = NewOrderService(
		repository.NewOrderRepository(client, optimisticLocking, logger.NewNopLogger()),
		h.guard,
		OrderServiceConfig{Policy: lifecycle.NewPolicy(2, 1), Now: h.clock.Now, Events: h.events},
		logger.NewNopLogger(),
	)
	h.carts = NewCartService(
		repository.NewCartRepository(client, optimisticLocking, logger.NewNopLogger()),
		h.guard,
		logger.NewNopLogger(),
	)

	srv.Put("users", "1", map[string]interface{}{
		"username": "asha",
		"email":    "asha@example.com",
		"cart":     []models.Item{},
		"orders":   []models.Order{},
	})

	return h
}

func validInfo() models.UserInfo {
	return models.UserInfo{
		Name:    "Asha",
		Email:   "asha@example.com",
		Address: "12 MG Road",
		Phone:   "9876543210",
		Payment: "Cash on Delivery",
	}
}

func phone() models.Item {
	return models.Item{ID: "p1", Name: "Phone", Category: "Mobiles", OfferPrice: decimal.NewFromInt(2500)}
}

func TestPlaceOrderDirectRoundTrip(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	placed, err := h.orders.PlaceOrderDirect(ctx, "1", validInfo(), phone())
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPlaced, placed.Status)
	assert.True(t, placedAt.Equal(placed.Date))

	orders, err := h.orders.FetchOrders(ctx, "1")
	require.NoError(t, err)
	require.Len(t, orders, 1)

	got := orders[0]
	assert.Equal(t, placed.ID, got.ID)
	assert.Equal(t, models.OrderStatusPlaced, got.Status)
	require.Len(t, got.Items, 1)
	assert.Equal(t, models.DocumentID("p1"), got.Items[0].ID)
	assert.Equal(t, 1, got.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(2500).Equal(got.Items[0].OfferPrice))
	assert.True(t, placedAt.Equal(got.Date))
}

func TestPlaceOrderDirectLeavesCartAlone(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.carts.AddToCart(ctx, "1", models.Item{ID: "p2", Name: "Case", OfferPrice: decimal.NewFromInt(300)})
	require.NoError(t, err)

	_, err = h.orders.PlaceOrderDirect(ctx, "1", validInfo(), phone())
	require.NoError(t, err)

	cart, err := h.carts.FetchCart(ctx, "1")
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, models.DocumentID("p2"), cart[0].ID)
}

func TestPlaceOrderFromCartTotalsAndClearsCart(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	cart := []models.Item{{ID: "p1", Name: "Phone", OfferPrice: decimal.NewFromInt(2500), Quantity: 2}}

	placed, err := h.orders.PlaceOrderFromCart(ctx, "1", cart, validInfo())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5000).Equal(lifecycle.OrderTotal(placed.Items)))
	assert.Equal(t, 1, h.srv.Requests(http.MethodPatch))
	assert.JSONEq(t, `[]`, string(h.srv.Field("users", "1", "cart")))

	events := h.events.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventOrderPlaced, events[0].eventType)
	assert.True(t, decimal.NewFromInt(5000).Equal(events[0].data.Total))
	assert.Equal(t, 1, events[0].data.ItemCount)
}

func TestPlaceOrderRejectsBadInputWithoutCallingStore(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	info := validInfo()
	info.Phone = "12345"

	_, err := h.orders.PlaceOrderDirect(ctx, "1", info, phone())
	require.ErrorIs(t, err, errors.ErrValidation)
	assert.Equal(t, "Phone number must be 10 digits.", errors.Fields(err)["phone"])

	_, err = h.orders.PlaceOrderFromCart(ctx, "1", nil, validInfo())
	require.ErrorIs(t, err, errors.ErrValidation)
	assert.Equal(t, "Your cart is empty.", errors.Fields(err)["cart"])

	_, err = h.orders.PlaceOrderDirect(ctx, "1", validInfo(), models.Item{})
	require.ErrorIs(t, err, errors.ErrValidation)

	assert.Zero(t, h.srv.Requests(http.MethodGet))
	assert.Zero(t, h.srv.Requests(http.MethodPatch))
}

func TestPlaceOrderUnknownUser(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.orders.PlaceOrderDirect(context.Background(), "404", validInfo(), phone())
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Empty(t, h.events.recorded())
}

func TestCancellationWindowScenario(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	placed, err := h.orders.PlaceOrderDirect(ctx, "1", validInfo(), phone())
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	assert.True(t, h.orders.View(*placed).Cancellable)

	cancelled, err := h.orders.CancelOrder(ctx, "1", placed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	h.clock.Advance(2 * time.Hour)

	orders, err := h.orders.FetchOrders(ctx, "1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusCancelled, orders[0].Status)

	view := h.orders.View(orders[0])
	assert.False(t, view.Cancellable)
	assert.True(t, view.Progress.Cancelled)
	assert.Equal(t, models.OrderStatusCancelled, view.Progress.Stage)

	events := h.events.recorded()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventOrderCancelled, events[1].eventType)
	assert.Equal(t, models.OrderStatusPlaced, events[1].data.PreviousStatus)
}

func TestCancelAfterWindowIsRejected(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	placed, err := h.orders.PlaceOrderDirect(ctx, "1", validInfo(), phone())
	require.NoError(t, err)
	writes := h.srv.Requests(http.MethodPatch)

	h.clock.Advance(3 * time.Hour)

	_, err = h.orders.CancelOrder(ctx, "1", placed.ID)
	require.ErrorIs(t, err, errors.ErrCancellationRejected)
	assert.Equal(t, writes, h.srv.Requests(http.MethodPatch))

	orders, err := h.orders.FetchOrders(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPlaced, orders[0].Status)
}

func TestCancelTwiceIsNoOp(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	placed, err := h.orders.PlaceOrderDirect(ctx, "1", validInfo(), phone())
	require.NoError(t, err)

	_, err = h.orders.CancelOrder(ctx, "1", placed.ID)
	require.NoError(t, err)
	writes := h.srv.Requests(http.MethodPatch)

	again, err := h.orders.CancelOrder(ctx, "1", placed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, again.Status)
	assert.Equal(t, writes, h.srv.Requests(http.MethodPatch))
	assert.Len(t, h.events.recorded(), 2)
}

func TestCancelUnknownOrder(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.orders.CancelOrder(context.Background(), "1", "nope")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCancelRewritesLegacyStatuses(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	legacy := models.Order{ID: "10", Items: []models.Item{phone().Snapshot(1)}, UserInfo: validInfo(), Date: placedAt, Status: "Pending"}
	other := models.Order{ID: "11", Items: []models.Item{phone().Snapshot(1)}, UserInfo: validInfo(), Date: placedAt, Status: "Pending"}
	h.srv.Put("users", "1", map[string]interface{}{"username": "asha", "orders": []models.Order{legacy, other}})

	cancelled, err := h.orders.CancelOrder(ctx, "1", "10")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	orders, err := h.orders.FetchOrders(ctx, "1")
	require.NoError(t, err)
	for _, o := range orders {
		assert.Contains(t, []models.OrderStatus{models.OrderStatusPlaced, models.OrderStatusCancelled}, o.Status)
	}
	assert.Equal(t, models.OrderStatusPlaced, orders[1].Status)
}

func TestCheckoutSelectedKeepsUnselectedLines(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.carts.AddToCart(ctx, "1", phone())
	require.NoError(t, err)
	_, err = h.carts.AddToCart(ctx, "1", models.Item{ID: "p2", Name: "Case", OfferPrice: decimal.NewFromInt(300)})
	require.NoError(t, err)

	placed, err := h.orders.CheckoutSelected(ctx, "1", []models.DocumentID{"p2"}, validInfo())
	require.NoError(t, err)
	require.Len(t, placed.Items, 1)
	assert.Equal(t, models.DocumentID("p2"), placed.Items[0].ID)

	cart, err := h.carts.FetchCart(ctx, "1")
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, models.DocumentID("p1"), cart[0].ID)

	_, err = h.orders.CheckoutSelected(ctx, "1", []models.DocumentID{"missing"}, validInfo())
	require.ErrorIs(t, err, errors.ErrValidation)
	assert.Equal(t, "Please select at least one item to proceed.", errors.Fields(err)["cart"])
}

func TestFetchOrdersInRange(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	first, err := h.orders.PlaceOrderDirect(ctx, "1", validInfo(), phone())
	require.NoError(t, err)
	h.clock.Advance(48 * time.Hour)
	second, err := h.orders.PlaceOrderDirect(ctx, "1", validInfo(), phone())
	require.NoError(t, err)

	from := placedAt.Add(24 * time.Hour)
	orders, err := h.orders.FetchOrdersInRange(ctx, "1", &from, nil)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, second.ID, orders[0].ID)

	to := placedAt
	orders, err = h.orders.FetchOrdersInRange(ctx, "1", nil, &to)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, first.ID, orders[0].ID)
}

// interferingStore lets another writer land between the read and the write of
// the first cycle
type interferingStore struct {
	OrderStore
	once      sync.Once
	interfere func()
}

func (s *interferingStore) LoadUser(ctx context.Context, userID models.DocumentID) (*models.User, error) {
	user, err := s.OrderStore.LoadUser(ctx, userID)
	s.once.Do(s.interfere)
	return user, err
}

func TestStaleWriteIsReplayed(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	store := &interferingStore{
		OrderStore: repository.NewOrderRepository(h.client, true, logger.NewNopLogger()),
		interfere: func() {
			h.srv.Put("users", "1", map[string]interface{}{
				"username": "asha",
				"cart":     []models.Item{{ID: "p9", Name: "Charger", OfferPrice: decimal.NewFromInt(500), Quantity: 1}},
				"orders":   []models.Order{},
				"version":  1,
			})
		},
	}
	svc := NewOrderService(store, h.guard, OrderServiceConfig{Policy: lifecycle.NewPolicy(2, 1), Now: h.clock.Now}, logger.NewNopLogger())

	_, err := svc.PlaceOrderDirect(ctx, "1", validInfo(), phone())
	require.NoError(t, err)

	var user models.User
	require.True(t, h.srv.Get("users", "1", &user))
	assert.Len(t, user.Orders, 1)
	require.Len(t, user.Cart, 1)
	assert.Equal(t, models.DocumentID("p9"), user.Cart[0].ID)
	assert.Equal(t, int64(2), user.Version)
}

func TestConcurrentPlacementsAreSerialised(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orders.PlaceOrderDirect(ctx, "1", validInfo(), phone())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	orders, err := h.orders.FetchOrders(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, orders, n)

	seen := map[models.DocumentID]bool{}
	for _, o := range orders {
		seen[o.ID] = true
	}
	assert.Len(t, seen, n)
}

func TestEventFailureDoesNotFailOrder(t *testing.T) {
	h := newHarness(t, false)
	h.events.err = stderrors.New("outbox down")

	placed, err := h.orders.PlaceOrderDirect(context.Background(), "1", validInfo(), phone())
	require.NoError(t, err)
	assert.NotEmpty(t, placed.ID)
}

func TestStoreOutageSurfacesAsNetworkFailure(t *testing.T) {
	h := newHarness(t, false)
	h.srv.FailNext(http.StatusBadGateway, http.StatusBadGateway)

	_, err := h.orders.FetchOrders(context.Background(), "1")
	assert.ErrorIs(t, err, errors.ErrNetworkFailure)
}

func TestViewsShareOneInstant(t *testing.T) {
	h := newHarness(t, false)

	orders := []models.Order{
		{ID: "1", Items: []models.Item{phone().Snapshot(2)}, Date: placedAt, Status: models.OrderStatusPlaced},
		{ID: "2", Items: []models.Item{phone().Snapshot(1)}, Date: placedAt.Add(-5 * time.Hour), Status: models.OrderStatusPlaced},
	}

	views := h.orders.Views(orders)
	require.Len(t, views, 2)
	assert.True(t, views[0].Cancellable)
	assert.True(t, decimal.NewFromInt(5000).Equal(views[0].Total))
	assert.False(t, views[1].Cancellable)
	assert.Equal(t, models.OrderStatusDelivered, views[1].Progress.Stage)
}
