package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/errors"
)

const dateOnly = "2006-01-02"

type placeOrderRequest struct {
	UserInfo        models.UserInfo     `json:"userInfo"`
	CartItems       []models.Item       `json:"cartItems"`
	SelectedItemIDs []models.DocumentID `json:"selectedItemIds"`
}

type directOrderRequest struct {
	UserInfo models.UserInfo `json:"userInfo"`
	Product  models.Item     `json:"product"`
}

// getOrdersHandler lists the user's orders, optionally within ?from=&to=
func (s *Server) getOrdersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	invalid := errors.FieldErrors{}

	from, err := parseBound(q.Get("from"), false)
	if err != nil {
		invalid["from"] = "Invalid date."
	}
	to, err := parseBound(q.Get("to"), true)
	if err != nil {
		invalid["to"] = "Invalid date."
	}
	if len(invalid) > 0 {
		s.respondWithError(w, r, errors.NewValidationError(invalid))
		return
	}

	orders, err := s.orders.FetchOrdersInRange(r.Context(), userID(r), from, to)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondOK(w, http.StatusOK, s.orders.Views(orders))
}

// placeOrderHandler checks out either the selected cart lines or the posted lines
func (s *Server) placeOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	var (
		order *models.Order
		err   error
	)

	if req.SelectedItemIDs != nil {
		order, err = s.orders.CheckoutSelected(r.Context(), userID(r), req.SelectedItemIDs, req.UserInfo)
	} else {
		order, err = s.orders.PlaceOrderFromCart(r.Context(), userID(r), req.CartItems, req.UserInfo)
	}
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondOK(w, http.StatusCreated, s.orders.View(*order))
}

func (s *Server) placeDirectOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req directOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	order, err := s.orders.PlaceOrderDirect(r.Context(), userID(r), req.UserInfo, req.Product)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondOK(w, http.StatusCreated, s.orders.View(*order))
}

func (s *Server) cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.CancelOrder(r.Context(), userID(r), models.DocumentID(mux.Vars(r)["orderId"]))
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondOK(w, http.StatusOK, s.orders.View(*order))
}

// parseBound accepts RFC 3339 timestamps or plain dates. A plain upper bound
// covers the whole day.
func parseBound(value string, upper bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}

	t, err := time.Parse(dateOnly, value)
	if err != nil {
		return nil, err
	}
	if upper {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return &t, nil
}
