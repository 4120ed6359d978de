package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/vaidashi/storefront-orders/internal/lifecycle"
	"github.com/vaidashi/storefront-orders/internal/models"
)

type cartResponse struct {
	Items []models.Item   `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// addToCartRequest names the product either inline or by catalog id
type addToCartRequest struct {
	Product   *models.Item      `json:"product"`
	ProductID models.DocumentID `json:"productId"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) respondWithCart(w http.ResponseWriter, items []models.Item) {
	if items == nil {
		items = []models.Item{}
	}
	s.respondOK(w, http.StatusOK, cartResponse{Items: items, Total: lifecycle.OrderTotal(items)})
}

func (s *Server) getCartHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.carts.FetchCart(r.Context(), userID(r))
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithCart(w, items)
}

func (s *Server) addToCartHandler(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	var product models.Item
	switch {
	case req.Product != nil:
		product = *req.Product
	case req.ProductID != "":
		detail, err := s.catalog.GetProduct(r.Context(), req.ProductID)
		if err != nil {
			s.respondWithError(w, r, err)
			return
		}
		product = detail.Product
	}

	items, err := s.carts.AddToCart(r.Context(), userID(r), product)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithCart(w, items)
}

func (s *Server) updateCartLineHandler(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	items, err := s.carts.UpdateQuantity(r.Context(), userID(r), models.DocumentID(mux.Vars(r)["productId"]), req.Quantity)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithCart(w, items)
}

func (s *Server) removeCartLineHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.carts.RemoveFromCart(r.Context(), userID(r), models.DocumentID(mux.Vars(r)["productId"]))
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithCart(w, items)
}

func (s *Server) clearCartHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.carts.ClearCart(r.Context(), userID(r))
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithCart(w, items)
}
