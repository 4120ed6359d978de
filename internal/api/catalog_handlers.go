package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vaidashi/storefront-orders/internal/models"
)

func (s *Server) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.ListProducts(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondOK(w, http.StatusOK, products)
}

func (s *Server) getProductHandler(w http.ResponseWriter, r *http.Request) {
	detail, err := s.catalog.GetProduct(r.Context(), models.DocumentID(mux.Vars(r)["id"]))
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondOK(w, http.StatusOK, detail)
}
