package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/vaidashi/storefront-orders/internal/models"
	apperrors "github.com/vaidashi/storefront-orders/pkg/errors"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// ProductRepository reads the product catalog
type ProductRepository struct {
	store  DocumentStore
	logger logger.Logger
}

// NewProductRepository creates a new ProductRepository
func NewProductRepository(store DocumentStore, logger logger.Logger) *ProductRepository {
	return &ProductRepository{store: store, logger: logger}
}

// List returns the whole catalog
func (r *ProductRepository) List(ctx context.Context) ([]models.Item, error) {
	var products []models.Item

	if err := r.store.Get(ctx, "/products", &products); err != nil {
		r.logger.Error("Failed to list products", "error", err)
		return nil, err
	}

	if products == nil {
		products = []models.Item{}
	}
	return products, nil
}

// Get returns one product by id
func (r *ProductRepository) Get(ctx context.Context, id models.DocumentID) (*models.Item, error) {
	var product models.Item

	if err := r.store.Get(ctx, "/products/"+url.PathEscape(id.String()), &product); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("product %s not found", id)).
				WithContext("productID", id)
		}
		return nil, err
	}

	return &product, nil
}
