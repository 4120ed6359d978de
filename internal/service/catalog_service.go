package service

import (
	"context"
	"strings"

	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// AllCategories disables the category filter
const AllCategories = "All"

// ProductStore reads the catalog
type ProductStore interface {
	List(ctx context.Context) ([]models.Item, error)
	Get(ctx context.Context, id models.DocumentID) (*models.Item, error)
}

// CatalogService serves the product listing and detail pages
type CatalogService struct {
	products ProductStore
	logger   logger.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(products ProductStore, logger logger.Logger) *CatalogService {
	return &CatalogService{products: products, logger: logger}
}

// ProductDetail is a product with its specifications table
type ProductDetail struct {
	Product        models.Item            `json:"product"`
	Specifications []models.Specification `json:"specifications"`
}

// ListProducts returns the catalog, restricted to category unless it is empty or All
func (s *CatalogService) ListProducts(ctx context.Context, category string) ([]models.Item, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		s.logger.Warn("Product listing failed", "error", err, "category", category)
		return nil, err
	}

	category = strings.TrimSpace(category)
	if category == "" || strings.EqualFold(category, AllCategories) {
		return products, nil
	}

	out := make([]models.Item, 0, len(products))
	for _, p := range products {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetProduct returns one product with its specifications
func (s *CatalogService) GetProduct(ctx context.Context, id models.DocumentID) (*ProductDetail, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		s.logger.Warn("Product lookup failed", "error", err, "productID", id)
		return nil, err
	}

	s.logger.Debug("Product served", "productID", id, "category", p.Category)
	return &ProductDetail{Product: *p, Specifications: p.Specifications()}, nil
}
