// internal/services/product_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tarksober/license-backend/internal/models"
)

type ProductService struct {
	db *gorm.DB
}

func NewProductService(db *gorm.DB) *ProductService {
	return &ProductService{db: db}
}

// ListProducts returns the active catalogue of an app, cheapest first
// within the same sort order.
func (s *ProductService) ListProducts(ctx context.Context, appSlug string) ([]models.Product, error) {
	if appSlug == "" {
		return nil, invalidInput("app_slug parameter is required")
	}

	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("app_slug = ? AND is_active = ?", appSlug, true).
		Order("sort_order ASC").
		Order("price_cents ASC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return products, nil
}

// GetActiveProduct loads a product that is still on sale.
func (s *ProductService) GetActiveProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", productID, true).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &product, nil
}
