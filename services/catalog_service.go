package services

import (
	"context"
	"fmt"
	"log"

	"commerce-core/models"
	"commerce-core/repository"

	"github.com/google/uuid"
)

// CatalogService handles product reads and administrator upserts.
type CatalogService struct {
	catalog repository.CatalogRepository
}

func NewCatalogService(catalog repository.CatalogRepository) *CatalogService {
	return &CatalogService{catalog: catalog}
}

func (s *CatalogService) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	return s.catalog.Get(ctx, productID)
}

func (s *CatalogService) ListProducts(ctx context.Context, category string, page, limit int) ([]models.Product, int64, error) {
	return s.catalog.List(ctx, category, page, limit)
}

// UpsertProduct creates or replaces a product. New products get an ID; every
// variant must start with non-negative stock.
func (s *CatalogService) UpsertProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	if p.Title == "" {
		return nil, fmt.Errorf("product title is required")
	}
	if len(p.Variants) == 0 {
		return nil, fmt.Errorf("product needs at least one variant")
	}
	for _, v := range p.Variants {
		if v.Stock < 0 {
			return nil, fmt.Errorf("variant %s has negative stock", v.Size)
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	if err := s.catalog.Upsert(ctx, p); err != nil {
		return nil, err
	}
	log.Printf("[CatalogService] product upserted id=%s title=%q variants=%d", p.ID, p.Title, len(p.Variants))
	return p, nil
}

// GetStock returns the current quantity for one variant.
func (s *CatalogService) GetStock(ctx context.Context, productID, size string) (int, error) {
	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	stock, ok := product.VariantStock(size)
	if !ok {
		return 0, models.ErrNotFound
	}
	return stock, nil
}
