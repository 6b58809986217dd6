package services

import (
	"context"
	"fmt"
	"log"

	"commerce-core/models"
	"commerce-core/repository"
)

// CartService is the per-user staging area in front of the order flow.
// Nothing here touches stock; quantities are only committed at checkout.
type CartService struct {
	carts   repository.CartRepository
	catalog repository.CatalogRepository
}

func NewCartService(carts repository.CartRepository, catalog repository.CatalogRepository) *CartService {
	return &CartService{carts: carts, catalog: catalog}
}

// AddLine stages (product, size, quantity) for the user. A line matching an
// existing (product, size) merges quantities instead of duplicating. Price,
// title and image are snapshotted from the catalog at add time.
func (s *CartService) AddLine(ctx context.Context, userID, productID, size string, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if _, ok := product.VariantStock(size); !ok {
		return nil, models.ErrNotFound
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = &models.Cart{UserID: userID, Items: []models.CartItem{}}
	}

	found := false
	for i, existing := range cart.Items {
		if existing.ProductID == productID && existing.Size == size {
			cart.Items[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		cart.Items = append(cart.Items, models.CartItem{
			ProductID: productID,
			Size:      size,
			Quantity:  quantity,
			UnitPrice: product.VariantPrice(size),
			Title:     product.Title,
			ImageURL:  product.ImageURL,
		})
	}

	if err := s.carts.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	log.Printf("[CartService] user=%s added product=%s size=%s qty=%d", userID, productID, size, quantity)
	return cart, nil
}

// RemoveLine drops the (product, size) line from the user's cart.
func (s *CartService) RemoveLine(ctx context.Context, userID, productID, size string) (*models.Cart, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, models.ErrNotFound
	}

	items := cart.Items[:0]
	for _, it := range cart.Items {
		if it.ProductID == productID && it.Size == size {
			continue
		}
		items = append(items, it)
	}
	cart.Items = items

	if err := s.carts.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	return cart, nil
}

// ListLines returns the user's cart; an absent cart reads as empty.
func (s *CartService) ListLines(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = &models.Cart{UserID: userID, Items: []models.CartItem{}}
	}
	return cart, nil
}

// Clear destroys the user's cart.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.carts.DeleteCart(ctx, userID)
}
