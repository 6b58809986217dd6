package models

import "time"

// Variant is one sellable size of a product with its own stock count.
// A variant may carry its own price; zero means it inherits the product price.
type Variant struct {
	Size  string `bson:"size" json:"size"`
	Stock int    `bson:"stock" json:"stock"`
	Price int64  `bson:"price,omitempty" json:"price,omitempty"`
}

type Product struct {
	ID          string    `bson:"_id" json:"id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	ImageURL    string    `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Category    string    `bson:"category,omitempty" json:"category,omitempty"`
	Price       int64     `bson:"price" json:"price"`
	Variants    []Variant `bson:"variants" json:"variants"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// VariantPrice returns the effective unit price for a size.
func (p *Product) VariantPrice(size string) int64 {
	for _, v := range p.Variants {
		if v.Size == size && v.Price > 0 {
			return v.Price
		}
	}
	return p.Price
}

// VariantStock returns the stock for a size and whether the size exists.
func (p *Product) VariantStock(size string) (int, bool) {
	for _, v := range p.Variants {
		if v.Size == size {
			return v.Stock, true
		}
	}
	return 0, false
}

// ReservationLine is one (product, size, quantity) entry of a reservation.
type ReservationLine struct {
	ProductID string `bson:"product_id" json:"product_id"`
	Size      string `bson:"size" json:"size"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

// Reservation records a provisional stock decrement backing one order, so the
// decrement can be reversed exactly once on cancellation or payment failure.
type Reservation struct {
	ID        string            `bson:"_id" json:"id"`
	Lines     []ReservationLine `bson:"lines" json:"lines"`
	Released  bool              `bson:"released" json:"released"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
}
