package models

import "time"

// CartItem is one staged line. Price, title and image are snapshots taken
// from the catalog when the line was added.
type CartItem struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Title     string `json:"title"`
	ImageURL  string `json:"image_url,omitempty"`
}

type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Total returns the cart amount in minor units.
func (c *Cart) Total() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.UnitPrice * int64(it.Quantity)
	}
	return total
}
