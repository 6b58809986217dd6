package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers absent orders, products and carts.
	ErrNotFound = errors.New("not found")
	// ErrEmptyCart rejects order creation from an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidTransition rejects a status change the lifecycle table forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotCancellable rejects cancellation of shipped or terminal orders.
	ErrNotCancellable = errors.New("order can no longer be cancelled")
	// ErrStatusConflict means another caller transitioned the order first.
	ErrStatusConflict = errors.New("order status changed concurrently")
	// ErrPaymentDenied means the gateway rejected the payment.
	ErrPaymentDenied = errors.New("payment denied")
	// ErrPaymentTimeout means gateway confirmation did not arrive in time.
	ErrPaymentTimeout = errors.New("payment confirmation timed out")
)

// InsufficientStockError reports the first line of a reservation attempt that
// could not be covered. A missing product or size is reported the same way
// with Available zero.
type InsufficientStockError struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product=%s size=%s: available=%d requested=%d",
		e.ProductID, e.Size, e.Available, e.Requested)
}
