package models

import "time"

// OrderEvent is the envelope published to the order events topic on creation
// and on every status transition.
type OrderEvent struct {
	Type        string      `json:"type"` // order_created | order_status_changed
	OrderID     string      `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	UserID      string      `json:"user_id"`
	Status      OrderStatus `json:"status"`
	Amount      int64       `json:"amount"`
	Timestamp   time.Time   `json:"timestamp"`
}

// PaymentEvent is consumed from the payment events topic.
type PaymentEvent struct {
	OrderID   string    `json:"order_id"`
	Type      string    `json:"type"` // payment_succeeded | payment_failed
	PaymentID string    `json:"payment_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"

	EventPaymentSucceeded = "payment_succeeded"
	EventPaymentFailed    = "payment_failed"
)
