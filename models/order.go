package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusReceived   OrderStatus = "received"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusFailed     OrderStatus = "failed"
)

// transitions lists every status reachable from a given status. The shipping
// pipeline only moves forward; an admin may skip a stage but never go back.
// Delivered, Cancelled and Failed are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusReceived, StatusFailed, StatusCancelled},
	StatusReceived:   {StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusDelivered, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
	StatusFailed:     {},
}

// IsValid reports whether s is a known order status.
func (s OrderStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no further transition is permitted from s.
func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0 && s.IsValid()
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// CanCancel reports whether an order in status s may still be cancelled.
// Shipped orders and orders in a terminal state cannot.
func (s OrderStatus) CanCancel() bool {
	return s.CanTransition(StatusCancelled)
}

// PaymentMode selects how an order is paid. COD orders start in Received;
// online orders start in Pending until the gateway confirms.
type PaymentMode string

const (
	PaymentModeCOD    PaymentMode = "cod"
	PaymentModeOnline PaymentMode = "online"
)

func (m PaymentMode) IsValid() bool {
	return m == PaymentModeCOD || m == PaymentModeOnline
}

// InitialStatus returns the status a freshly created order carries.
func (m PaymentMode) InitialStatus() OrderStatus {
	if m == PaymentModeOnline {
		return StatusPending
	}
	return StatusReceived
}

type Order struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber   string         `gorm:"uniqueIndex;not null" json:"order_number"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount        int64          `gorm:"not null" json:"amount"`
	PaymentMode   PaymentMode    `gorm:"type:varchar(10);not null" json:"payment_mode"`
	PaymentID     string         `gorm:"type:varchar(64)" json:"payment_id,omitempty"`
	Status        OrderStatus    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ReservationID string         `gorm:"type:varchar(64);not null" json:"reservation_id"`
	ShipAddress   string         `gorm:"not null" json:"ship_address"`
	ShipCity      string         `json:"ship_city"`
	ShipPostcode  string         `json:"ship_postcode"`
	CanceledAt    *time.Time     `json:"canceled_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	Items         []OrderItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// OrderItem is a snapshot of a cart line at order time. Later product edits
// must not retroactively alter historical orders, so everything displayable
// is copied, not referenced.
type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID string    `gorm:"type:varchar(64);not null" json:"product_id"`
	Size      string    `gorm:"type:varchar(16);not null" json:"size"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	UnitPrice int64     `gorm:"not null" json:"unit_price"`
	Title     string    `gorm:"not null" json:"title"`
	ImageURL  string    `json:"image_url,omitempty"`
}
