package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"commerce-core/kafka"
	"commerce-core/models"
	"commerce-core/payment"
	"commerce-core/repository"

	"github.com/google/uuid"
)

// StatusNotifier receives every order status change; the websocket hub
// implements this.
type StatusNotifier interface {
	NotifyStatus(orderID string, status models.OrderStatus)
}

type CreateOrderRequest struct {
	PaymentMode  models.PaymentMode `json:"payment_mode" binding:"required"`
	PaymentRef   string             `json:"payment_ref,omitempty"`
	ShipAddress  string             `json:"ship_address" binding:"required"`
	ShipCity     string             `json:"ship_city"`
	ShipPostcode string             `json:"ship_postcode"`
}

type OrderResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}

// OrderService owns the order ledger lifecycle: creation from a cart,
// payment confirmation, administration of the shipping pipeline, and
// cancellation with synchronous stock release.
type OrderService struct {
	orders       repository.OrderRepository
	carts        repository.CartRepository
	reservations ReservationEngine
	gateway      payment.Gateway
	producer     kafka.ProducerAPI
	notifier     StatusNotifier

	// confirmPollInterval paces gateway polling inside ConfirmPayment.
	confirmPollInterval time.Duration
}

func NewOrderService(
	orders repository.OrderRepository,
	carts repository.CartRepository,
	reservations ReservationEngine,
	gateway payment.Gateway,
	producer kafka.ProducerAPI,
	notifier StatusNotifier,
) *OrderService {
	return &OrderService{
		orders:              orders,
		carts:               carts,
		reservations:        reservations,
		gateway:             gateway,
		producer:            producer,
		notifier:            notifier,
		confirmPollInterval: 2 * time.Second,
	}
}

// CreateOrder turns the user's cart into an order. Stock is reserved first;
// the cart is cleared only after the order row is persisted, so a failed
// persist never loses cart contents.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req *CreateOrderRequest) (*models.Order, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	if !req.PaymentMode.IsValid() {
		return nil, fmt.Errorf("unknown payment mode %q", req.PaymentMode)
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, models.ErrEmptyCart
	}

	lines := make([]models.ReservationLine, 0, len(cart.Items))
	for _, it := range cart.Items {
		lines = append(lines, models.ReservationLine{
			ProductID: it.ProductID,
			Size:      it.Size,
			Quantity:  it.Quantity,
		})
	}

	reservationID, err := s.reservations.Reserve(ctx, lines)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   generateOrderNumber(),
		UserID:        userUUID,
		Amount:        cart.Total(),
		PaymentMode:   req.PaymentMode,
		PaymentID:     req.PaymentRef,
		Status:        req.PaymentMode.InitialStatus(),
		ReservationID: reservationID,
		ShipAddress:   req.ShipAddress,
		ShipCity:      req.ShipCity,
		ShipPostcode:  req.ShipPostcode,
	}
	for _, it := range cart.Items {
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: it.ProductID,
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Title:     it.Title,
			ImageURL:  it.ImageURL,
		})
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if relErr := s.reservations.Release(ctx, reservationID); relErr != nil {
			log.Printf("❌ [OrderService] failed to release reservation %s after persist failure: %v", reservationID, relErr)
		}
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	if err := s.carts.DeleteCart(ctx, userID); err != nil {
		log.Printf("⚠️  [OrderService] failed to clear cart for user=%s after order=%s: %v", userID, order.ID, err)
	}

	s.publish(models.EventOrderCreated, order)
	log.Printf("[OrderService] order created id=%s number=%s user=%s status=%s", order.ID, order.OrderNumber, userID, order.Status)
	return order, nil
}

// CancelOrder transitions an order to Cancelled and releases its reservation
// before returning, so a following availability check sees restored stock.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, byUserID string, isAdmin bool) error {
	order, err := s.findFor(ctx, orderID, byUserID, isAdmin)
	if err != nil {
		return err
	}

	if !order.Status.CanCancel() {
		return models.ErrNotCancellable
	}

	now := time.Now()
	err = s.orders.UpdateStatus(ctx, orderID, order.Status, models.StatusCancelled,
		map[string]interface{}{"canceled_at": &now})
	if err != nil {
		return err
	}

	if err := s.reservations.Release(ctx, order.ReservationID); err != nil {
		return fmt.Errorf("order cancelled but stock release failed: %w", err)
	}

	order.Status = models.StatusCancelled
	s.notify(order)
	s.publish(models.EventOrderStatusChanged, order)
	log.Printf("[OrderService] order cancelled id=%s by=%s", orderID, byUserID)
	return nil
}

// UpdateStatus applies an administrator-driven transition. Skipping forward
// through the shipping pipeline is allowed; moving backward or out of a
// terminal state is not.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus models.OrderStatus, byAdminID string) error {
	if !newStatus.IsValid() {
		return models.ErrInvalidTransition
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Status.CanTransition(newStatus) {
		return models.ErrInvalidTransition
	}

	extra := map[string]interface{}{}
	now := time.Now()
	switch newStatus {
	case models.StatusDelivered:
		extra["completed_at"] = &now
	case models.StatusCancelled:
		extra["canceled_at"] = &now
	}

	if err := s.orders.UpdateStatus(ctx, orderID, order.Status, newStatus, extra); err != nil {
		return err
	}

	if newStatus == models.StatusCancelled {
		if err := s.reservations.Release(ctx, order.ReservationID); err != nil {
			return fmt.Errorf("order cancelled but stock release failed: %w", err)
		}
	}

	order.Status = newStatus
	s.notify(order)
	s.publish(models.EventOrderStatusChanged, order)
	log.Printf("[OrderService] order=%s status=%s by admin=%s", orderID, newStatus, byAdminID)
	return nil
}

// ConfirmPayment resolves a Pending online order against the gateway. The
// wait is bounded by the caller's context: when it expires the order moves to
// Failed and its stock is released.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID uuid.UUID, gatewayRef string) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentMode != models.PaymentModeOnline || order.Status != models.StatusPending {
		return models.ErrInvalidTransition
	}
	if gatewayRef == "" {
		gatewayRef = order.PaymentID
	}

	for {
		ok, err := s.gateway.Confirm(ctx, orderID.String(), gatewayRef)
		if err == nil {
			return s.applyPaymentResult(ctx, order, ok, gatewayRef)
		}

		log.Printf("⚠️  [OrderService] payment confirmation pending order=%s: %v", orderID, err)

		select {
		case <-ctx.Done():
			// The caller's deadline has fired; the failure writes must still
			// land, so they run on a detached context.
			failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if failErr := s.failPayment(failCtx, order, gatewayRef); failErr != nil {
				return failErr
			}
			return models.ErrPaymentTimeout
		case <-time.After(s.confirmPollInterval):
		}
	}
}

// HandlePaymentEvent applies an asynchronous gateway outcome (webhook or
// payment events topic) to an order.
func (s *OrderService) HandlePaymentEvent(ctx context.Context, evt models.PaymentEvent) error {
	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		return fmt.Errorf("invalid order id in payment event: %w", err)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.StatusPending {
		log.Printf("[OrderService] payment event for order=%s in status=%s; skipping", evt.OrderID, order.Status)
		return nil
	}

	switch evt.Type {
	case models.EventPaymentSucceeded:
		return s.applyPaymentResult(ctx, order, true, evt.PaymentID)
	case models.EventPaymentFailed:
		return s.applyPaymentResult(ctx, order, false, evt.PaymentID)
	default:
		log.Printf("⚠️  [OrderService] unknown payment event type: %s", evt.Type)
		return nil
	}
}

// ReconcileStalePending sweeps Pending online orders older than olderThan:
// confirmed ones move to Received, the rest to Failed with stock released.
// This is the backstop that keeps abandoned orders from holding stock forever.
func (s *OrderService) ReconcileStalePending(ctx context.Context, olderThan time.Duration) error {
	stuck, err := s.orders.FindStalePending(ctx, olderThan)
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		return nil
	}

	log.Printf("[OrderService] found %d stale pending orders", len(stuck))

	for i := range stuck {
		order := &stuck[i]

		if order.PaymentID == "" {
			if err := s.applyPaymentResult(ctx, order, false, ""); err != nil && !errors.Is(err, models.ErrPaymentDenied) {
				log.Printf("❌ [OrderService] failed to fail abandoned order=%s: %v", order.ID, err)
			}
			continue
		}

		ok, err := s.gateway.Confirm(ctx, order.ID.String(), order.PaymentID)
		if err != nil {
			// Still undecided at the gateway; leave it for the next sweep.
			log.Printf("[OrderService] reconcile: order=%s still undecided: %v", order.ID, err)
			continue
		}
		if err := s.applyPaymentResult(ctx, order, ok, order.PaymentID); err != nil && !errors.Is(err, models.ErrPaymentDenied) {
			log.Printf("❌ [OrderService] reconcile failed for order=%s: %v", order.ID, err)
		}
	}
	return nil
}

func (s *OrderService) applyPaymentResult(ctx context.Context, order *models.Order, ok bool, paymentID string) error {
	if ok {
		extra := map[string]interface{}{}
		if paymentID != "" {
			extra["payment_id"] = paymentID
		}
		if err := s.orders.UpdateStatus(ctx, order.ID, models.StatusPending, models.StatusReceived, extra); err != nil {
			return err
		}
		order.Status = models.StatusReceived
		s.notify(order)
		s.publish(models.EventOrderStatusChanged, order)
		log.Printf("✅ [OrderService] payment confirmed order=%s", order.ID)
		return nil
	}

	if err := s.failPayment(ctx, order, paymentID); err != nil {
		return err
	}
	return models.ErrPaymentDenied
}

// failPayment moves a pending order to Failed and releases its stock.
func (s *OrderService) failPayment(ctx context.Context, order *models.Order, paymentID string) error {
	now := time.Now()
	extra := map[string]interface{}{"canceled_at": &now}
	if paymentID != "" {
		extra["payment_id"] = paymentID
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, models.StatusPending, models.StatusFailed, extra); err != nil {
		return err
	}
	if err := s.reservations.Release(ctx, order.ReservationID); err != nil {
		return fmt.Errorf("order failed but stock release failed: %w", err)
	}

	order.Status = models.StatusFailed
	s.notify(order)
	s.publish(models.EventOrderStatusChanged, order)
	log.Printf("[OrderService] payment failed order=%s; stock released", order.ID)
	return nil
}

// GetOrderByID retrieves a specific order for a user
func (s *OrderService) GetOrderByID(ctx context.Context, userID string, orderID uuid.UUID) (*models.Order, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	return s.orders.FindByIDAndUserID(ctx, orderID, userUUID)
}

// GetUserOrders retrieves paginated orders for a specific user
func (s *OrderService) GetUserOrders(ctx context.Context, userID string, page, limit int) (*OrderResponse, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	orders, total, err := s.orders.FindByUserID(ctx, userUUID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return s.paginated(orders, total, page, limit), nil
}

// GetAllOrders retrieves paginated orders for all users (admin only)
func (s *OrderService) GetAllOrders(ctx context.Context, adminID string, page, limit int) (*OrderResponse, error) {
	log.Printf("[OrderService] admin %s accessing all orders", adminID)

	orders, total, err := s.orders.FindAll(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return s.paginated(orders, total, page, limit), nil
}

func (s *OrderService) paginated(orders []models.Order, total int64, page, limit int) *OrderResponse {
	return &OrderResponse{
		Orders: orders,
		Meta: MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  calculateTotalPages(total, limit),
			HasMore:     total > int64(page*limit),
		},
	}
}

func (s *OrderService) findFor(ctx context.Context, orderID uuid.UUID, userID string, isAdmin bool) (*models.Order, error) {
	if isAdmin {
		return s.orders.FindByID(ctx, orderID)
	}
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	return s.orders.FindByIDAndUserID(ctx, orderID, userUUID)
}

// publish sends an order event; failures are logged, never surfaced (the
// event stream is best-effort, the ledger is the source of truth).
func (s *OrderService) publish(eventType string, order *models.Order) {
	if s.producer == nil {
		return
	}
	evt := models.OrderEvent{
		Type:        eventType,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID.String(),
		Status:      order.Status,
		Amount:      order.Amount,
		Timestamp:   time.Now(),
	}
	if err := s.producer.PublishOrderEvent(evt); err != nil {
		log.Printf("⚠️  [OrderService] failed to publish %s for order=%s: %v", eventType, order.ID, err)
	}
}

func (s *OrderService) notify(order *models.Order) {
	if s.notifier != nil {
		s.notifier.NotifyStatus(order.ID.String(), order.Status)
	}
}

func generateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return fmt.Sprintf("ORD-%s", suffix)
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
