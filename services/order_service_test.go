package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"commerce-core/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- in-memory fakes -------------------------------------------------------

type memOrders struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]*models.Order
	failCreate bool
}

func newMemOrders() *memOrders {
	return &memOrders{byID: make(map[uuid.UUID]*models.Order)}
}

func (m *memOrders) Create(ctx context.Context, order *models.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return fmt.Errorf("orders store unavailable")
	}
	cp := *order
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.byID[order.ID] = &cp
	return nil
}

func (m *memOrders) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[orderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) FindByIDAndUserID(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[orderID]
	if !ok || o.UserID != userID {
		return nil, models.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memOrders) FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.byID {
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (m *memOrders) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus, extra map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[orderID]
	if !ok || o.Status != from {
		return models.ErrStatusConflict
	}
	o.Status = to
	for k, v := range extra {
		switch k {
		case "payment_id":
			o.PaymentID = v.(string)
		case "canceled_at":
			o.CanceledAt = v.(*time.Time)
		case "completed_at":
			o.CompletedAt = v.(*time.Time)
		}
	}
	return nil
}

func (m *memOrders) FindStalePending(ctx context.Context, olderThan time.Duration) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var out []models.Order
	for _, o := range m.byID {
		if o.Status == models.StatusPending && o.PaymentMode == models.PaymentModeOnline && o.CreatedAt.Before(cutoff) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrders) status(t *testing.T, orderID uuid.UUID) models.OrderStatus {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[orderID]
	require.True(t, ok, "order %s missing", orderID)
	return o.Status
}

type memCarts struct {
	mu    sync.Mutex
	carts map[string]*models.Cart
}

func newMemCarts() *memCarts {
	return &memCarts{carts: make(map[string]*models.Cart)}
}

func (m *memCarts) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, nil
	}
	cp := *c
	cp.Items = append([]models.CartItem(nil), c.Items...)
	return &cp, nil
}

func (m *memCarts) SaveCart(ctx context.Context, cart *models.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cart.UserID] = cart
	return nil
}

func (m *memCarts) DeleteCart(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

func (m *memCarts) has(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.carts[userID]
	return ok
}

type stubGateway struct {
	mu    sync.Mutex
	ok    bool
	err   error
	calls int
}

func (g *stubGateway) Confirm(ctx context.Context, orderID, gatewayRef string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return false, g.err
	}
	return g.ok, nil
}

type recProducer struct {
	mu     sync.Mutex
	events []models.OrderEvent
}

func (p *recProducer) PublishOrderEvent(evt models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recProducer) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recNotifier struct {
	mu       sync.Mutex
	statuses []models.OrderStatus
}

func (n *recNotifier) NotifyStatus(orderID string, status models.OrderStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, status)
}

// ---- fixture ---------------------------------------------------------------

type orderFixture struct {
	catalog  *fakeCatalog
	orders   *memOrders
	carts    *memCarts
	gateway  *stubGateway
	producer *recProducer
	notifier *recNotifier
	svc      *OrderService
}

func newOrderFixture(products ...*models.Product) *orderFixture {
	f := &orderFixture{
		catalog:  newFakeCatalog(products...),
		orders:   newMemOrders(),
		carts:    newMemCarts(),
		gateway:  &stubGateway{},
		producer: &recProducer{},
		notifier: &recNotifier{},
	}
	f.svc = NewOrderService(
		f.orders, f.carts, NewReservationService(f.catalog),
		f.gateway, f.producer, f.notifier,
	)
	f.svc.confirmPollInterval = time.Millisecond
	return f
}

func (f *orderFixture) seedCart(userID string, items ...models.CartItem) {
	_ = f.carts.SaveCart(context.Background(), &models.Cart{UserID: userID, Items: items})
}

func twoProducts() []*models.Product {
	return []*models.Product{
		{ID: "tee", Title: "Plain Tee", Price: 1500,
			Variants: []models.Variant{{Size: "M", Stock: 10}}},
		{ID: "cap", Title: "Cap", Price: 900,
			Variants: []models.Variant{{Size: "OS", Stock: 5}}},
	}
}

func twoItemCart() []models.CartItem {
	return []models.CartItem{
		{ProductID: "tee", Size: "M", Quantity: 2, UnitPrice: 1500, Title: "Plain Tee"},
		{ProductID: "cap", Size: "OS", Quantity: 1, UnitPrice: 900, Title: "Cap"},
	}
}

// ---- CreateOrder -----------------------------------------------------------

func TestCreateOrder_EmptyCart(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	userID := uuid.NewString()

	_, err := f.svc.CreateOrder(context.Background(), userID, &CreateOrderRequest{
		PaymentMode: models.PaymentModeCOD,
		ShipAddress: "1 Main St",
	})
	assert.ErrorIs(t, err, models.ErrEmptyCart)
	assert.Equal(t, 10, f.catalog.stock(t, "tee", "M"), "no stock moves on an empty cart")
}

func TestCreateOrder_CODReservesStockAndStartsReceived(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	userID := uuid.NewString()
	f.seedCart(userID, twoItemCart()...)

	order, err := f.svc.CreateOrder(context.Background(), userID, &CreateOrderRequest{
		PaymentMode: models.PaymentModeCOD,
		ShipAddress: "1 Main St",
		ShipCity:    "Springfield",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusReceived, order.Status)
	assert.Equal(t, int64(2*1500+900), order.Amount)
	assert.NotEmpty(t, order.OrderNumber)
	assert.NotEmpty(t, order.ReservationID)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Plain Tee", order.Items[0].Title, "items snapshot the cart lines")

	assert.Equal(t, 8, f.catalog.stock(t, "tee", "M"))
	assert.Equal(t, 4, f.catalog.stock(t, "cap", "OS"))
	assert.False(t, f.carts.has(userID), "cart is cleared after persist")
	assert.Equal(t, []string{models.EventOrderCreated}, f.producer.types())
}

func TestCreateOrder_OnlineStartsPending(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	userID := uuid.NewString()
	f.seedCart(userID, twoItemCart()...)

	order, err := f.svc.CreateOrder(context.Background(), userID, &CreateOrderRequest{
		PaymentMode: models.PaymentModeOnline,
		PaymentRef:  "pi_123",
		ShipAddress: "1 Main St",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, "pi_123", order.PaymentID)
}

func TestCreateOrder_InsufficientStockKeepsCart(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	userID := uuid.NewString()
	f.seedCart(userID,
		models.CartItem{ProductID: "tee", Size: "M", Quantity: 2, UnitPrice: 1500, Title: "Plain Tee"},
		models.CartItem{ProductID: "cap", Size: "OS", Quantity: 6, UnitPrice: 900, Title: "Cap"},
	)

	_, err := f.svc.CreateOrder(context.Background(), userID, &CreateOrderRequest{
		PaymentMode: models.PaymentModeCOD,
		ShipAddress: "1 Main St",
	})

	var stockErr *models.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "cap", stockErr.ProductID)

	assert.Equal(t, 10, f.catalog.stock(t, "tee", "M"), "partial decrement rolled back")
	assert.Equal(t, 5, f.catalog.stock(t, "cap", "OS"))
	assert.True(t, f.carts.has(userID), "cart survives a failed checkout")
	assert.Empty(t, f.producer.types())
}

func TestCreateOrder_PersistFailureReleasesStock(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	f.orders.failCreate = true
	userID := uuid.NewString()
	f.seedCart(userID, twoItemCart()...)

	_, err := f.svc.CreateOrder(context.Background(), userID, &CreateOrderRequest{
		PaymentMode: models.PaymentModeCOD,
		ShipAddress: "1 Main St",
	})
	require.Error(t, err)

	assert.Equal(t, 10, f.catalog.stock(t, "tee", "M"))
	assert.Equal(t, 5, f.catalog.stock(t, "cap", "OS"))
	assert.True(t, f.carts.has(userID), "cart is only cleared after a successful persist")
}

func TestCreateOrder_RejectsUnknownPaymentMode(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	userID := uuid.NewString()
	f.seedCart(userID, twoItemCart()...)

	_, err := f.svc.CreateOrder(context.Background(), userID, &CreateOrderRequest{
		PaymentMode: "wire",
		ShipAddress: "1 Main St",
	})
	require.Error(t, err)
	assert.Equal(t, 10, f.catalog.stock(t, "tee", "M"))
}

// ---- CancelOrder -----------------------------------------------------------

func (f *orderFixture) placeOrder(t *testing.T, userID string, mode models.PaymentMode) *models.Order {
	t.Helper()
	f.seedCart(userID, twoItemCart()...)
	order, err := f.svc.CreateOrder(context.Background(), userID, &CreateOrderRequest{
		PaymentMode: mode,
		PaymentRef:  "pi_123",
		ShipAddress: "1 Main St",
	})
	require.NoError(t, err)
	return order
}

func TestCancelOrder_RestoresStock(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	userID := uuid.NewString()
	order := f.placeOrder(t, userID, models.PaymentModeCOD)
	require.Equal(t, 8, f.catalog.stock(t, "tee", "M"))

	require.NoError(t, f.svc.CancelOrder(context.Background(), order.ID, userID, false))

	assert.Equal(t, models.StatusCancelled, f.orders.status(t, order.ID))
	assert.Equal(t, 10, f.catalog.stock(t, "tee", "M"))
	assert.Equal(t, 5, f.catalog.stock(t, "cap", "OS"))
	assert.Contains(t, f.notifier.statuses, models.StatusCancelled)

	// A follow-up availability check sees the restored stock.
	ok, err := NewReservationService(f.catalog).CheckAvailability(context.Background(),
		[]models.ReservationLine{{ProductID: "tee", Size: "M", Quantity: 10}})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCancelOrder_ShippedIsNotCancellable(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	userID := uuid.NewString()
	order := f.placeOrder(t, userID, models.PaymentModeCOD)

	require.NoError(t, f.svc.UpdateStatus(context.Background(), order.ID, models.StatusShipped, "admin-1"))

	err := f.svc.CancelOrder(context.Background(), order.ID, userID, false)
	assert.ErrorIs(t, err, models.ErrNotCancellable)
	assert.Equal(t, models.StatusShipped, f.orders.status(t, order.ID))
	assert.Equal(t, 8, f.catalog.stock(t, "tee", "M"), "stock stays committed")
}

func TestCancelOrder_OtherUsersOrderIsNotFound(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	owner := uuid.NewString()
	order := f.placeOrder(t, owner, models.PaymentModeCOD)

	err := f.svc.CancelOrder(context.Background(), order.ID, uuid.NewString(), false)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// An admin may cancel any order.
	require.NoError(t, f.svc.CancelOrder(context.Background(), order.ID, uuid.NewString(), true))
	assert.Equal(t, models.StatusCancelled, f.orders.status(t, order.ID))
}

func TestCancelOrder_SecondCancelFails(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	userID := uuid.NewString()
	order := f.placeOrder(t, userID, models.PaymentModeCOD)

	require.NoError(t, f.svc.CancelOrder(context.Background(), order.ID, userID, false))
	err := f.svc.CancelOrder(context.Background(), order.ID, userID, false)
	assert.ErrorIs(t, err, models.ErrNotCancellable)
	assert.Equal(t, 10, f.catalog.stock(t, "tee", "M"), "release happens exactly once")
}

// ---- UpdateStatus ----------------------------------------------------------

func TestUpdateStatus_ForwardSkipAllowed(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	order := f.placeOrder(t, uuid.NewString(), models.PaymentModeCOD)

	require.NoError(t, f.svc.UpdateStatus(context.Background(), order.ID, models.StatusShipped, "admin-1"))
	assert.Equal(t, models.StatusShipped, f.orders.status(t, order.ID))

	require.NoError(t, f.svc.UpdateStatus(context.Background(), order.ID, models.StatusDelivered, "admin-1"))
	assert.Equal(t, models.StatusDelivered, f.orders.status(t, order.ID))
}

func TestUpdateStatus_BackwardRejected(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	order := f.placeOrder(t, uuid.NewString(), models.PaymentModeCOD)

	require.NoError(t, f.svc.UpdateStatus(context.Background(), order.ID, models.StatusDelivered, "admin-1"))

	err := f.svc.UpdateStatus(context.Background(), order.ID, models.StatusProcessing, "admin-1")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, models.StatusDelivered, f.orders.status(t, order.ID))
}

func TestUpdateStatus_UnknownStatusRejected(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	order := f.placeOrder(t, uuid.NewString(), models.PaymentModeCOD)

	err := f.svc.UpdateStatus(context.Background(), order.ID, "refunded", "admin-1")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestUpdateStatus_AdminCancelReleasesStock(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	order := f.placeOrder(t, uuid.NewString(), models.PaymentModeCOD)
	require.Equal(t, 8, f.catalog.stock(t, "tee", "M"))

	require.NoError(t, f.svc.UpdateStatus(context.Background(), order.ID, models.StatusCancelled, "admin-1"))
	assert.Equal(t, 10, f.catalog.stock(t, "tee", "M"))
}

// ---- payment confirmation --------------------------------------------------

func TestConfirmPayment_Success(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	f.gateway.ok = true
	order := f.placeOrder(t, uuid.NewString(), models.PaymentModeOnline)

	require.NoError(t, f.svc.ConfirmPayment(context.Background(), order.ID, "pi_123"))
	assert.Equal(t, models.StatusReceived, f.orders.status(t, order.ID))
	assert.Equal(t, 8, f.catalog.stock(t, "tee", "M"), "stock stays reserved")
	assert.Contains(t, f.notifier.statuses, models.StatusReceived)
}

func TestConfirmPayment_DeniedFailsOrderAndReleasesStock(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	f.gateway.ok = false
	order := f.placeOrder(t, uuid.NewString(), models.PaymentModeOnline)

	err := f.svc.ConfirmPayment(context.Background(), order.ID, "pi_123")
	assert.ErrorIs(t, err, models.ErrPaymentDenied)
	assert.Equal(t, models.StatusFailed, f.orders.status(t, order.ID))
	assert.Equal(t, 10, f.catalog.stock(t, "tee", "M"))
	assert.Equal(t, 5, f.catalog.stock(t, "cap", "OS"))
}

func TestConfirmPayment_TimeoutFailsOrderAndReleasesStock(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	f.gateway.err = errors.New("still processing")
	order := f.placeOrder(t, uuid.NewString(), models.PaymentModeOnline)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := f.svc.ConfirmPayment(ctx, order.ID, "pi_123")
	assert.ErrorIs(t, err, models.ErrPaymentTimeout)
	assert.Equal(t, models.StatusFailed, f.orders.status(t, order.ID))
	assert.Equal(t, 10, f.catalog.stock(t, "tee", "M"))
	assert.GreaterOrEqual(t, f.gateway.calls, 1)
}

func TestConfirmPayment_RejectsNonPendingOrder(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	order := f.placeOrder(t, uuid.NewString(), models.PaymentModeCOD)

	err := f.svc.ConfirmPayment(context.Background(), order.ID, "pi_123")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestHandlePaymentEvent(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	order := f.placeOrder(t, uuid.NewString(), models.PaymentModeOnline)

	err := f.svc.HandlePaymentEvent(context.Background(), models.PaymentEvent{
		OrderID:   order.ID.String(),
		Type:      models.EventPaymentSucceeded,
		PaymentID: "pi_456",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, f.orders.status(t, order.ID))

	// Duplicate delivery of the same event is ignored once settled.
	err = f.svc.HandlePaymentEvent(context.Background(), models.PaymentEvent{
		OrderID: order.ID.String(),
		Type:    models.EventPaymentFailed,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, f.orders.status(t, order.ID))
}

// ---- reconciliation --------------------------------------------------------

func TestReconcileStalePending(t *testing.T) {
	f := newOrderFixture(twoProducts()...)

	abandoned := f.placeOrder(t, uuid.NewString(), models.PaymentModeOnline)
	confirmed := f.placeOrder(t, uuid.NewString(), models.PaymentModeOnline)

	// Age both orders past the cutoff; strip the payment ref from one so the
	// sweep treats it as abandoned.
	f.orders.mu.Lock()
	old := time.Now().Add(-time.Hour)
	f.orders.byID[abandoned.ID].PaymentID = ""
	f.orders.byID[abandoned.ID].CreatedAt = old
	f.orders.byID[confirmed.ID].CreatedAt = old
	f.orders.mu.Unlock()

	f.gateway.ok = true
	require.NoError(t, f.svc.ReconcileStalePending(context.Background(), 30*time.Minute))

	assert.Equal(t, models.StatusFailed, f.orders.status(t, abandoned.ID))
	assert.Equal(t, models.StatusReceived, f.orders.status(t, confirmed.ID))
	// Only the abandoned order's reservation was released.
	assert.Equal(t, 8, f.catalog.stock(t, "tee", "M"))
	assert.Equal(t, 4, f.catalog.stock(t, "cap", "OS"))
}

func TestReconcileStalePending_DeniedOrderFailsAndReleases(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	order := f.placeOrder(t, uuid.NewString(), models.PaymentModeOnline)

	f.orders.mu.Lock()
	f.orders.byID[order.ID].CreatedAt = time.Now().Add(-time.Hour)
	f.orders.mu.Unlock()

	f.gateway.ok = false
	require.NoError(t, f.svc.ReconcileStalePending(context.Background(), 30*time.Minute),
		"a gateway denial is a settled outcome, not a sweep error")

	assert.Equal(t, models.StatusFailed, f.orders.status(t, order.ID))
	assert.Equal(t, 10, f.catalog.stock(t, "tee", "M"))
	assert.Equal(t, 5, f.catalog.stock(t, "cap", "OS"))
}

func TestReconcileStalePending_UndecidedLeftForNextSweep(t *testing.T) {
	f := newOrderFixture(twoProducts()...)
	order := f.placeOrder(t, uuid.NewString(), models.PaymentModeOnline)

	f.orders.mu.Lock()
	f.orders.byID[order.ID].CreatedAt = time.Now().Add(-time.Hour)
	f.orders.mu.Unlock()

	f.gateway.err = errors.New("still processing")
	require.NoError(t, f.svc.ReconcileStalePending(context.Background(), 30*time.Minute))

	assert.Equal(t, models.StatusPending, f.orders.status(t, order.ID))
	assert.Equal(t, 8, f.catalog.stock(t, "tee", "M"), "stock stays reserved while undecided")
}
