package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/AmanCH3/hamro-grocery-backend/database"
	"github.com/AmanCH3/hamro-grocery-backend/locks"
	"github.com/AmanCH3/hamro-grocery-backend/models"
	"github.com/AmanCH3/hamro-grocery-backend/providers"
	"github.com/AmanCH3/hamro-grocery-backend/repository"
	"github.com/AmanCH3/hamro-grocery-backend/services"
)

type fakeGateway struct {
	mu          sync.Mutex
	initiateErr error
	lookupErr   error
	lookup      providers.LookupResult
	initiated   []providers.InitiateRequest
	lookups     int
	nextRef     string
}

func (g *fakeGateway) Name() string { return models.PaymentMethodKhalti }

func (g *fakeGateway) Initiate(_ context.Context, req providers.InitiateRequest) (*providers.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initiated = append(g.initiated, req)
	if g.initiateErr != nil {
		return nil, g.initiateErr
	}
	ref := g.nextRef
	if ref == "" {
		ref = "pidx-" + uuid.NewString()
	}
	return &providers.Session{TransactionRef: ref, PaymentURL: "https://test-pay.khalti.com/?pidx=" + ref}, nil
}

func (g *fakeGateway) Lookup(_ context.Context, ref string) (*providers.LookupResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups++
	if g.lookupErr != nil {
		return nil, g.lookupErr
	}
	res := g.lookup
	res.TransactionRef = ref
	return &res, nil
}

func (g *fakeGateway) lookupCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lookups
}

func (g *fakeGateway) completes(paidMinor int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookup = providers.LookupResult{Status: providers.StatusCompleted, GatewayStatus: "Completed", PaidMinor: paidMinor}
}

func (g *fakeGateway) reports(status providers.Status, gatewayStatus string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookup = providers.LookupResult{Status: status, GatewayStatus: gatewayStatus}
}

func (g *fakeGateway) initiateCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.initiated)
}

type fixedRoller int

func (f fixedRoller) Roll() int { return int(f) }

type memNotifications struct {
	mu    sync.Mutex
	items []models.Notification
}

func (m *memNotifications) Create(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, *n)
	return nil
}

type memPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
}

func (m *memPublisher) Publish(_ context.Context, evt models.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *memPublisher) Close() error { return nil }

func (m *memPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type heldLock struct{}

func (heldLock) Acquire(context.Context, string) (func(), error) { return func() {}, locks.ErrLockHeld }

type testEnv struct {
	db        *gorm.DB
	orderRepo repository.OrderRepository
	orders    *services.OrderService
	payments  *services.PaymentService
	gateway   *fakeGateway
	notes     *memNotifications
	events    *memPublisher
	user      *models.User
	product   *models.Product
}

func newTestEnv(t *testing.T, points int) *testEnv {
	t.Helper()
	return newTestEnvWith(t, points, 500, 10, fixedRoller(15))
}

func newTestEnvWith(t *testing.T, points int, price float64, stock int, roller services.PointsRoller) *testEnv {
	t.Helper()
	db := database.NewTestDB(t)
	log := zap.NewNop()

	user := &models.User{FullName: "Ram Thapa", Email: uuid.NewString() + "@example.com", Password: "x", GroceryPoints: points}
	require.NoError(t, db.Create(user).Error)
	product := &models.Product{Name: "Product A", Price: price, Stock: stock, ImageURL: "/uploads/a.png"}
	require.NoError(t, db.Create(product).Error)

	orderRepo := repository.NewGormOrderRepository(db)
	productRepo := repository.NewGormProductRepository(db)
	userRepo := repository.NewGormUserRepository(db)
	gateway := &fakeGateway{}
	notes := &memNotifications{}
	pub := &memPublisher{}

	return &testEnv{
		db:        db,
		orderRepo: orderRepo,
		orders:    services.NewOrderService(orderRepo, productRepo, userRepo, locks.NoopCheckoutLock{}, pub, nil, log),
		payments:  services.NewPaymentService(orderRepo, userRepo, notes, providers.NewRegistry(gateway), roller, pub, nil, log),
		gateway:   gateway,
		notes:     notes,
		events:    pub,
		user:      user,
		product:   product,
	}
}

func (e *testEnv) cart(qty int, discount bool) *models.CreateOrderRequest {
	return &models.CreateOrderRequest{
		Items:         []models.CartItem{{ProductID: e.product.ID, Quantity: qty}},
		Address:       "Lalitpur-3, Pulchowk",
		Phone:         "9812345678",
		ApplyDiscount: discount,
	}
}

// stageAndInitiate stages an order and hands it to the fake gateway,
// returning the order and its transaction reference.
func (e *testEnv) stageAndInitiate(t *testing.T, qty int, discount bool) (*models.Order, string) {
	t.Helper()
	ctx := context.Background()
	order, svcErr := e.orders.StageOrder(ctx, e.user.ID, e.cart(qty, discount))
	require.Nil(t, svcErr)

	res, svcErr := e.payments.InitiatePayment(ctx, e.user.ID, &models.InitiatePaymentRequest{OrderID: order.ID})
	require.Nil(t, svcErr)
	return order, res.Pidx
}

func (e *testEnv) stock(t *testing.T) int {
	t.Helper()
	var p models.Product
	require.NoError(t, e.db.First(&p, "id = ?", e.product.ID).Error)
	return p.Stock
}

func (e *testEnv) points(t *testing.T) int {
	t.Helper()
	var u models.User
	require.NoError(t, e.db.First(&u, "id = ?", e.user.ID).Error)
	return u.GroceryPoints
}

func (e *testEnv) order(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	o, err := e.orderRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (e *testEnv) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Order{}).Count(&n).Error)
	return n
}
