package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AmanCH3/hamro-grocery-backend/events"
	"github.com/AmanCH3/hamro-grocery-backend/locks"
	"github.com/AmanCH3/hamro-grocery-backend/models"
	awspkg "github.com/AmanCH3/hamro-grocery-backend/pkg/aws"
	"github.com/AmanCH3/hamro-grocery-backend/pkg/logger"
	"github.com/AmanCH3/hamro-grocery-backend/repository"
)

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

// Pricing is the breakdown computed at staging.
type Pricing struct {
	ItemsSubtotal   float64
	Discount        float64
	DeliveryFee     float64
	Amount          float64
	DiscountApplied bool
}

// PriceOrder prices snapshotted line items. The discount takes 25% off the
// items subtotal, never the delivery fee, and only when it is requested and
// the balance covers its cost; otherwise it is silently dropped.
func PriceOrder(items []models.OrderItem, pointsBalance int, applyDiscount bool) Pricing {
	p := Pricing{
		ItemsSubtotal: models.ItemsSubtotal(items),
		DeliveryFee:   DeliveryFee,
	}
	if applyDiscount && pointsBalance >= DiscountPointsCost {
		p.Discount = p.ItemsSubtotal * DiscountRate
		p.DiscountApplied = true
	}
	p.Amount = roundMoney(p.ItemsSubtotal + p.DeliveryFee - p.Discount)
	return p
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

type OrderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	lock        locks.CheckoutLock
	publisher   events.Publisher
	metrics     awspkg.MetricsRecorder
	logger      *zap.Logger
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	lock locks.CheckoutLock,
	publisher events.Publisher,
	metrics awspkg.MetricsRecorder,
	logger *zap.Logger,
) *OrderService {
	if lock == nil {
		lock = locks.NoopCheckoutLock{}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		lock:        lock,
		publisher:   publisher,
		metrics:     metrics,
		logger:      logger,
	}
}

// StageOrder validates and prices a cart and persists it as an order
// awaiting payment. Nothing is written when any check fails, and stock and
// points are left alone.
func (s *OrderService) StageOrder(ctx context.Context, userID uuid.UUID, req *models.CreateOrderRequest) (*models.Order, *ServiceError) {
	if svcErr := validateCart(req); svcErr != nil {
		return nil, svcErr
	}

	release, err := s.lock.Acquire(ctx, userID.String())
	defer release()
	if err != nil {
		if errors.Is(err, locks.ErrLockHeld) {
			return nil, newError(http.StatusConflict, "Another checkout is already in progress.", ErrCheckoutInProgress)
		}
		logger.For(ctx, s.logger).Warn("Checkout lock unavailable, continuing without it", zap.Error(err))
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(http.StatusNotFound, "User not found", ErrUserNotFound)
		}
		logger.For(ctx, s.logger).Error("Failed to load user", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, internalError("Failed to create order")
	}

	ids := make([]uuid.UUID, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		logger.For(ctx, s.logger).Error("Failed to load products", zap.Error(err))
		return nil, internalError("Failed to create order")
	}

	items, svcErr := snapshotItems(req.Items, products)
	if svcErr != nil {
		return nil, svcErr
	}

	pricing := PriceOrder(items, user.GroceryPoints, req.ApplyDiscount)
	order := &models.Order{
		CustomerID:      user.ID,
		Items:           items,
		Amount:          pricing.Amount,
		Address:         strings.TrimSpace(req.Address),
		Phone:           strings.TrimSpace(req.Phone),
		Status:          models.StatusPendingPayment,
		PaymentMethod:   models.PaymentMethodKhalti,
		DiscountApplied: pricing.DiscountApplied,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		logger.For(ctx, s.logger).Error("Failed to persist order", zap.Error(err))
		return nil, internalError("Failed to create order")
	}

	logger.For(ctx, s.logger).Info("Order staged",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Float64("amount", order.Amount),
		zap.Bool("discount_applied", order.DiscountApplied),
	)
	s.publish(ctx, models.EventOrderStaged, order)
	_ = s.metrics.RecordCount(ctx, awspkg.MetricOrdersCreated, nil)

	return order, nil
}

func validateCart(req *models.CreateOrderRequest) *ServiceError {
	if req == nil || len(req.Items) == 0 {
		return validationError("At least one item is required")
	}
	for _, item := range req.Items {
		if item.ProductID == uuid.Nil {
			return validationError("Every item needs a product id")
		}
		if item.Quantity < 1 {
			return validationError("Quantity must be at least 1")
		}
	}
	if strings.TrimSpace(req.Address) == "" {
		return validationError("Delivery address is required")
	}
	if strings.TrimSpace(req.Phone) == "" {
		return validationError("Phone number is required")
	}
	return nil
}

// snapshotItems resolves every cart line against the catalog and captures
// name, price and image. Stock is checked against the total quantity
// requested per product.
func snapshotItems(cart []models.CartItem, products map[uuid.UUID]models.Product) ([]models.OrderItem, *ServiceError) {
	requested := make(map[uuid.UUID]int, len(cart))
	for _, line := range cart {
		requested[line.ProductID] += line.Quantity
	}

	items := make([]models.OrderItem, 0, len(cart))
	for _, line := range cart {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, newError(http.StatusNotFound,
				fmt.Sprintf("Product with ID %s not found.", line.ProductID), ErrProductNotFound)
		}
		if product.Stock < requested[line.ProductID] {
			return nil, newError(http.StatusBadRequest,
				fmt.Sprintf("Product %s is out of stock.", product.Name), ErrInsufficientStock)
		}
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  line.Quantity,
			ImageURL:  product.ImageURL,
		})
	}
	return items, nil
}

// GetUserOrders retrieves paginated orders for a specific user
func (s *OrderService) GetUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*OrderResponse, *ServiceError) {
	orders, total, err := s.orderRepo.FindByUserID(ctx, userID, page, limit)
	if err != nil {
		logger.For(ctx, s.logger).Error("Failed to fetch orders", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, internalError("Failed to fetch orders")
	}
	return newOrderResponse(orders, total, page, limit), nil
}

// GetAllOrders retrieves paginated orders for all users (admin only)
func (s *OrderService) GetAllOrders(ctx context.Context, page, limit int) (*OrderResponse, *ServiceError) {
	orders, total, err := s.orderRepo.FindAll(ctx, page, limit)
	if err != nil {
		logger.For(ctx, s.logger).Error("Failed to fetch all orders", zap.Error(err))
		return nil, internalError("Failed to fetch orders")
	}
	return newOrderResponse(orders, total, page, limit), nil
}

// GetOrderByID retrieves a specific order for a user
func (s *OrderService) GetOrderByID(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, *ServiceError) {
	order, err := s.orderRepo.FindByIDAndUserID(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(http.StatusNotFound, "Order not found", ErrOrderNotFound)
		}
		logger.For(ctx, s.logger).Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, internalError("Failed to fetch order")
	}
	return order, nil
}

// FulfilOrder marks a settled order as delivered.
func (s *OrderService) FulfilOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, *ServiceError) {
	err := s.orderRepo.Transition(ctx, orderID, models.StatusProcessing, models.StatusFulfilled)
	if err != nil && !errors.Is(err, repository.ErrStatusConflict) {
		logger.For(ctx, s.logger).Error("Failed to fulfil order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, internalError("Failed to fulfil order")
	}

	order, findErr := s.orderRepo.FindByID(ctx, orderID)
	if findErr != nil {
		if errors.Is(findErr, repository.ErrNotFound) {
			return nil, newError(http.StatusNotFound, "Order not found", ErrOrderNotFound)
		}
		return nil, internalError("Failed to fetch order")
	}
	if err != nil && order.Status != models.StatusFulfilled {
		return nil, newError(http.StatusConflict,
			fmt.Sprintf("Only processing orders can be fulfilled; order is %s.", order.Status), ErrInvalidTransition)
	}
	return order, nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order) {
	if err := s.publisher.Publish(ctx, models.NewOrderEvent(eventType, order)); err != nil {
		logger.For(ctx, s.logger).Warn("Order event publish failed",
			zap.String("event_type", eventType),
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

func newOrderResponse(orders []models.Order, total int64, page, limit int) *OrderResponse {
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

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
