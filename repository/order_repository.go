package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AmanCH3/hamro-grocery-backend/models"
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDAndUserID(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
	FindByTransactionRef(ctx context.Context, ref string) (*models.Order, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error)
	FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error)
	SetTransactionRef(ctx context.Context, id uuid.UUID, prevRef *string, h Handoff) error
	Settle(ctx context.Context, order *models.Order, s Settlement) error
	Transition(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error
}

// Settlement describes the mutations applied when an order is paid.
type Settlement struct {
	// PointsDebit is taken from the customer's balance; the balance must
	// cover it.
	PointsDebit int
	// BonusPoints is credited to the customer and recorded on the order.
	BonusPoints int
	SettledAt   time.Time
}

// Handoff is the gateway session recorded on an order at payment handoff.
type Handoff struct {
	PaymentMethod  string
	TransactionRef string
	PaymentURL     string
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new instance of GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

// Create persists the order and its line items in one statement batch.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByIDAndUserID retrieves a specific order for a user
func (r *GormOrderRepository) FindByIDAndUserID(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	return r.first(ctx, "id = ? AND customer_id = ?", id, userID)
}

func (r *GormOrderRepository) FindByTransactionRef(ctx context.Context, ref string) (*models.Order, error) {
	return r.first(ctx, "transaction_ref = ?", ref)
}

func (r *GormOrderRepository) first(ctx context.Context, query string, args ...interface{}) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where(query, args...).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &order, nil
}

// FindByUserID retrieves orders for a specific user with pagination
func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	return r.paginate(ctx, r.db.WithContext(ctx).Model(&models.Order{}).Where("customer_id = ?", userID), page, limit)
}

// FindAll retrieves all orders with pagination
func (r *GormOrderRepository) FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	return r.paginate(ctx, r.db.WithContext(ctx).Model(&models.Order{}), page, limit)
}

func (r *GormOrderRepository) paginate(ctx context.Context, query *gorm.DB, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("Items").
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// SetTransactionRef records the gateway session of a handoff. The update
// only applies while the order is awaiting payment and still carries
// prevRef (nil for the first handoff), so a reference can never be replaced
// behind the back of a concurrent handoff. ErrOrderNotPending or
// ErrHandoffChanged tells the caller which guard failed.
func (r *GormOrderRepository) SetTransactionRef(ctx context.Context, id uuid.UUID, prevRef *string, h Handoff) error {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, string(models.StatusPendingPayment))
	if prevRef == nil {
		query = query.Where("transaction_ref IS NULL")
	} else {
		query = query.Where("transaction_ref = ?", *prevRef)
	}

	result := query.Updates(map[string]interface{}{
		"transaction_ref": h.TransactionRef,
		"payment_method":  h.PaymentMethod,
		"payment_url":     h.PaymentURL,
	})
	if result.Error != nil {
		return fmt.Errorf("set transaction ref: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var current models.Order
	if err := r.db.WithContext(ctx).Select("status").Where("id = ?", id).First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("reload order after handoff conflict: %w", err)
	}
	if current.Status != models.StatusPendingPayment {
		return ErrOrderNotPending
	}
	return ErrHandoffChanged
}

// Settle applies a paid order in a single transaction: the status flip,
// every stock decrement and the points adjustment commit together or not at
// all.
//
// The conditional status update runs first. Of two concurrent settlements
// of the same order exactly one sees RowsAffected == 1; the other gets
// ErrOrderNotPending and mutates nothing.
func (r *GormOrderRepository) Settle(ctx context.Context, order *models.Order, s Settlement) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, string(models.StatusPendingPayment)).
			Updates(map[string]interface{}{
				"status":         string(models.StatusProcessing),
				"points_awarded": s.BonusPoints,
				"settled_at":     s.SettledAt,
			})
		if result.Error != nil {
			return fmt.Errorf("advance order status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrOrderNotPending
		}

		for _, item := range itemsByProduct(order.Items) {
			if err := decrementStock(tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if s.PointsDebit > 0 {
			if err := debitPoints(tx, order.CustomerID, s.PointsDebit); err != nil {
				return err
			}
		}
		if s.BonusPoints > 0 {
			if err := creditPoints(tx, order.CustomerID, s.BonusPoints); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	order.Status = models.StatusProcessing
	order.PointsAwarded = s.BonusPoints
	settledAt := s.SettledAt
	order.SettledAt = &settledAt
	return nil
}

// itemsByProduct returns a copy of items ordered by product id. Every
// settlement locks product rows in this order, so two settlements sharing
// products cannot deadlock.
func itemsByProduct(items []models.OrderItem) []models.OrderItem {
	sorted := make([]models.OrderItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})
	return sorted
}

// decrementStock takes qty units in a single statement guarded by the
// stock floor, so concurrent settlements can never overdraw a product.
func decrementStock(tx *gorm.DB, productID uuid.UUID, qty int) error {
	result := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if result.Error != nil {
		return fmt.Errorf("decrement stock of %s: %w", productID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: product %s", ErrInsufficientStock, productID)
	}
	return nil
}

func debitPoints(tx *gorm.DB, userID uuid.UUID, points int) error {
	result := tx.Model(&models.User{}).
		Where("id = ? AND grocery_points >= ?", userID, points).
		UpdateColumn("grocery_points", gorm.Expr("grocery_points - ?", points))
	if result.Error != nil {
		return fmt.Errorf("debit points of %s: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return fmt.Errorf("debit points of %s: %w", userID, err)
		}
		if count == 0 {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return fmt.Errorf("%w: user %s", ErrInsufficientPoints, userID)
	}
	return nil
}

func creditPoints(tx *gorm.DB, userID uuid.UUID, points int) error {
	result := tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("grocery_points", gorm.Expr("grocery_points + ?", points))
	if result.Error != nil {
		return fmt.Errorf("credit points of %s: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return nil
}

// Transition moves an order from one status to another only if it is
// still in the expected status.
func (r *GormOrderRepository) Transition(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if result.Error != nil {
		return fmt.Errorf("transition order %s to %s: %w", id, to, result.Error)
	}
	if result.RowsAffected == 0 {
		if from == models.StatusPendingPayment {
			return ErrOrderNotPending
		}
		return ErrStatusConflict
	}
	return nil
}
