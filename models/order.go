package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "Pending Payment"
	StatusProcessing     OrderStatus = "Processing"
	StatusFulfilled      OrderStatus = "Fulfilled"
	StatusDisputed       OrderStatus = "Disputed"
	StatusCancelled      OrderStatus = "Cancelled"
)

// Settled reports whether settlement has already been applied to the order.
func (s OrderStatus) Settled() bool {
	return s == StatusProcessing || s == StatusFulfilled
}

const (
	PaymentMethodKhalti = "khalti"
	PaymentMethodStripe = "stripe"
)

// Order is a reservation created at staging that becomes fulfillable once
// payment is settled. Amount is the price of record and is never recomputed
// from live catalog prices.
type Order struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"_id"`
	CustomerID      uuid.UUID   `gorm:"type:uuid;not null;index" json:"customer"`
	Items           []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Amount          float64     `gorm:"not null" json:"amount"`
	Address         string      `gorm:"type:varchar(512);not null" json:"address"`
	Phone           string      `gorm:"type:varchar(32);not null" json:"phone"`
	Status          OrderStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	PaymentMethod   string      `gorm:"type:varchar(32);not null" json:"paymentMethod"`
	TransactionRef  *string     `gorm:"type:varchar(255);uniqueIndex" json:"pidx,omitempty"`
	PaymentURL      string      `gorm:"type:varchar(1024)" json:"-"`
	DiscountApplied bool        `gorm:"not null;default:false" json:"discountApplied"`
	PointsAwarded   int         `gorm:"not null;default:0" json:"pointsAwarded"`
	SettledAt       *time.Time  `json:"settledAt,omitempty"`
	CreatedAt       time.Time   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// ItemsSubtotal is the pre-discount sum of the snapshotted line items.
func (o *Order) ItemsSubtotal() float64 {
	return ItemsSubtotal(o.Items)
}

// AmountMinorUnits is the amount in paisa/cents as the gateways expect it.
func (o *Order) AmountMinorUnits() int64 {
	return MinorUnits(o.Amount)
}

// OrderItem is a line item with the product name, price and image captured at
// staging time.
type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"_id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	ProductID uuid.UUID `gorm:"type:uuid;not null" json:"product"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Price     float64   `gorm:"not null" json:"price"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	ImageURL  string    `gorm:"type:varchar(1024)" json:"imageUrl"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// ItemsSubtotal sums price × quantity over the given items.
func ItemsSubtotal(items []OrderItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// MinorUnits converts a major-unit amount to the smallest currency unit,
// rounding rather than truncating.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CartItem is a single line of a checkout request.
type CartItem struct {
	ProductID uuid.UUID `json:"productId" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest is the staging payload.
type CreateOrderRequest struct {
	Items         []CartItem `json:"items" binding:"required,dive"`
	Address       string     `json:"address"`
	Phone         string     `json:"phone"`
	ApplyDiscount bool       `json:"applyDiscount"`
}

// InitiatePaymentRequest asks for a gateway session for a staged order.
type InitiatePaymentRequest struct {
	OrderID       uuid.UUID `json:"orderId" binding:"required"`
	PaymentMethod string    `json:"paymentMethod"`
}

// VerifyPaymentRequest is the client-submitted settlement confirmation.
type VerifyPaymentRequest struct {
	Pidx string `json:"pidx" binding:"required"`
}
