package models

import "time"

const (
	EventOrderStaged    = "order.staged"
	EventOrderSettled   = "order.settled"
	EventOrderDisputed  = "order.disputed"
	EventOrderCancelled = "order.cancelled"
)

// OrderEvent is published whenever an order changes state.
type OrderEvent struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"order_id"`
	UserID         string    `json:"user_id"`
	Amount         float64   `json:"amount"`
	Status         string    `json:"status"`
	PaymentMethod  string    `json:"payment_method,omitempty"`
	TransactionRef string    `json:"transaction_ref,omitempty"`
	PointsAwarded  int       `json:"points_awarded,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewOrderEvent builds an event snapshot of the order.
func NewOrderEvent(eventType string, order *Order) OrderEvent {
	evt := OrderEvent{
		Type:          eventType,
		OrderID:       order.ID.String(),
		UserID:        order.CustomerID.String(),
		Amount:        order.Amount,
		Status:        string(order.Status),
		PaymentMethod: order.PaymentMethod,
		PointsAwarded: order.PointsAwarded,
		Timestamp:     time.Now().UTC(),
	}
	if order.TransactionRef != nil {
		evt.TransactionRef = *order.TransactionRef
	}
	return evt
}
