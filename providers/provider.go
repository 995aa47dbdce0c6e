package providers

import (
	"context"
	"errors"
	"fmt"
)

// ErrGateway marks every failure talking to a payment gateway: transport
// errors, timeouts, non-2xx answers and malformed bodies. Callers treat it
// as retryable.
var ErrGateway = errors.New("payment gateway error")

// Status is the normalised outcome of a gateway lookup.
type Status string

const (
	StatusCompleted Status = "Completed"
	StatusPending   Status = "Pending"
	StatusFailed    Status = "Failed"
)

type Customer struct {
	Name  string
	Email string
	Phone string
}

// InitiateRequest carries what a gateway needs to open a payment session.
// AmountMinor is in the smallest currency unit (paisa).
type InitiateRequest struct {
	OrderID     string
	OrderName   string
	AmountMinor int64
	Customer    Customer
}

// Session is the gateway's answer to an initiate call.
type Session struct {
	TransactionRef string
	PaymentURL     string
}

// LookupResult is the server-to-server view of a transaction.
type LookupResult struct {
	TransactionRef string
	Status         Status
	// GatewayStatus is the raw status string, kept for logs and messages.
	GatewayStatus string
	PaidMinor     int64
}

// PaymentProvider defines the interface all gateway integrations implement.
type PaymentProvider interface {
	// Name is the payment method tag stored on orders.
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (*Session, error)
	Lookup(ctx context.Context, transactionRef string) (*LookupResult, error)
}

// Registry resolves providers by payment method.
type Registry map[string]PaymentProvider

func NewRegistry(providers ...PaymentProvider) Registry {
	r := make(Registry, len(providers))
	for _, p := range providers {
		r[p.Name()] = p
	}
	return r
}

func (r Registry) Get(method string) (PaymentProvider, error) {
	p, ok := r[method]
	if !ok {
		return nil, fmt.Errorf("unsupported payment method %q", method)
	}
	return p, nil
}

func gatewayError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrGateway, fmt.Sprintf(format, args...))
}
