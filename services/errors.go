package services

import (
	"errors"
	"net/http"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientPoints  = errors.New("insufficient grocery points")
	ErrUserNotFound        = errors.New("user not found")
	ErrGateway             = errors.New("payment gateway unavailable")
	ErrAmountMismatch      = errors.New("payment amount mismatch")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotPayable     = errors.New("order is not awaiting payment")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrPaymentPending      = errors.New("payment still pending")
	ErrOrderDisputed       = errors.New("order is disputed")
	ErrCheckoutInProgress  = errors.New("checkout already in progress")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInternal            = errors.New("internal error")
)

// ServiceError carries the HTTP status and client message for a failure.
// Err is the taxonomy sentinel, reachable through errors.Is.
type ServiceError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func newError(status int, message string, err error) *ServiceError {
	return &ServiceError{StatusCode: status, Message: message, Err: err}
}

func validationError(message string) *ServiceError {
	return newError(http.StatusBadRequest, message, ErrValidation)
}

func internalError(message string) *ServiceError {
	return newError(http.StatusInternalServerError, message, ErrInternal)
}
