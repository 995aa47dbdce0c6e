package repository

import "errors"

var (
	ErrNotFound           = errors.New("record not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInsufficientPoints = errors.New("insufficient grocery points")
	ErrOrderNotPending    = errors.New("order is not pending payment")
	ErrStatusConflict     = errors.New("order status changed concurrently")
	ErrHandoffChanged     = errors.New("order payment session changed concurrently")
	ErrDuplicateEmail     = errors.New("email already registered")
)
