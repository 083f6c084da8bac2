package service

import (
	"errors"
	"fmt"

	"inventory-service/internal/models"
)

var (
	ErrInsufficientStock         = errors.New("insufficient stock")
	ErrInsufficientSupplierStock = errors.New("insufficient supplier stock")
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrInvalidInput              = errors.New("invalid input")
	ErrUnauthorized              = errors.New("unauthorized")
	ErrForbidden                 = errors.New("forbidden")
	ErrBusy                      = errors.New("resource is busy, retry later")
)

// InsufficientStockError is returned when a product's batches cannot cover a sale.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// InsufficientSupplierStockError names the order item the supplier cannot cover.
type InsufficientSupplierStockError struct {
	ItemID            int64
	SupplierProductID int64
	Name              string
	Requested         int
	Available         int
}

func (e *InsufficientSupplierStockError) Error() string {
	return fmt.Sprintf("insufficient supplier stock for %q (item %d): requested %d, available %d",
		e.Name, e.ItemID, e.Requested, e.Available)
}

func (e *InsufficientSupplierStockError) Is(target error) bool {
	return target == ErrInsufficientSupplierStock
}

type InvalidTransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
	Hint string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("cannot change purchase order status from %s to %s", e.From, e.To)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// MaxIdempotencyKeyLength matches purchase_orders.idempotency_key
const MaxIdempotencyKeyLength = 64

func checkIdempotencyKey(key string) error {
	if len(key) > MaxIdempotencyKeyLength {
		return invalidInput("idempotency key must be at most %d characters", MaxIdempotencyKeyLength)
	}
	return nil
}

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
