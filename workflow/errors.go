package workflow

import (
	"errors"
	"fmt"

	"shop-svc/models"
)

var (
	ErrBadRequest = errors.New("bad request")
	// ErrGatewayUnavailable is transient; the caller may retry the same reference.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayMisconfigured needs an operator; retrying does not help.
	ErrGatewayMisconfigured = errors.New("payment gateway misconfigured")
	// ErrPaymentFailed is terminal for the reference.
	ErrPaymentFailed     = errors.New("payment failed")
	ErrPaymentPending    = errors.New("payment not yet completed")
	ErrOrderNotPayable   = errors.New("order is not awaiting payment")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

type InsufficientStockError struct {
	ProductID   int
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == models.ErrInsufficientStock
}

type PaymentFailedError struct {
	Reference string
	Status    string
}

func (e *PaymentFailedError) Error() string {
	return fmt.Sprintf("payment %s was not successful: %s", e.Reference, e.Status)
}

func (e *PaymentFailedError) Is(target error) bool {
	return target == ErrPaymentFailed
}
