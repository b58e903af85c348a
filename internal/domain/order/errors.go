package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order handling.
var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition is the errors.Is target for TransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrStatusChanged is returned by Repository.UpdateStatus when another
	// writer changed the status after it was read.
	ErrStatusChanged = errors.New("order status changed concurrently")
)

// ValidationError indicates caller input that cannot be priced.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ErrEmptyCart is returned when an order has no items.
var ErrEmptyCart = &ValidationError{Message: "cart required"}

// InvalidItemError indicates a cart line with a non-positive quantity or a
// negative unit price. It unwraps to a *ValidationError.
type InvalidItemError struct {
	Index  int
	Reason string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("item %d: %s", e.Index, e.Reason)
}

func (e *InvalidItemError) Unwrap() error {
	return &ValidationError{Message: e.Error()}
}

// CustomerNotFoundError indicates the requested customer does not exist.
type CustomerNotFoundError struct {
	CustomerID int64
}

func (e *CustomerNotFoundError) Error() string {
	return fmt.Sprintf("customer %d not found", e.CustomerID)
}

// TransitionError indicates a status change rejected by the transition table.
type TransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %s to %s", e.OrderID, e.From, e.To)
}

// Is reports whether target is ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
