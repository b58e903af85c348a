package customer

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a requested customer does not exist.
	ErrNotFound = errors.New("customer not found")
	// ErrInvalid is returned when a customer record violates its invariants.
	ErrInvalid = errors.New("invalid customer")
)

// Customer is a registered bookshop customer.
type Customer struct {
	ID         int64
	Name       string
	Email      string
	EnrolledAt time.Time
}

// TenureYears returns the number of whole years between the enrollment date
// and now. The enrollment time is treated as a calendar date. An anniversary
// that has not been reached yet does not count, and a future enrollment date
// yields zero.
func (c *Customer) TenureYears(now time.Time) int {
	from := c.EnrolledAt
	if from.After(now) {
		return 0
	}

	years := now.Year() - from.Year()
	if now.Month() < from.Month() || (now.Month() == from.Month() && now.Day() < from.Day()) {
		years--
	}
	return max(years, 0)
}

// Validate checks the record invariants against the given clock.
func (c *Customer) Validate(now time.Time) error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return errors.Wrap(ErrInvalid, "name is required")
	case strings.TrimSpace(c.Email) == "":
		return errors.Wrap(ErrInvalid, "email is required")
	case c.EnrolledAt.IsZero():
		return errors.Wrap(ErrInvalid, "enrollment date is required")
	case c.EnrolledAt.After(now):
		return errors.Wrap(ErrInvalid, "enrollment date is in the future")
	}
	return nil
}

// Repository provides lookup and persistence of customers.
type Repository interface {
	// FindByID returns ErrNotFound when no customer has the given id.
	FindByID(ctx context.Context, id int64) (*Customer, error)
	// Save stores the customer, assigning an identifier when ID is zero.
	Save(ctx context.Context, c *Customer) (*Customer, error)
}
