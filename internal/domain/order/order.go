package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bookshop/internal/domain/customer"
	"github.com/xenking/bookshop/internal/domain/loyalty"
	"github.com/xenking/bookshop/internal/domain/shipping"
)

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusProcessing is the initial state set by pricing.
	StatusProcessing Status = "PROCESSING"
	// StatusConfirmed marks an order accepted for fulfillment.
	StatusConfirmed Status = "CONFIRMED"
	// StatusCancelled marks an order that will not be fulfilled.
	StatusCancelled Status = "CANCELLED"
	// StatusDelivered marks an order handed to the customer.
	StatusDelivered Status = "DELIVERED"
)

// ErrUnknownStatus is returned by ParseStatus for unrecognized values.
var ErrUnknownStatus = errors.New("unknown order status")

// ParseStatus converts a case-insensitive status name to a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusProcessing, StatusConfirmed, StatusCancelled, StatusDelivered:
		return st, nil
	default:
		return "", errors.Wrapf(ErrUnknownStatus, "%q", s)
	}
}

func (s Status) String() string {
	return string(s)
}

// Address is a delivery address. State holds the region code.
type Address struct {
	Street   string `json:"street"`
	Number   string `json:"number"`
	District string `json:"district"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zipCode"`
}

// Region returns the normalized region code of the address.
func (a Address) Region() string {
	return shipping.NormalizeRegion(a.State)
}

// CartItem is a single line of the shopping cart. Title is display-only.
type CartItem struct {
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Subtotal returns UnitPrice × Quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a priced book order.
type Order struct {
	ID            string
	CustomerID    int64
	Customer      customer.Customer
	Address       Address
	Items         []CartItem
	ItemTotal     decimal.Decimal
	Discount      decimal.Decimal
	Freight       decimal.Decimal
	Total         decimal.Decimal
	PaymentMethod string
	LoyaltyTier   loyalty.Tier
	ShippingZone  shipping.Zone
	Status        Status
	CreatedAt     time.Time
}

// Confirm sets the status to StatusConfirmed without any guard.
func (o *Order) Confirm() { o.Status = StatusConfirmed }

// Cancel sets the status to StatusCancelled without any guard.
func (o *Order) Cancel() { o.Status = StatusCancelled }

// Deliver sets the status to StatusDelivered without any guard.
func (o *Order) Deliver() { o.Status = StatusDelivered }

// transitions lists the statuses reachable from each status. Terminal states
// have no entry.
var transitions = map[Status][]Status{
	StatusProcessing: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusDelivered, StatusCancelled},
}

// CanTransition reports whether the order-management layer allows moving
// from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// apply moves o to the given status through the unconditional setters.
func (o *Order) apply(to Status) {
	switch to {
	case StatusConfirmed:
		o.Confirm()
	case StatusCancelled:
		o.Cancel()
	case StatusDelivered:
		o.Deliver()
	default:
		o.Status = to
	}
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// GetByID returns ErrNotFound when no order has the given id.
	GetByID(ctx context.Context, id string) (*Order, error)
	// UpdateStatus moves the order from one status to another only if it is
	// still in from. It returns ErrNotFound when no order has the given id and
	// ErrStatusChanged when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}

// CustomerLookup resolves customers for the pricing pipeline.
type CustomerLookup interface {
	// FindByID returns customer.ErrNotFound when no customer has the given id.
	FindByID(ctx context.Context, id int64) (*customer.Customer, error)
}
