package order

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/bookshop/internal/domain/customer"
	"github.com/xenking/bookshop/internal/domain/loyalty"
	"github.com/xenking/bookshop/internal/domain/shipping"
)

const instrumentationName = "github.com/xenking/bookshop/internal/domain/order"

// PlaceOrderRequest holds the input for pricing an order.
type PlaceOrderRequest struct {
	CustomerID    int64
	Address       Address
	Items         []CartItem
	PaymentMethod string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for tenure and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTracerProvider sets the tracer provider used for pricing spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider used for order counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// Service encapsulates order pricing and order management.
type Service struct {
	customers CustomerLookup
	orders    Repository
	now       func() time.Time

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	priced         metric.Int64Counter
	rejected       metric.Int64Counter
}

// NewService creates an order Service with the required collaborators.
func NewService(customers CustomerLookup, orders Repository, opts ...Option) (*Service, error) {
	s := &Service{
		customers:      customers,
		orders:         orders,
		now:            time.Now,
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)

	var err error
	s.priced, err = meter.Int64Counter("bookshop.orders.priced",
		metric.WithDescription("Orders priced successfully"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create priced counter")
	}
	s.rejected, err = meter.Int64Counter("bookshop.orders.rejected",
		metric.WithDescription("Orders rejected by pricing"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create rejected counter")
	}

	return s, nil
}

// Price runs the pricing pipeline: validate the cart, resolve the customer,
// apply the loyalty discount, apply freight on the discounted total and
// compose an order in StatusProcessing. Nothing is persisted.
func (s *Service) Price(ctx context.Context, req PlaceOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Price")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
			s.rejected.Add(ctx, 1, metric.WithAttributes(
				attribute.String("reason", rejectReason(rerr)),
			))
		}
		span.End()
	}()

	if err := validateItems(req.Items); err != nil {
		return nil, err
	}

	c, err := s.customers.FindByID(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, &CustomerNotFoundError{CustomerID: req.CustomerID}
		}
		return nil, errors.Wrap(err, "find customer")
	}

	now := s.now()

	itemTotal := decimal.Zero
	for _, item := range req.Items {
		itemTotal = itemTotal.Add(item.Subtotal())
	}

	tier := loyalty.ClassifyTenure(c.TenureYears(now))
	discount := loyalty.Discount(tier, itemTotal)
	discounted := itemTotal.Sub(discount)

	zone, err := shipping.ClassifyRegion(req.Address.State)
	if err != nil {
		return nil, err
	}
	freight := shipping.Freight(zone, discounted)

	address := req.Address
	address.State = address.Region()

	o := &Order{
		ID:            uuid.New().String(),
		CustomerID:    c.ID,
		Customer:      *c,
		Address:       address,
		Items:         slices.Clone(req.Items),
		ItemTotal:     itemTotal,
		Discount:      discount,
		Freight:       freight,
		Total:         discounted.Add(freight),
		PaymentMethod: req.PaymentMethod,
		LoyaltyTier:   tier,
		ShippingZone:  zone,
		Status:        StatusProcessing,
		CreatedAt:     now,
	}

	attrs := []attribute.KeyValue{
		attribute.String("loyalty_tier", tier.String()),
		attribute.String("shipping_zone", zone.String()),
	}
	span.SetAttributes(attrs...)
	s.priced.Add(ctx, 1, metric.WithAttributes(attrs...))

	return o, nil
}

// PlaceOrder prices the order and persists it.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	o, err := s.Price(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.Int64("customer_id", o.CustomerID),
		zap.Stringer("loyalty_tier", o.LoyaltyTier),
		zap.Stringer("shipping_zone", o.ShippingZone),
		zap.Stringer("total", o.Total),
	)
	return o, nil
}

// Get returns a stored order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", id)
	}
	return o, nil
}

// Transition moves a stored order to a new status if the transition table
// allows it.
func (s *Service) Transition(ctx context.Context, id string, to Status) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", id)
	}

	from := o.Status
	if !CanTransition(from, to) {
		return nil, &TransitionError{OrderID: id, From: from, To: to}
	}
	o.apply(to)

	if err := s.orders.UpdateStatus(ctx, id, from, o.Status); err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, s.staleTransition(ctx, id, from, to)
		}
		return nil, errors.Wrapf(err, "update order %s status", id)
	}

	zctx.From(ctx).Info("Order status changed",
		zap.String("order_id", id),
		zap.Stringer("from", from),
		zap.Stringer("to", o.Status),
	)
	return o, nil
}

// staleTransition reports a transition lost to a concurrent writer against the
// status that writer left behind.
func (s *Service) staleTransition(ctx context.Context, id string, from, to Status) error {
	current := from
	if o, err := s.orders.GetByID(ctx, id); err == nil {
		current = o.Status
	}
	zctx.From(ctx).Warn("Order status changed concurrently",
		zap.String("order_id", id),
		zap.Stringer("expected", from),
		zap.Stringer("current", current),
		zap.Stringer("to", to),
	)
	return &TransitionError{OrderID: id, From: current, To: to}
}

// Profile returns the current loyalty profile of a customer.
func (s *Service) Profile(ctx context.Context, customerID int64) (loyalty.Profile, error) {
	c, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return loyalty.Profile{}, &CustomerNotFoundError{CustomerID: customerID}
		}
		return loyalty.Profile{}, errors.Wrap(err, "find customer")
	}
	return loyalty.ForCustomer(c, s.now()), nil
}

func validateItems(items []CartItem) error {
	if len(items) == 0 {
		return ErrEmptyCart
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return &InvalidItemError{Index: i, Reason: "quantity must be greater than 0"}
		}
		if item.UnitPrice.IsNegative() {
			return &InvalidItemError{Index: i, Reason: "unit price must not be negative"}
		}
	}
	return nil
}

func rejectReason(err error) string {
	var (
		vErr  *ValidationError
		cnErr *CustomerNotFoundError
	)
	switch {
	case errors.As(err, &vErr):
		return "validation"
	case errors.As(err, &cnErr):
		return "customer_not_found"
	case errors.Is(err, shipping.ErrUnrecognizedRegion):
		return "unrecognized_region"
	default:
		return "internal"
	}
}
