package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bookshop/internal/domain/loyalty"
	"github.com/xenking/bookshop/internal/domain/order"
	"github.com/xenking/bookshop/internal/domain/shipping"
)

const (
	createOrderSQL = `INSERT INTO orders (id, customer_id, address, items, item_total, discount,
		freight, total, payment_method, loyalty_tier, shipping_zone, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	getOrderByIDSQL = `SELECT o.id, o.customer_id, o.address, o.items, o.item_total, o.discount,
		o.freight, o.total, o.payment_method, o.loyalty_tier, o.shipping_zone, o.status, o.created_at,
		c.id, c.name, c.email, c.enrolled_on
		FROM orders o JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1`

	updateOrderStatusSQL = `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Address and items are serialized to JSON for
// storage in JSONB columns.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	addressJSON, err := json.Marshal(o.Address)
	if err != nil {
		return fmt.Errorf("marshaling order address: %w", err)
	}
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.CustomerID, addressJSON, itemsJSON, o.ItemTotal, o.Discount,
		o.Freight, o.Total, o.PaymentMethod, string(o.LoyaltyTier), string(o.ShippingZone),
		string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// GetByID returns order.ErrNotFound when no row matches.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	if !isUUID(id) {
		return nil, order.ErrNotFound
	}

	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("finding order %q: %w", id, err)
	}
	return &o, nil
}

// UpdateStatus is a compare-and-set on the status column. It returns
// order.ErrNotFound when no row matches and order.ErrStatusChanged when the
// row is no longer in from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) error {
	if !isUUID(id) {
		return order.ErrNotFound
	}

	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", id, err)
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrStatusChanged
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                  order.Order
		addressJSON        []byte
		itemsJSON          []byte
		tier, zone, status string
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &addressJSON, &itemsJSON, &o.ItemTotal, &o.Discount,
		&o.Freight, &o.Total, &o.PaymentMethod, &tier, &zone, &status, &o.CreatedAt,
		&o.Customer.ID, &o.Customer.Name, &o.Customer.Email, &o.Customer.EnrolledAt,
	)
	if err != nil {
		return o, err
	}

	if err := json.Unmarshal(addressJSON, &o.Address); err != nil {
		return o, fmt.Errorf("unmarshaling order address: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	o.LoyaltyTier = loyalty.Tier(tier)
	o.ShippingZone = shipping.Zone(zone)
	o.Status = order.Status(status)
	o.Customer.EnrolledAt = o.Customer.EnrolledAt.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}
