package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bookshop/internal/domain/customer"
)

const (
	customerColumns = `id, name, email, enrolled_on`

	getCustomerByIDSQL    = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	getCustomerByEmailSQL = `SELECT ` + customerColumns + ` FROM customers WHERE LOWER(email) = LOWER($1)`

	insertCustomerSQL = `INSERT INTO customers (name, email, enrolled_on)
		VALUES ($1, $2, $3)
		RETURNING ` + customerColumns

	upsertCustomerSQL = `INSERT INTO customers (id, name, email, enrolled_on)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, enrolled_on = EXCLUDED.enrolled_on
		RETURNING ` + customerColumns

	insertCustomerIgnoreSQL = `INSERT INTO customers (name, email, enrolled_on)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`

	// Explicit ids bypass the sequence; move it past them.
	syncCustomerSeqSQL = `SELECT setval(pg_get_serial_sequence('customers', 'id'),
		GREATEST((SELECT COALESCE(MAX(id), 0) FROM customers), 1))`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// FindByID returns customer.ErrNotFound when no row matches.
func (r *CustomerRepository) FindByID(ctx context.Context, id int64) (*customer.Customer, error) {
	return r.findOne(ctx, getCustomerByIDSQL, id)
}

// FindByEmail looks a customer up by e-mail, ignoring case.
func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	return r.findOne(ctx, getCustomerByEmailSQL, email)
}

func (r *CustomerRepository) findOne(ctx context.Context, query string, arg any) (*customer.Customer, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("finding customer %v: %w", arg, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("finding customer %v: %w", arg, err)
	}
	return &c, nil
}

// Save inserts c, or upserts it when c.ID is set.
func (r *CustomerRepository) Save(ctx context.Context, c *customer.Customer) (*customer.Customer, error) {
	var rows pgx.Rows
	var err error
	if c.ID == 0 {
		rows, err = r.pool.Query(ctx, insertCustomerSQL, c.Name, c.Email, enrolledOn(c.EnrolledAt))
	} else {
		rows, err = r.pool.Query(ctx, upsertCustomerSQL, c.ID, c.Name, c.Email, enrolledOn(c.EnrolledAt))
	}
	if err != nil {
		return nil, fmt.Errorf("saving customer %q: %w", c.Email, err)
	}

	saved, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		return nil, fmt.Errorf("saving customer %q: %w", c.Email, err)
	}

	if c.ID != 0 {
		if _, err := r.pool.Exec(ctx, syncCustomerSeqSQL); err != nil {
			return nil, fmt.Errorf("syncing customer sequence: %w", err)
		}
	}
	return &saved, nil
}

// InsertBatch inserts customers in a single round trip, skipping rows whose
// e-mail already exists. It returns the number of rows inserted.
func (r *CustomerRepository) InsertBatch(ctx context.Context, customers []customer.Customer) (int64, error) {
	batch := &pgx.Batch{}
	for _, c := range customers {
		batch.Queue(insertCustomerIgnoreSQL, c.Name, c.Email, enrolledOn(c.EnrolledAt))
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for range customers {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("inserting customer batch: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// Ping checks database connectivity.
func (r *CustomerRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.EnrolledAt)
	c.EnrolledAt = c.EnrolledAt.UTC()
	return c, err
}

func enrolledOn(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
