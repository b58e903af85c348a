// Package memory provides in-process customer and order stores, used when no
// database is configured and as deterministic doubles in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xenking/bookshop/internal/domain/customer"
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository is a concurrency-safe in-memory customer.Repository.
type CustomerRepository struct {
	mu     sync.RWMutex
	byID   map[int64]customer.Customer
	lastID int64
}

// NewCustomerRepository returns an empty CustomerRepository.
func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{byID: make(map[int64]customer.Customer)}
}

// DemoCustomers returns the four demo customers, one per loyalty tier, with
// enrollment dates relative to now.
func DemoCustomers(now time.Time) []customer.Customer {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return []customer.Customer{
		{ID: 1, Name: "Basic Customer", Email: "basic@example.com", EnrolledAt: today.AddDate(0, -6, 0)},
		{ID: 2, Name: "Bronze Customer", Email: "bronze@example.com", EnrolledAt: today.AddDate(-2, 0, 0)},
		{ID: 3, Name: "Silver Customer", Email: "silver@example.com", EnrolledAt: today.AddDate(-4, 0, 0)},
		{ID: 4, Name: "Gold Customer", Email: "gold@example.com", EnrolledAt: today.AddDate(-7, 0, 0)},
	}
}

// FindByID returns a copy of the stored customer.
func (r *CustomerRepository) FindByID(_ context.Context, id int64) (*customer.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return &c, nil
}

// Save stores a copy of c. A zero ID is replaced by the highest known ID + 1.
func (r *CustomerRepository) Save(_ context.Context, c *customer.Customer) (*customer.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *c
	if stored.ID == 0 {
		stored.ID = r.lastID + 1
	}
	r.lastID = max(r.lastID, stored.ID)
	r.byID[stored.ID] = stored

	return &stored, nil
}

// Ping always succeeds; it lets the store back a readiness check.
func (r *CustomerRepository) Ping(context.Context) error {
	return nil
}
