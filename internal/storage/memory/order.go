package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/bookshop/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository is a concurrency-safe in-memory order.Repository.
type OrderRepository struct {
	mu   sync.RWMutex
	byID map[string]order.Order
}

// NewOrderRepository returns an empty OrderRepository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{byID: make(map[string]order.Order)}
}

// Create stores a copy of o.
func (r *OrderRepository) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[o.ID] = clone(*o)
	return nil
}

// GetByID returns a copy of the stored order.
func (r *OrderRepository) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o = clone(o)
	return &o, nil
}

// UpdateStatus sets the status of a stored order if it is still from.
func (r *OrderRepository) UpdateStatus(_ context.Context, id string, from, to order.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.byID[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status != from {
		return order.ErrStatusChanged
	}
	o.Status = to
	r.byID[id] = o
	return nil
}

func clone(o order.Order) order.Order {
	o.Items = slices.Clone(o.Items)
	return o
}
