package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bookshop/internal/domain/customer"
	"github.com/xenking/bookshop/internal/domain/loyalty"
	"github.com/xenking/bookshop/internal/domain/order"
)

func TestCustomerRepository_SaveAssignsID(t *testing.T) {
	ctx := context.Background()
	repo := NewCustomerRepository()

	first, err := repo.Save(ctx, &customer.Customer{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)

	_, err = repo.Save(ctx, &customer.Customer{ID: 10, Name: "B", Email: "b@example.com"})
	require.NoError(t, err)

	next, err := repo.Save(ctx, &customer.Customer{Name: "C", Email: "c@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), next.ID)

	got, err := repo.FindByID(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, "C", got.Name)
}

func TestCustomerRepository_NotFound(t *testing.T) {
	_, err := NewCustomerRepository().FindByID(context.Background(), 7)
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func TestCustomerRepository_ReturnsSnapshots(t *testing.T) {
	ctx := context.Background()
	repo := NewCustomerRepository()
	_, err := repo.Save(ctx, &customer.Customer{ID: 1, Name: "A", Email: "a@example.com"})
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	got.Name = "changed"

	again, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", again.Name)
}

func TestCustomerRepository_ConcurrentSave(t *testing.T) {
	ctx := context.Background()
	repo := NewCustomerRepository()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Save(ctx, &customer.Customer{Name: "x", Email: "x@example.com"})
		}()
	}
	wg.Wait()

	c, err := repo.FindByID(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), c.ID)
}

func TestDemoCustomers_CoverEveryTier(t *testing.T) {
	now := time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)
	want := []loyalty.Tier{loyalty.TierBasic, loyalty.TierBronze, loyalty.TierSilver, loyalty.TierGold}

	demo := DemoCustomers(now)
	require.Len(t, demo, len(want))
	for i, c := range demo {
		assert.Equal(t, int64(i+1), c.ID)
		assert.Equal(t, want[i], loyalty.ForCustomer(&c, now).Tier, c.Name)
		assert.NoError(t, c.Validate(now))
	}
}

func TestOrderRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()

	o := &order.Order{
		ID:     "o1",
		Items:  []order.CartItem{{Title: "a", Quantity: 1, UnitPrice: decimal.NewFromInt(5)}},
		Status: order.StatusProcessing,
	}
	require.NoError(t, repo.Create(ctx, o))

	o.Items[0].Quantity = 3
	got, err := repo.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Items[0].Quantity)

	require.NoError(t, repo.UpdateStatus(ctx, "o1", order.StatusProcessing, order.StatusConfirmed))
	got, err = repo.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)

	err = repo.UpdateStatus(ctx, "o1", order.StatusProcessing, order.StatusCancelled)
	require.ErrorIs(t, err, order.ErrStatusChanged)
	got, err = repo.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, order.ErrNotFound)
	require.ErrorIs(t, repo.UpdateStatus(ctx, "missing", order.StatusProcessing, order.StatusConfirmed), order.ErrNotFound)
}

func TestOrderRepository_ConcurrentTerminalTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	require.NoError(t, repo.Create(ctx, &order.Order{ID: "o1", Status: order.StatusConfirmed}))

	svc, err := order.NewService(NewCustomerRepository(), repo)
	require.NoError(t, err)

	targets := []order.Status{order.StatusDelivered, order.StatusCancelled}
	errs := make([]error, len(targets))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, to := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Transition(ctx, "o1", to)
		}()
	}
	close(start)
	wg.Wait()

	got, err := repo.GetByID(ctx, "o1")
	require.NoError(t, err)

	var succeeded int
	for i, err := range errs {
		if err == nil {
			succeeded++
			assert.Equal(t, targets[i], got.Status)
			continue
		}
		require.ErrorIs(t, err, order.ErrInvalidTransition)
	}
	assert.Equal(t, 1, succeeded)
}
