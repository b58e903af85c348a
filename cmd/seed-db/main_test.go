package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/bookshop/internal/storage/memory"
)

func TestSeedCustomers_Idempotent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	repo := memory.NewCustomerRepository()

	require.NoError(t, seedCustomers(ctx, zap.NewNop(), repo, now))
	require.NoError(t, seedCustomers(ctx, zap.NewNop(), repo, now))

	for id, years := range map[int64]int{1: 0, 2: 2, 3: 4, 4: 7} {
		c, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, years, c.TenureYears(now), c.Name)
	}

	next, err := repo.Save(ctx, &memory.DemoCustomers(now)[0])
	require.NoError(t, err)
	assert.Equal(t, int64(1), next.ID, "explicit ids are upserted")
}
