package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/catalog"
	"ms-grouporder/internal/database"
)

func setupStore(t *testing.T) *Store {
	ctx := context.Background()
	db, err := database.OpenInMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = catalog.NewStore(db).Seed(ctx)
	require.NoError(t, err)
	return NewStore(db)
}

func TestAdd_MergesSameProduct(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "u1", "prod-milk", 2))
	require.NoError(t, s.Add(ctx, "u1", "prod-milk", 3))
	require.NoError(t, s.Add(ctx, "u1", "prod-bread", 1))

	items, err := s.ListItems(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "prod-milk", items[0].ProductID)
	assert.Equal(t, 5, items[0].Quantity)
	require.NotNil(t, items[0].Product)
	assert.Equal(t, 60.0, items[0].Product.Price)

	sum, err := s.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 6, sum.TotalItems)
	assert.InDelta(t, 5*60+45, sum.TotalAmount, 1e-9)
}

func TestAdd_RejectsNonPositive(t *testing.T) {
	s := setupStore(t)
	err := s.Add(context.Background(), "u1", "prod-milk", 0)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestUpdateQuantity(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "u1", "prod-milk", 2))

	require.NoError(t, s.UpdateQuantity(ctx, "u1", "prod-milk", 7))
	items, err := s.ListItems(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Quantity)

	require.NoError(t, s.UpdateQuantity(ctx, "u1", "prod-milk", 0))
	items, err = s.ListItems(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)

	err = s.UpdateQuantity(ctx, "u1", "prod-eggs", 3)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestClear_OnlyAffectsOwner(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "u1", "prod-milk", 1))
	require.NoError(t, s.Add(ctx, "u2", "prod-milk", 1))

	require.NoError(t, s.Clear(ctx, "u1"))

	mine, err := s.ListItems(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, mine)
	theirs, err := s.ListItems(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestSummary_IgnoresMissingProducts(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.RestoreOrAdd(ctx, "u1", "prod-gone", 4))
	require.NoError(t, s.Add(ctx, "u1", "prod-chips", 2))

	sum, err := s.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalItems)
	assert.InDelta(t, 40.0, sum.TotalAmount, 1e-9)
}
