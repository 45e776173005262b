// Package storagetest holds behavior tests shared by every EntityStore backend.
package storagetest

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/storage"
)

// Factory returns an empty store for the named chain. Calls with different
// chains must yield isolated namespaces.
type Factory func(t *testing.T, chain string) storage.EntityStore

// Run exercises the EntityStore contract against a backend.
func Run(t *testing.T, newStore Factory) {
	t.Run("SaveAndLoad", func(t *testing.T) { testSaveAndLoad(t, newStore) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore) })
	t.Run("Upsert", func(t *testing.T) { testUpsert(t, newStore) })
	t.Run("KindsAreSeparate", func(t *testing.T) { testKindsAreSeparate(t, newStore) })
	t.Run("ChainsAreSeparate", func(t *testing.T) { testChainsAreSeparate(t, newStore) })
	t.Run("InvalidInput", func(t *testing.T) { testInvalidInput(t, newStore) })
	t.Run("Snapshot", func(t *testing.T) { testSnapshot(t, newStore) })
	t.Run("LargeIntegers", func(t *testing.T) { testLargeIntegers(t, newStore) })
}

func testSaveAndLoad(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, t.Name())

	require.NoError(t, s.Save(ctx, domain.KindClaimRef, "0xkey", []byte(`{"id":"0xkey"}`)))

	ref, err := storage.Load[domain.ClaimRef](ctx, s, "0xkey")
	require.NoError(t, err)
	assert.Equal(t, "0xkey", ref.ID)
}

func testNotFound(t *testing.T, newStore Factory) {
	s := newStore(t, t.Name())
	_, err := s.Load(context.Background(), domain.KindOrder, "0xmissing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUpsert(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, t.Name())

	order := &domain.Order{ID: "0xo", Status: domain.OrderStatusCreated}
	require.NoError(t, storage.Save(ctx, s, order))
	order.Status = domain.OrderStatusExecuted
	order.ExecutedTxn = "0xtx"
	require.NoError(t, storage.Save(ctx, s, order))

	got, err := storage.Load[domain.Order](ctx, s, "0xo")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusExecuted, got.Status)
	assert.Equal(t, "0xtx", got.ExecutedTxn)
}

func testKindsAreSeparate(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, t.Name())

	require.NoError(t, storage.Save(ctx, s, &domain.ClaimRef{ID: "0xk"}))
	exists, err := storage.Exists(ctx, s, domain.KindOrder, "0xk")
	require.NoError(t, err)
	assert.False(t, exists)
}

func testChainsAreSeparate(t *testing.T, newStore Factory) {
	ctx := context.Background()
	a := newStore(t, t.Name()+"_a")
	b := newStore(t, t.Name()+"_b")

	require.NoError(t, storage.Save(ctx, a, &domain.ClaimRef{ID: "0xk"}))
	exists, err := storage.Exists(ctx, b, domain.KindClaimRef, "0xk")
	require.NoError(t, err)
	assert.False(t, exists)
}

func testInvalidInput(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, t.Name())

	assert.ErrorIs(t, s.Save(ctx, domain.KindOrder, "", []byte(`{}`)), storage.ErrInvalidInput)
	_, err := s.Load(ctx, domain.KindOrder, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func testSnapshot(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, t.Name())

	snapper, ok := s.(storage.Snapshotter)
	if !ok {
		t.Skip("store does not support snapshots")
	}

	require.NoError(t, storage.Save(ctx, s, &domain.ClaimRef{ID: "0x1"}))
	require.NoError(t, storage.Save(ctx, s, &domain.ClaimRef{ID: "0x2"}))
	require.NoError(t, storage.Save(ctx, s, &domain.AppliedEvent{ID: "0xtx:0", Name: "OrderCreated"}))

	snap, err := snapper.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Count())
	assert.Len(t, snap[domain.KindClaimRef], 2)
	assert.Contains(t, snap[domain.KindAppliedEvent], "0xtx:0")
}

func testLargeIntegers(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, t.Name())

	price, ok := new(big.Int).SetString("1234567890123456789012345678901234567890", 10)
	require.True(t, ok)
	require.NoError(t, storage.Save(ctx, s, &domain.TokenPrice{ID: "0xt", MinPrice: price, MaxPrice: price, UpdatedAt: 1}))

	got, err := storage.Load[domain.TokenPrice](ctx, s, "0xt")
	require.NoError(t, err)
	assert.Equal(t, 0, price.Cmp(got.MaxPrice))
}
