package prices

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-indexer/internal/storage/memory"
)

func TestTokenPriceStore_UnknownTokenIsZero(t *testing.T) {
	s := NewTokenPriceStore(memory.NewEntityStore())
	ctx := context.Background()

	p, err := s.Price(ctx, tokenA, true)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Sign())

	amount, err := s.UsdToAmount(ctx, tokenA, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, 0, amount.Sign())

	usd, err := s.AmountToUsd(ctx, tokenA, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, 0, usd.Sign())
}

func TestTokenPriceStore_LastWriteWins(t *testing.T) {
	s := NewTokenPriceStore(memory.NewEntityStore())
	ctx := context.Background()

	require.NoError(t, s.RecordTick(ctx, tokenA, big.NewInt(9), big.NewInt(11), 100))
	require.NoError(t, s.RecordTick(ctx, tokenA, big.NewInt(19), big.NewInt(21), 50))

	minP, err := s.Price(ctx, tokenA, false)
	require.NoError(t, err)
	maxP, err := s.Price(ctx, tokenA, true)
	require.NoError(t, err)

	assert.Equal(t, int64(19), minP.Int64())
	assert.Equal(t, int64(21), maxP.Int64())
}

func TestTokenPriceStore_Convert(t *testing.T) {
	s := NewTokenPriceStore(memory.NewEntityStore())
	ctx := context.Background()
	require.NoError(t, s.RecordTick(ctx, tokenA, big.NewInt(4), big.NewInt(5), 1))

	tests := []struct {
		name   string
		value  int64
		useMax bool
		dir    Direction
		want   int64
	}{
		{"usd to amount with max", 100, true, UsdToAmount, 20},
		{"usd to amount with min", 100, false, UsdToAmount, 25},
		{"usd to amount truncates", 99, true, UsdToAmount, 19},
		{"amount to usd with min", 3, false, AmountToUsd, 12},
		{"amount to usd with max", 3, true, AmountToUsd, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Convert(ctx, tokenA, big.NewInt(tt.value), tt.useMax, tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestTokenPriceStore_DefaultSides(t *testing.T) {
	s := NewTokenPriceStore(memory.NewEntityStore())
	ctx := context.Background()
	require.NoError(t, s.RecordTick(ctx, tokenA, big.NewInt(4), big.NewInt(5), 1))

	amount, err := s.UsdToAmount(ctx, tokenA, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(20), amount.Int64(), "usd to amount uses max price")

	usd, err := s.AmountToUsd(ctx, tokenA, big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, int64(40), usd.Int64(), "amount to usd uses min price")
}

func TestTokenPriceStore_ZeroPriceNeverDivides(t *testing.T) {
	s := NewTokenPriceStore(memory.NewEntityStore())
	ctx := context.Background()
	require.NoError(t, s.RecordTick(ctx, tokenA, big.NewInt(0), big.NewInt(0), 1))

	got, err := s.UsdToAmount(ctx, tokenA, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, 0, got.Sign())
}
