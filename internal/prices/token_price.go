// Package prices maintains the latest token prices and OHLC candles built
// from oracle price ticks.
package prices

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/storage"
)

// Direction selects the conversion applied by Convert.
type Direction int

// Conversion directions.
const (
	UsdToAmount Direction = iota // value / price
	AmountToUsd                  // value * price
)

func (d Direction) String() string {
	switch d {
	case UsdToAmount:
		return "usdToAmount"
	case AmountToUsd:
		return "amountToUsd"
	default:
		return "unknown"
	}
}

// TokenPriceStore keeps the last observed tick per token.
type TokenPriceStore struct {
	store storage.EntityStore
}

// NewTokenPriceStore creates a TokenPriceStore on top of an entity store.
func NewTokenPriceStore(store storage.EntityStore) *TokenPriceStore {
	return &TokenPriceStore{store: store}
}

// RecordTick overwrites the stored price for token. Last write wins.
func (s *TokenPriceStore) RecordTick(ctx context.Context, token string, minPrice, maxPrice *big.Int, timestamp int64) error {
	price := &domain.TokenPrice{
		ID:        token,
		MinPrice:  new(big.Int).Set(minPrice),
		MaxPrice:  new(big.Int).Set(maxPrice),
		UpdatedAt: timestamp,
	}
	if err := storage.Save(ctx, s.store, price); err != nil {
		return fmt.Errorf("save token price %s: %w", token, err)
	}
	return nil
}

// Price returns the max (ask) or min (bid) price of token.
// A token without any tick has price zero; that is not an error.
func (s *TokenPriceStore) Price(ctx context.Context, token string, useMax bool) (*big.Int, error) {
	p, err := storage.Load[domain.TokenPrice](ctx, s.store, token)
	if errors.Is(err, storage.ErrNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load token price %s: %w", token, err)
	}

	side := p.MinPrice
	if useMax {
		side = p.MaxPrice
	}
	if side == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(side), nil
}

// Convert converts value with the selected side of the token price.
// UsdToAmount returns zero when the price is zero instead of dividing by it.
func (s *TokenPriceStore) Convert(ctx context.Context, token string, value *big.Int, useMax bool, dir Direction) (*big.Int, error) {
	price, err := s.Price(ctx, token, useMax)
	if err != nil {
		return nil, err
	}

	switch dir {
	case UsdToAmount:
		if price.Sign() == 0 {
			return new(big.Int), nil
		}
		return new(big.Int).Quo(value, price), nil
	case AmountToUsd:
		return new(big.Int).Mul(value, price), nil
	default:
		return nil, fmt.Errorf("unknown conversion direction %d", dir)
	}
}

// UsdToAmount converts a USD value into token units using the max price.
func (s *TokenPriceStore) UsdToAmount(ctx context.Context, token string, usd *big.Int) (*big.Int, error) {
	return s.Convert(ctx, token, usd, true, UsdToAmount)
}

// AmountToUsd converts token units into a USD value using the min price.
func (s *TokenPriceStore) AmountToUsd(ctx context.Context, token string, amount *big.Int) (*big.Int, error) {
	return s.Convert(ctx, token, amount, false, AmountToUsd)
}
