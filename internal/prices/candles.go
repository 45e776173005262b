package prices

import (
	"context"
	"fmt"
	"math/big"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/ids"
	"perp-indexer/internal/observability"
	"perp-indexer/internal/storage"
)

// CandleAggregator maintains OHLC candles for every configured resolution.
// Each resolution is an independent state machine fed by the same ticks.
type CandleAggregator struct {
	store       storage.EntityStore
	resolutions []domain.Resolution
}

// NewCandleAggregator creates an aggregator for the given resolutions
// (all supported resolutions when none are given). An unsupported
// resolution is a configuration error.
func NewCandleAggregator(store storage.EntityStore, resolutions ...domain.Resolution) (*CandleAggregator, error) {
	if len(resolutions) == 0 {
		resolutions = domain.Resolutions
	}
	for _, r := range resolutions {
		if _, err := r.Seconds(); err != nil {
			return nil, err
		}
	}
	return &CandleAggregator{
		store:       store,
		resolutions: append([]domain.Resolution(nil), resolutions...),
	}, nil
}

// Resolutions returns the configured resolutions.
func (a *CandleAggregator) Resolutions() []domain.Resolution {
	return append([]domain.Resolution(nil), a.resolutions...)
}

// OnTick feeds one tick price into every configured resolution.
func (a *CandleAggregator) OnTick(ctx context.Context, token string, price *big.Int, timestamp int64) error {
	for _, r := range a.resolutions {
		if _, err := a.Update(ctx, token, r, price, timestamp); err != nil {
			return err
		}
	}
	return nil
}

// Update applies one tick to the candle of (token, res) containing timestamp
// and returns the updated candle.
//
// A new bucket opens at the close of the immediately preceding bucket when
// that bucket exists, otherwise at the tick price. Gaps are not back-filled.
func (a *CandleAggregator) Update(ctx context.Context, token string, res domain.Resolution, price *big.Int, timestamp int64) (*domain.Candle, error) {
	secs, err := res.Seconds()
	if err != nil {
		return nil, err
	}
	bucket := (timestamp / secs) * secs

	candle, created, err := storage.LoadOrCreate(ctx, a.store, ids.Candle(token, res, bucket),
		func(id string) *domain.Candle {
			return &domain.Candle{ID: id, Token: token, Period: res, Timestamp: bucket}
		})
	if err != nil {
		return nil, fmt.Errorf("load candle: %w", err)
	}

	if created {
		open := new(big.Int).Set(price)
		prev, err := storage.Load[domain.Candle](ctx, a.store, ids.Candle(token, res, bucket-secs))
		switch {
		case err == nil:
			open.Set(prev.Close)
		case !storage.IsNotFound(err):
			return nil, fmt.Errorf("load previous candle: %w", err)
		}
		candle.Open = open
		candle.Close = new(big.Int).Set(price)
		candle.High = maxInt(candle.Open, candle.Close)
		candle.Low = minInt(candle.Open, candle.Close)
	} else {
		candle.High = maxInt(candle.High, price)
		candle.Low = minInt(candle.Low, price)
		candle.Close = new(big.Int).Set(price)
	}

	if err := storage.Save(ctx, a.store, candle); err != nil {
		return nil, fmt.Errorf("save candle: %w", err)
	}
	observability.RecordCandleUpdate(string(res), created)
	return candle, nil
}

func maxInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func minInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
