// Package claims builds funding-fee and collateral claim records by joining
// order lifecycle events with pending funding-fee deltas.
package claims

import (
	"context"
	"fmt"
	"math/big"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/ids"
	"perp-indexer/internal/storage"
)

// FeeLedger buffers claimable funding-fee deltas per (transaction, account).
// Entries are only ever appended; the correlator reads them at execution time.
type FeeLedger struct {
	store storage.EntityStore
}

// NewFeeLedger creates a FeeLedger.
func NewFeeLedger(store storage.EntityStore) *FeeLedger {
	return &FeeLedger{store: store}
}

// Append adds one (market, token, delta) entry to the ledger of (txID, account).
func (l *FeeLedger) Append(ctx context.Context, txID, account, market, token string, delta *big.Int) (*domain.ClaimableFundingFeeInfo, error) {
	info, _, err := storage.LoadOrCreate(ctx, l.store, ids.FundingFeeInfo(txID, account),
		func(id string) *domain.ClaimableFundingFeeInfo {
			return &domain.ClaimableFundingFeeInfo{ID: id, Entries: []domain.FundingFeeEntry{}}
		})
	if err != nil {
		return nil, fmt.Errorf("load funding fee info: %w", err)
	}

	info.Entries = append(info.Entries, domain.FundingFeeEntry{
		Market: market,
		Token:  token,
		Amount: new(big.Int).Set(delta),
	})

	if err := storage.Save(ctx, l.store, info); err != nil {
		return nil, fmt.Errorf("save funding fee info: %w", err)
	}
	return info, nil
}

// Get returns the ledger of (txID, account). Returns storage.ErrNotFound if
// no delta was recorded.
func (l *FeeLedger) Get(ctx context.Context, txID, account string) (*domain.ClaimableFundingFeeInfo, error) {
	return storage.Load[domain.ClaimableFundingFeeInfo](ctx, l.store, ids.FundingFeeInfo(txID, account))
}
