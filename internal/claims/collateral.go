package claims

import (
	"context"
	"fmt"
	"math/big"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/events"
	"perp-indexer/internal/ids"
	"perp-indexer/internal/observability"
	"perp-indexer/internal/storage"
)

// CollateralEventName maps a collateral claim event to the claim record event name.
// ok is false for events that are not collateral claims.
func CollateralEventName(event string) (name string, ok bool) {
	switch event {
	case events.NameFundingFeesClaimed:
		return domain.ClaimEventClaimFunding, true
	case events.NameCollateralClaimed:
		return domain.ClaimEventClaimPriceImpact, true
	default:
		return "", false
	}
}

// CollateralRecorder appends collateral claims to both the ClaimCollateralAction
// and the ClaimAction keyed by (transaction, account, eventName).
type CollateralRecorder struct {
	store storage.EntityStore
}

// NewCollateralRecorder creates a CollateralRecorder.
func NewCollateralRecorder(store storage.EntityStore) *CollateralRecorder {
	return &CollateralRecorder{store: store}
}

// Record appends one (market, token, amount) entry to both records.
func (r *CollateralRecorder) Record(ctx context.Context, txID, eventName, account, market, token string, amount *big.Int) error {
	id := ids.ClaimAction(txID, account, eventName)

	collateral, _, err := storage.LoadOrCreate(ctx, r.store, id, func(id string) *domain.ClaimCollateralAction {
		return &domain.ClaimCollateralAction{
			ID:          id,
			Account:     account,
			EventName:   eventName,
			Transaction: txID,
			Entries:     []domain.ClaimEntry{},
		}
	})
	if err != nil {
		return fmt.Errorf("load claim collateral action: %w", err)
	}

	action, _, err := loadOrCreateClaimAction(ctx, r.store, txID, account, eventName)
	if err != nil {
		return err
	}

	entry := domain.ClaimEntry{Market: market, Token: token, Amount: new(big.Int).Set(amount)}
	collateral.Entries = append(collateral.Entries, entry)
	entry.Amount = new(big.Int).Set(amount)
	action.Entries = append(action.Entries, entry)

	if err := storage.Save(ctx, r.store, collateral); err != nil {
		return fmt.Errorf("save claim collateral action: %w", err)
	}
	if err := storage.Save(ctx, r.store, action); err != nil {
		return fmt.Errorf("save claim action: %w", err)
	}
	observability.RecordClaimEntries(eventName, 1)
	return nil
}
