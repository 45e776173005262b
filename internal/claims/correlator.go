package claims

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/ids"
	"perp-indexer/internal/observability"
	"perp-indexer/internal/storage"
)

// ErrOrderNotFound is returned when a claim lifecycle event references an order
// that was never created. The event log is out of order; processing must stop.
var ErrOrderNotFound = errors.New("order not found")

// IsFundingFeeSettleOrder reports whether o only settles funding fees:
// a market decrease with a collateral delta of exactly 1 and no size change.
func IsFundingFeeSettleOrder(o *domain.Order) bool {
	if o == nil || o.InitialCollateralDeltaAmount == nil || o.SizeDeltaUsd == nil {
		return false
	}
	return o.InitialCollateralDeltaAmount.Cmp(big.NewInt(1)) == 0 &&
		o.SizeDeltaUsd.Sign() == 0 &&
		o.OrderType == domain.OrderTypeMarketDecrease
}

// Correlator maintains ClaimAction records across a settlement order's
// Created, Cancelled and Executed events.
type Correlator struct {
	store  storage.EntityStore
	ledger *FeeLedger
}

// NewCorrelator creates a Correlator reading pending fees from ledger.
func NewCorrelator(store storage.EntityStore, ledger *FeeLedger) *Correlator {
	return &Correlator{store: store, ledger: ledger}
}

func loadOrCreateClaimAction(ctx context.Context, s storage.EntityStore, txID, account, eventName string) (*domain.ClaimAction, bool, error) {
	action, created, err := storage.LoadOrCreate(ctx, s, ids.ClaimAction(txID, account, eventName),
		func(id string) *domain.ClaimAction {
			return &domain.ClaimAction{
				ID:          id,
				Account:     account,
				EventName:   eventName,
				Transaction: txID,
				Entries:     []domain.ClaimEntry{},
			}
		})
	if err != nil {
		return nil, false, fmt.Errorf("load claim action: %w", err)
	}
	return action, created, nil
}

func (c *Correlator) loadOrder(ctx context.Context, orderKey string) (*domain.Order, error) {
	order, err := storage.Load[domain.Order](ctx, c.store, ids.Order(orderKey))
	if storage.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderKey)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderKey, err)
	}
	return order, nil
}

// IsClaimOrder reports whether orderKey was marked as a settlement order.
func (c *Correlator) IsClaimOrder(ctx context.Context, orderKey string) (bool, error) {
	return storage.Exists(ctx, c.store, domain.KindClaimRef, ids.ClaimRef(orderKey))
}

// OnOrderCreated records the creation of a settlement order. market and isLong
// come from the creation event itself. The order key is marked with a ClaimRef.
func (c *Correlator) OnOrderCreated(ctx context.Context, txID, account, orderKey, market string, isLong bool) (*domain.ClaimAction, error) {
	action, _, err := loadOrCreateClaimAction(ctx, c.store, txID, account, domain.ClaimEventSettleFundingFeeCreated)
	if err != nil {
		return nil, err
	}

	action.Entries = append(action.Entries, domain.ClaimEntry{
		Market: market,
		IsLong: domain.Bool(isLong),
	})
	if err := storage.Save(ctx, c.store, action); err != nil {
		return nil, fmt.Errorf("save claim action: %w", err)
	}
	observability.RecordClaimEntries(action.EventName, 1)

	exists, err := c.IsClaimOrder(ctx, orderKey)
	if err != nil {
		return nil, fmt.Errorf("load claim ref: %w", err)
	}
	if !exists {
		if err := storage.Save(ctx, c.store, &domain.ClaimRef{ID: ids.ClaimRef(orderKey)}); err != nil {
			return nil, fmt.Errorf("save claim ref: %w", err)
		}
	}
	return action, nil
}

// OnOrderCancelled records the cancellation of a settlement order.
// Returns ErrOrderNotFound if the order was never created.
func (c *Correlator) OnOrderCancelled(ctx context.Context, txID, account, orderKey string) (*domain.ClaimAction, error) {
	order, err := c.loadOrder(ctx, orderKey)
	if err != nil {
		return nil, err
	}

	action, _, err := loadOrCreateClaimAction(ctx, c.store, txID, account, domain.ClaimEventSettleFundingFeeCancelled)
	if err != nil {
		return nil, err
	}

	action.Entries = append(action.Entries, domain.ClaimEntry{
		Market: order.Market,
		IsLong: domain.Bool(order.IsLong),
	})
	if err := storage.Save(ctx, c.store, action); err != nil {
		return nil, fmt.Errorf("save claim action: %w", err)
	}
	observability.RecordClaimEntries(action.EventName, 1)
	return action, nil
}

// OnOrderExecuted moves the pending funding fees of (txID, account) into the
// executed claim record, one entry per ledger entry. A missing ledger means no
// fee was pending: the executed record is left without entries.
// Returns ErrOrderNotFound if the order was never created.
func (c *Correlator) OnOrderExecuted(ctx context.Context, txID, account, orderKey string) (*domain.ClaimAction, error) {
	order, err := c.loadOrder(ctx, orderKey)
	if err != nil {
		return nil, err
	}

	action, created, err := loadOrCreateClaimAction(ctx, c.store, txID, account, domain.ClaimEventSettleFundingFeeExecuted)
	if err != nil {
		return nil, err
	}

	info, err := c.ledger.Get(ctx, txID, account)
	if storage.IsNotFound(err) {
		// No ClaimableFundingUpdated was emitted for this position.
		if created {
			if err := storage.Save(ctx, c.store, action); err != nil {
				return nil, fmt.Errorf("save claim action: %w", err)
			}
		}
		return action, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load funding fee info: %w", err)
	}

	for _, fee := range info.Entries {
		action.Entries = append(action.Entries, domain.ClaimEntry{
			Market: order.Market,
			Token:  fee.Token,
			Amount: new(big.Int).Set(fee.Amount),
			IsLong: domain.Bool(order.IsLong),
		})
	}
	if err := storage.Save(ctx, c.store, action); err != nil {
		return nil, fmt.Errorf("save claim action: %w", err)
	}
	observability.RecordClaimEntries(action.EventName, len(info.Entries))
	return action, nil
}
