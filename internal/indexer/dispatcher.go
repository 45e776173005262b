// Package indexer routes decoded events to the read-model handlers.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"perp-indexer/internal/claims"
	"perp-indexer/internal/domain"
	"perp-indexer/internal/events"
	"perp-indexer/internal/ids"
	"perp-indexer/internal/logging"
	"perp-indexer/internal/observability"
	"perp-indexer/internal/orders"
	"perp-indexer/internal/prices"
	"perp-indexer/internal/storage"
)

// Handler consumes events in chain order.
type Handler interface {
	Handle(ctx context.Context, e *events.Event) error
}

type handlerFunc func(ctx context.Context, e *events.Event) error

// Options configures a Dispatcher.
type Options struct {
	Chain       string              // label for logs and metrics
	Dedupe      bool                // skip events already applied to the store
	Resolutions []domain.Resolution // candle resolutions; empty means all
	Logger      log.FieldLogger
}

// DefaultOptions returns options with de-duplication enabled and all resolutions.
func DefaultOptions(chain string) Options {
	return Options{Chain: chain, Dedupe: true}
}

// Dispatcher applies each event to the entity store through its handler.
// Dispatcher is not safe for concurrent use: one chain, one stream, one goroutine.
type Dispatcher struct {
	chain  string
	dedupe bool
	store  storage.EntityStore
	logger log.FieldLogger

	prices     *prices.TokenPriceStore
	candles    *prices.CandleAggregator
	ledger     *claims.FeeLedger
	correlator *claims.Correlator
	collateral *claims.CollateralRecorder
	orders     *orders.Writer

	handlers map[string]handlerFunc
}

// NewDispatcher wires all handlers over store.
func NewDispatcher(store storage.EntityStore, opts Options) (*Dispatcher, error) {
	if opts.Chain == "" {
		opts.Chain = "default"
	}
	logger := logging.Component(opts.Logger, "dispatcher").WithField("chain", opts.Chain)

	candles, err := prices.NewCandleAggregator(store, opts.Resolutions...)
	if err != nil {
		return nil, err
	}
	ledger := claims.NewFeeLedger(store)

	d := &Dispatcher{
		chain:      opts.Chain,
		dedupe:     opts.Dedupe,
		store:      store,
		logger:     logger,
		prices:     prices.NewTokenPriceStore(store),
		candles:    candles,
		ledger:     ledger,
		correlator: claims.NewCorrelator(store, ledger),
		collateral: claims.NewCollateralRecorder(store),
		orders:     orders.NewWriter(store, logger),
	}
	d.handlers = map[string]handlerFunc{
		events.NameOraclePriceUpdate:             d.onOraclePriceUpdate,
		events.NameClaimableFundingUpdated:       d.onClaimableFundingUpdated,
		events.NameOrderCreated:                  d.onOrderCreated,
		events.NameOrderCancelled:                d.onOrderCancelled,
		events.NameOrderExecuted:                 d.onOrderExecuted,
		events.NameFundingFeesClaimed:            d.onCollateralClaim,
		events.NameCollateralClaimed:             d.onCollateralClaim,
		events.NamePositionImpactPoolDistributed: d.onPositionImpactPoolDistributed,
	}
	return d, nil
}

// Chain returns the chain label.
func (d *Dispatcher) Chain() string { return d.chain }

// Store returns the underlying entity store.
func (d *Dispatcher) Store() storage.EntityStore { return d.store }

// Prices returns the token price store used by the dispatcher.
func (d *Dispatcher) Prices() *prices.TokenPriceStore { return d.prices }

// Handle applies one event. Unknown event names are ignored. Returned errors
// are fatal for the stream: the event log is inconsistent or the store failed.
func (d *Dispatcher) Handle(ctx context.Context, e *events.Event) error {
	h, ok := d.handlers[e.Name]
	if !ok {
		d.logger.WithField("event", e.Name).Debug("ignoring unhandled event")
		observability.RecordEventSkipped(d.chain, "unhandled")
		return nil
	}

	eventID := e.ID()
	if d.dedupe {
		applied, err := storage.Exists(ctx, d.store, domain.KindAppliedEvent, eventID)
		if err != nil {
			return fmt.Errorf("check applied event %s: %w", eventID, err)
		}
		if applied {
			d.logger.WithFields(log.Fields{"event": e.Name, "id": eventID}).Debug("skipping applied event")
			observability.RecordEventSkipped(d.chain, "duplicate")
			return nil
		}
	}

	start := time.Now()
	if err := h(ctx, e); err != nil {
		observability.RecordEventError(d.chain, e.Name, errorType(err))
		d.logger.WithFields(log.Fields{
			"event": e.Name,
			"id":    eventID,
			"block": e.BlockNumber,
		}).WithError(err).Error("event handler failed")
		return fmt.Errorf("%s %s: %w", e.Name, eventID, err)
	}

	if d.dedupe {
		marker := &domain.AppliedEvent{ID: eventID, Name: e.Name, BlockNumber: e.BlockNumber}
		if err := storage.Save(ctx, d.store, marker); err != nil {
			return fmt.Errorf("mark applied event %s: %w", eventID, err)
		}
	}

	observability.RecordEventProcessed(d.chain, e.Name, time.Since(start).Seconds(), e.BlockTimestamp)
	observability.UpdateHighestBlock(d.chain, e.BlockNumber)
	return nil
}

// HandleAll applies events in order and stops at the first error.
func (d *Dispatcher) HandleAll(ctx context.Context, evs []*events.Event) error {
	for _, e := range evs {
		if err := d.Handle(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// getOrCreateTransaction returns the Transaction referenced by e, saving it on first use.
func (d *Dispatcher) getOrCreateTransaction(ctx context.Context, e *events.Event) (*domain.Transaction, error) {
	tx, created, err := storage.LoadOrCreate(ctx, d.store, ids.Transaction(e.TxHash), func(id string) *domain.Transaction {
		return &domain.Transaction{
			ID:               id,
			Hash:             id,
			Timestamp:        e.BlockTimestamp,
			BlockNumber:      e.BlockNumber,
			TransactionIndex: e.TxIndex,
			From:             e.From,
			To:               e.To,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if created {
		if err := storage.Save(ctx, d.store, tx); err != nil {
			return nil, fmt.Errorf("save transaction: %w", err)
		}
	}
	return tx, nil
}

func (d *Dispatcher) onOraclePriceUpdate(ctx context.Context, e *events.Event) error {
	v, err := events.ParseOraclePriceUpdate(e)
	if err != nil {
		return err
	}
	if err := d.candles.OnTick(ctx, v.Token, v.MaxPrice, v.Timestamp); err != nil {
		return err
	}
	return d.prices.RecordTick(ctx, v.Token, v.MinPrice, v.MaxPrice, v.Timestamp)
}

func (d *Dispatcher) onClaimableFundingUpdated(ctx context.Context, e *events.Event) error {
	v, err := events.ParseClaimableFundingUpdated(e)
	if err != nil {
		return err
	}
	tx, err := d.getOrCreateTransaction(ctx, e)
	if err != nil {
		return err
	}
	_, err = d.ledger.Append(ctx, tx.ID, v.Account, v.Market, v.Token, v.Delta)
	return err
}

func (d *Dispatcher) onOrderCreated(ctx context.Context, e *events.Event) error {
	v, err := events.ParseOrderCreated(e)
	if err != nil {
		return err
	}
	tx, err := d.getOrCreateTransaction(ctx, e)
	if err != nil {
		return err
	}
	order, err := d.orders.Create(ctx, tx.ID, v)
	if err != nil {
		return err
	}
	if !claims.IsFundingFeeSettleOrder(order) {
		return nil
	}
	_, err = d.correlator.OnOrderCreated(ctx, tx.ID, v.Account, v.Key, v.Market, v.IsLong)
	return err
}

func (d *Dispatcher) onOrderCancelled(ctx context.Context, e *events.Event) error {
	v, err := events.ParseOrderUpdate(e)
	if err != nil {
		return err
	}
	tx, err := d.getOrCreateTransaction(ctx, e)
	if err != nil {
		return err
	}
	isClaim, err := d.correlator.IsClaimOrder(ctx, v.Key)
	if err != nil {
		return err
	}
	if isClaim {
		if _, err := d.correlator.OnOrderCancelled(ctx, tx.ID, v.Account, v.Key); err != nil {
			return err
		}
	}
	if _, err := d.orders.Cancel(ctx, tx.ID, v.Key); err != nil && !errors.Is(err, orders.ErrUnknownOrder) {
		return err
	}
	return nil
}

func (d *Dispatcher) onOrderExecuted(ctx context.Context, e *events.Event) error {
	v, err := events.ParseOrderUpdate(e)
	if err != nil {
		return err
	}
	tx, err := d.getOrCreateTransaction(ctx, e)
	if err != nil {
		return err
	}
	isClaim, err := d.correlator.IsClaimOrder(ctx, v.Key)
	if err != nil {
		return err
	}
	if isClaim {
		if _, err := d.correlator.OnOrderExecuted(ctx, tx.ID, v.Account, v.Key); err != nil {
			return err
		}
	}
	if _, err := d.orders.Execute(ctx, tx.ID, v.Key); err != nil && !errors.Is(err, orders.ErrUnknownOrder) {
		return err
	}
	return nil
}

func (d *Dispatcher) onCollateralClaim(ctx context.Context, e *events.Event) error {
	eventName, ok := claims.CollateralEventName(e.Name)
	if !ok {
		return nil
	}
	v, err := events.ParseCollateralClaim(e)
	if err != nil {
		return err
	}
	tx, err := d.getOrCreateTransaction(ctx, e)
	if err != nil {
		return err
	}
	return d.collateral.Record(ctx, tx.ID, eventName, v.Account, v.Market, v.Token, v.Amount)
}

func (d *Dispatcher) onPositionImpactPoolDistributed(ctx context.Context, e *events.Event) error {
	v, err := events.ParsePositionImpactPoolDistributed(e)
	if err != nil {
		return err
	}
	tx, err := d.getOrCreateTransaction(ctx, e)
	if err != nil {
		return err
	}
	return storage.Save(ctx, d.store, &domain.PositionImpactPoolDistribution{
		ID:                           e.ID(),
		Market:                       v.Market,
		DistributionAmount:           v.DistributionAmount,
		NextPositionImpactPoolAmount: v.NextPositionImpactPoolAmount,
		Transaction:                  tx.ID,
		Timestamp:                    tx.Timestamp,
	})
}

// errorType labels err for the error counter.
func errorType(err error) string {
	switch {
	case errors.Is(err, claims.ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, events.ErrMissingField):
		return "missing_field"
	case errors.Is(err, events.ErrInvalidEvent):
		return "invalid_event"
	case errors.Is(err, domain.ErrUnknownOrderType):
		return "unknown_order_type"
	case errors.Is(err, domain.ErrUnsupportedResolution):
		return "unsupported_resolution"
	default:
		return "store"
	}
}
