// Package orders keeps the Order records referenced by the claim correlator.
package orders

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/events"
	"perp-indexer/internal/ids"
	"perp-indexer/internal/logging"
	"perp-indexer/internal/storage"
)

// ErrUnknownOrder is returned by Cancel and Execute when no order exists for the key.
var ErrUnknownOrder = errors.New("unknown order")

// Writer records order creation and lifecycle transitions.
type Writer struct {
	store  storage.EntityStore
	logger log.FieldLogger
}

// NewWriter creates an order Writer.
func NewWriter(store storage.EntityStore, logger log.FieldLogger) *Writer {
	return &Writer{store: store, logger: logging.Component(logger, "orders")}
}

// Create saves the order described by an OrderCreated event.
func (w *Writer) Create(ctx context.Context, txID string, ev *events.OrderCreated) (*domain.Order, error) {
	order := ev.Order(txID)
	order.ID = ids.Order(ev.Key)
	if err := storage.Save(ctx, w.store, order); err != nil {
		return nil, fmt.Errorf("save order %s: %w", order.ID, err)
	}
	return order, nil
}

// Get loads an order by key. Returns storage.ErrNotFound if absent.
func (w *Writer) Get(ctx context.Context, orderKey string) (*domain.Order, error) {
	return storage.Load[domain.Order](ctx, w.store, ids.Order(orderKey))
}

// Cancel marks the order as cancelled. An unknown order is logged, left
// unwritten and reported as ErrUnknownOrder.
func (w *Writer) Cancel(ctx context.Context, txID, orderKey string) (*domain.Order, error) {
	return w.transition(ctx, orderKey, func(o *domain.Order) {
		o.Status = domain.OrderStatusCancelled
		o.CancelledTxn = txID
	})
}

// Execute marks the order as executed. An unknown order is handled as in Cancel.
func (w *Writer) Execute(ctx context.Context, txID, orderKey string) (*domain.Order, error) {
	return w.transition(ctx, orderKey, func(o *domain.Order) {
		o.Status = domain.OrderStatusExecuted
		o.ExecutedTxn = txID
	})
}

func (w *Writer) transition(ctx context.Context, orderKey string, apply func(*domain.Order)) (*domain.Order, error) {
	order, err := w.Get(ctx, orderKey)
	if storage.IsNotFound(err) {
		w.logger.WithField("order", orderKey).Warn("order update for unknown order")
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrder, orderKey)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderKey, err)
	}

	apply(order)
	if err := storage.Save(ctx, w.store, order); err != nil {
		return nil, fmt.Errorf("save order %s: %w", order.ID, err)
	}
	return order, nil
}
