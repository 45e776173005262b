// Package ingestion feeds ordered event streams into the indexer.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"perp-indexer/internal/indexer"
	"perp-indexer/internal/logging"
	"perp-indexer/internal/observability"
)

// Runner consumes one chain's source and feeds its handler.
type Runner struct {
	chain     string
	source    EventSource
	handler   indexer.Handler
	logger    log.FieldLogger
	processed atomic.Int64
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Chain   string
	Source  EventSource
	Handler indexer.Handler
	Logger  log.FieldLogger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	chain := opts.Chain
	if chain == "" {
		chain = "default"
	}
	return &Runner{
		chain:   chain,
		source:  opts.Source,
		handler: opts.Handler,
		logger:  logging.Component(opts.Logger, "runner").WithField("chain", chain),
	}
}

// Chain returns the chain label.
func (r *Runner) Chain() string { return r.chain }

// Processed returns the number of events handed to the handler.
func (r *Runner) Processed() int64 { return r.processed.Load() }

// Run delivers events until the source is exhausted, ctx is cancelled or the
// handler fails. A handler error stops the chain: later events depend on it.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil || r.handler == nil {
		return errors.New("runner requires a source and a handler")
	}

	r.logger.WithField("source", r.source.Name()).Info("starting runner")

	ch, err := r.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("chain %s: subscribe: %w", r.chain, err)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.WithField("processed", r.Processed()).Info("runner stopping")
			return ctx.Err()

		case e, ok := <-ch:
			if !ok {
				r.logger.WithField("processed", r.Processed()).Info("source exhausted")
				return nil
			}
			observability.RecordEventIngested(r.chain, r.source.Name())

			if err := r.handler.Handle(ctx, e); err != nil {
				return fmt.Errorf("chain %s: %w", r.chain, err)
			}
			r.processed.Add(1)
		}
	}
}

// RunChains runs every runner concurrently. The first failure cancels the others.
// Chains share no state; each runner owns its store.
func RunChains(ctx context.Context, runners []*Runner) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		r := r
		g.Go(func() error {
			return r.Run(gctx)
		})
	}
	return g.Wait()
}
