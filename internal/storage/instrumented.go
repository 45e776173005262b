package storage

import (
	"context"
	"errors"
	"time"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/observability"
)

// Instrumented wraps an EntityStore and records query latency and errors.
type Instrumented struct {
	next     EntityStore
	database string
}

// NewInstrumented wraps next; database labels the metrics (e.g. "postgres").
func NewInstrumented(next EntityStore, database string) *Instrumented {
	return &Instrumented{next: next, database: database}
}

// Load implements EntityStore. A miss is not counted as an error.
func (s *Instrumented) Load(ctx context.Context, kind domain.Kind, id string) ([]byte, error) {
	start := time.Now()
	data, err := s.next.Load(ctx, kind, id)
	recorded := err
	if errors.Is(err, ErrNotFound) {
		recorded = nil
	}
	observability.RecordDBQuery(s.database, "load", time.Since(start).Seconds(), recorded)
	return data, err
}

// Save implements EntityStore.
func (s *Instrumented) Save(ctx context.Context, kind domain.Kind, id string, data []byte) error {
	start := time.Now()
	err := s.next.Save(ctx, kind, id, data)
	observability.RecordDBQuery(s.database, "save", time.Since(start).Seconds(), err)
	return err
}

// Snapshot implements Snapshotter when the wrapped store does.
func (s *Instrumented) Snapshot(ctx context.Context) (Snapshot, error) {
	snap, ok := s.next.(Snapshotter)
	if !ok {
		return nil, errors.New("snapshot not supported by " + s.database + " store")
	}
	start := time.Now()
	out, err := snap.Snapshot(ctx)
	observability.RecordDBQuery(s.database, "snapshot", time.Since(start).Seconds(), err)
	return out, err
}

var (
	_ EntityStore = (*Instrumented)(nil)
	_ Snapshotter = (*Instrumented)(nil)
)
