package storage

import (
	"context"

	"perp-indexer/internal/domain"
)

// EntityStore is a keyed upsert store for encoded entity records.
// Each store instance owns one chain namespace; ids never cross chains.
type EntityStore interface {
	// Load returns the encoded record for (kind, id). Returns ErrNotFound if not exists.
	Load(ctx context.Context, kind domain.Kind, id string) ([]byte, error)

	// Save upserts the encoded record for (kind, id). Each call is independently durable.
	Save(ctx context.Context, kind domain.Kind, id string, data []byte) error
}

// Snapshot is a full dump of a store: kind -> id -> encoded record.
type Snapshot map[domain.Kind]map[string][]byte

// Snapshotter is implemented by stores that can dump their full contents.
type Snapshotter interface {
	// Snapshot returns every record in the namespace.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Count returns the number of records in the snapshot.
func (s Snapshot) Count() int {
	n := 0
	for _, byID := range s {
		n += len(byID)
	}
	return n
}
