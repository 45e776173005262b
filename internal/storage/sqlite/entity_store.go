package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/storage"
)

// EntityStore is a SQLite implementation of storage.EntityStore.
type EntityStore struct {
	db    *DB
	chain string
}

// NewEntityStore creates an entity store scoped to chain.
func NewEntityStore(db *DB, chain string) *EntityStore {
	return &EntityStore{db: db, chain: chain}
}

// Compile-time interface checks.
var (
	_ storage.EntityStore = (*EntityStore)(nil)
	_ storage.Snapshotter = (*EntityStore)(nil)
)

// Load returns the encoded record, or storage.ErrNotFound.
func (s *EntityStore) Load(ctx context.Context, kind domain.Kind, id string) ([]byte, error) {
	if id == "" {
		return nil, storage.ErrInvalidInput
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM entities
		WHERE chain = ? AND kind = ? AND id = ?
	`, s.chain, string(kind), id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load entity: %w", err)
	}
	return data, nil
}

// Save upserts the encoded record.
func (s *EntityStore) Save(ctx context.Context, kind domain.Kind, id string, data []byte) error {
	if id == "" || len(data) == 0 {
		return storage.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entities (chain, kind, id, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (chain, kind, id) DO UPDATE
		SET data = excluded.data,
		    updated_at = excluded.updated_at
	`, s.chain, string(kind), id, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save entity: %w", err)
	}
	return nil
}

// Snapshot returns every record of the chain.
func (s *EntityStore) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, id, data FROM entities
		WHERE chain = ?
		ORDER BY kind, id
	`, s.chain)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	out := make(storage.Snapshot)
	for rows.Next() {
		var (
			kind, id string
			data     []byte
		)
		if err := rows.Scan(&kind, &id, &data); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		byID, ok := out[domain.Kind(kind)]
		if !ok {
			byID = make(map[string][]byte)
			out[domain.Kind(kind)] = byID
		}
		byID[id] = data
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return out, nil
}
