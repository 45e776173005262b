package postgres

import (
	"context"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/storage"
)

// EntityStore is a PostgreSQL implementation of storage.EntityStore.
// Records of every chain share one table, keyed by (chain, kind, id).
type EntityStore struct {
	pool  *Pool
	chain string
}

// NewEntityStore creates an entity store scoped to chain.
func NewEntityStore(pool *Pool, chain string) *EntityStore {
	return &EntityStore{pool: pool, chain: chain}
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

	row := s.pool.QueryRow(ctx, `
		SELECT data
		FROM entities
		WHERE chain = $1 AND kind = $2 AND id = $3
	`, s.chain, string(kind), id)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, wrapQueryError("load entity", err)
	}
	return data, nil
}

// Save upserts the encoded record.
func (s *EntityStore) Save(ctx context.Context, kind domain.Kind, id string, data []byte) error {
	if id == "" || len(data) == 0 {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO entities (chain, kind, id, data, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (chain, kind, id) DO UPDATE
		SET data = EXCLUDED.data,
		    updated_at = NOW()
	`, s.chain, string(kind), id, data)
	if err != nil {
		return wrapQueryError("save entity", err)
	}
	return nil
}

// Snapshot returns every record of the chain.
func (s *EntityStore) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT kind, id, data
		FROM entities
		WHERE chain = $1
		ORDER BY kind, id
	`, s.chain)
	if err != nil {
		return nil, wrapQueryError("snapshot entities", err)
	}
	defer rows.Close()

	out := make(storage.Snapshot)
	for rows.Next() {
		var (
			kind string
			id   string
			data []byte
		)
		if err := rows.Scan(&kind, &id, &data); err != nil {
			return nil, wrapQueryError("scan entity", err)
		}
		byID, ok := out[domain.Kind(kind)]
		if !ok {
			byID = make(map[string][]byte)
			out[domain.Kind(kind)] = byID
		}
		byID[id] = data
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryError("snapshot entities", err)
	}
	return out, nil
}
