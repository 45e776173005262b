package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/storage"
)

// EntityStore implements storage.EntityStore using ClickHouse.
// The entities table is a ReplacingMergeTree keyed by (chain, kind, id);
// every Save inserts a new version and reads use FINAL to see the latest one.
type EntityStore struct {
	conn  *Conn
	chain string

	mu          sync.Mutex
	lastVersion uint64
}

// NewEntityStore creates an entity store scoped to chain.
func NewEntityStore(conn *Conn, chain string) *EntityStore {
	return &EntityStore{conn: conn, chain: chain}
}

// Compile-time interface checks.
var (
	_ storage.EntityStore = (*EntityStore)(nil)
	_ storage.Snapshotter = (*EntityStore)(nil)
)

// nextVersion returns a strictly increasing version so that two saves within
// the same nanosecond still replace in order.
func (s *EntityStore) nextVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := uint64(time.Now().UnixNano())
	if v <= s.lastVersion {
		v = s.lastVersion + 1
	}
	s.lastVersion = v
	return v
}

// Load returns the latest version of the record, or storage.ErrNotFound.
func (s *EntityStore) Load(ctx context.Context, kind domain.Kind, id string) ([]byte, error) {
	if id == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT data FROM entities FINAL
		WHERE chain = ? AND kind = ? AND id = ?
		LIMIT 1
	`

	var data string
	err := s.conn.QueryRow(ctx, query, s.chain, string(kind), id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load entity: %w", err)
	}
	return []byte(data), nil
}

// Save inserts a new version of the record.
func (s *EntityStore) Save(ctx context.Context, kind domain.Kind, id string, data []byte) error {
	if id == "" || len(data) == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO entities (chain, kind, id, data, version)
		VALUES (?, ?, ?, ?, ?)
	`
	if err := s.conn.Exec(ctx, query, s.chain, string(kind), id, string(data), s.nextVersion()); err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

// Snapshot returns the latest version of every record of the chain.
func (s *EntityStore) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	query := `
		SELECT kind, id, data FROM entities FINAL
		WHERE chain = ?
		ORDER BY kind, id
	`

	rows, err := s.conn.Query(ctx, query, s.chain)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	out := make(storage.Snapshot)
	for rows.Next() {
		var kind, id, data string
		if err := rows.Scan(&kind, &id, &data); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		byID, ok := out[domain.Kind(kind)]
		if !ok {
			byID = make(map[string][]byte)
			out[domain.Kind(kind)] = byID
		}
		byID[id] = []byte(data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return out, nil
}
