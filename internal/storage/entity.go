package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"perp-indexer/internal/domain"
)

// EntityPtr constrains P to a pointer to T implementing domain.Entity.
type EntityPtr[T any] interface {
	*T
	domain.Entity
}

func kindOf[T any, P EntityPtr[T]]() domain.Kind {
	var zero T
	return P(&zero).EntityKind()
}

// Load reads and decodes the entity of type T with the given id.
// Returns ErrNotFound if absent.
func Load[T any, P EntityPtr[T]](ctx context.Context, s EntityStore, id string) (P, error) {
	kind := kindOf[T, P]()
	data, err := s.Load(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s %q: %w", kind, id, err)
	}
	return P(&v), nil
}

// LoadOrCreate loads the entity with the given id, or returns init(id) when it
// does not exist yet. The new entity is not saved; created reports which case applied.
func LoadOrCreate[T any, P EntityPtr[T]](ctx context.Context, s EntityStore, id string, init func(id string) P) (e P, created bool, err error) {
	e, err = Load[T, P](ctx, s, id)
	if err == nil {
		return e, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	return init(id), true, nil
}

// Exists reports whether a record of the given kind and id exists.
func Exists(ctx context.Context, s EntityStore, kind domain.Kind, id string) (bool, error) {
	_, err := s.Load(ctx, kind, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Save encodes and upserts an entity.
func Save(ctx context.Context, s EntityStore, e domain.Entity) error {
	if e == nil || e.EntityID() == "" {
		return ErrInvalidInput
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s %q: %w", e.EntityKind(), e.EntityID(), err)
	}
	return s.Save(ctx, e.EntityKind(), e.EntityID(), data)
}
