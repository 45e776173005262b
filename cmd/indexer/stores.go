package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"perp-indexer/internal/config"
	"perp-indexer/internal/ingestion"
	"perp-indexer/internal/storage"
	chstore "perp-indexer/internal/storage/clickhouse"
	"perp-indexer/internal/storage/memory"
	"perp-indexer/internal/storage/migrations"
	pgstore "perp-indexer/internal/storage/postgres"
	sqlitestore "perp-indexer/internal/storage/sqlite"
)

// chainStore is a store opened for one chain plus its cleanup.
type chainStore struct {
	*storage.Instrumented
	closer func()
}

// openStore connects the configured backend, applies migrations and wraps the
// store with query metrics.
func openStore(ctx context.Context, cc config.ChainConfig) (*chainStore, error) {
	var (
		store  storage.EntityStore
		closer = func() {}
	)

	switch cc.Store.Backend {
	case config.BackendMemory:
		store = memory.NewEntityStore()

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cc.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run postgres migrations: %w", err)
		}
		store = pgstore.NewEntityStore(pool, cc.Name)
		closer = pool.Close

	case config.BackendClickhouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, cc.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		store = chstore.NewEntityStore(conn, cc.Name)
		closer = func() { conn.Close() }

	case config.BackendSQLite:
		db, err := sqlitestore.Open(cc.Store.DSN)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("run sqlite migrations: %w", err)
		}
		store = sqlitestore.NewEntityStore(db, cc.Name)
		closer = func() { db.Close() }

	default:
		return nil, fmt.Errorf("unknown store backend %q", cc.Store.Backend)
	}

	return &chainStore{
		Instrumented: storage.NewInstrumented(store, cc.Store.Backend),
		closer:       closer,
	}, nil
}

// openStores opens every chain's store. On error the ones already opened are closed.
func openStores(ctx context.Context, cfg *config.Config) (map[string]*chainStore, error) {
	stores := make(map[string]*chainStore, len(cfg.Chains))
	for _, cc := range cfg.Chains {
		s, err := openStore(ctx, cc)
		if err != nil {
			closeStores(stores)
			return nil, fmt.Errorf("chain %s: %w", cc.Name, err)
		}
		stores[cc.Name] = s
	}
	return stores, nil
}

func closeStores(stores map[string]*chainStore) {
	for _, s := range stores {
		s.closer()
	}
}

// newSource builds the event source configured for a chain.
func newSource(cc config.ChainConfig, logger log.FieldLogger) (ingestion.EventSource, error) {
	switch cc.Source.Type {
	case config.SourceFile:
		return ingestion.NewFileSource(cc.Source.Path), nil
	case config.SourceWS:
		return ingestion.NewWSSource(cc.Source.URL, nil, logger.WithField("chain", cc.Name)), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cc.Source.Type)
	}
}

// selectChain returns the chain named by flag, or the only chain when name is empty.
func selectChain(cfg *config.Config, name string) (config.ChainConfig, error) {
	if name == "" {
		if len(cfg.Chains) != 1 {
			return config.ChainConfig{}, fmt.Errorf("--chain is required when %d chains are configured", len(cfg.Chains))
		}
		return cfg.Chains[0], nil
	}
	cc, ok := cfg.Chain(name)
	if !ok {
		return config.ChainConfig{}, fmt.Errorf("chain %q is not configured", name)
	}
	return cc, nil
}
