package clickhouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/storage"
	"perp-indexer/internal/storage/clickhouse"
	"perp-indexer/internal/storage/storagetest"
)

func TestEntityStore(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	storagetest.Run(t, func(t *testing.T, chain string) storage.EntityStore {
		return clickhouse.NewEntityStore(conn, chain)
	})

	t.Run("LatestVersionWins", func(t *testing.T) {
		ctx := context.Background()
		s := clickhouse.NewEntityStore(conn, "versions")

		for i := 0; i < 5; i++ {
			require.NoError(t, storage.Save(ctx, s, &domain.AppliedEvent{ID: "0xtx:0", BlockNumber: uint64(i)}))
		}

		got, err := storage.Load[domain.AppliedEvent](ctx, s, "0xtx:0")
		require.NoError(t, err)
		assert.Equal(t, uint64(4), got.BlockNumber)
	})
}

func TestNewConn_RejectsBadDSN(t *testing.T) {
	_, err := clickhouse.NewConn(context.Background(), "postgres://localhost/db")
	assert.Error(t, err)
}
