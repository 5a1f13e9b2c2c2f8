package clickhouse_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ch "clmm-eligibility/internal/storage/clickhouse"

	"clmm-eligibility/internal/domain"
	"clmm-eligibility/internal/storage"
)

func testSnapshot(wallet string, checkedAt int64) *domain.ScanSnapshot {
	return &domain.ScanSnapshot{
		Wallet:         wallet,
		TokenBalance:   decimal.RequireFromString("50.25"),
		TotalLiquidity: decimal.RequireFromString("3.75"),
		PositionCount:  1,
		Eligible:       true,
		CheckedAt:      checkedAt,
	}
}

func TestScanHistoryStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := ch.NewScanHistoryStore(conn)

	snap := testSnapshot("wallet1", 1704067200000)
	require.NoError(t, store.Insert(ctx, snap))

	got, err := store.GetByWallet(ctx, "wallet1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "wallet1", got[0].Wallet)
	assert.True(t, got[0].TokenBalance.Equal(snap.TokenBalance), "token balance: %s", got[0].TokenBalance)
	assert.True(t, got[0].TotalLiquidity.Equal(snap.TotalLiquidity), "total liquidity: %s", got[0].TotalLiquidity)
	assert.Equal(t, 1, got[0].PositionCount)
	assert.True(t, got[0].Eligible)
	assert.Equal(t, int64(1704067200000), got[0].CheckedAt)
}

func TestScanHistoryStore_AppendOnlyOrdering(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := ch.NewScanHistoryStore(conn)

	// Inserted out of order, returned by checked_at.
	require.NoError(t, store.Insert(ctx, testSnapshot("wallet1", 3000)))
	require.NoError(t, store.Insert(ctx, testSnapshot("wallet1", 1000)))
	require.NoError(t, store.Insert(ctx, testSnapshot("wallet1", 2000)))
	require.NoError(t, store.Insert(ctx, testSnapshot("other", 1500)))

	got, err := store.GetByWallet(ctx, "wallet1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, int64(1000), got[0].CheckedAt)
	assert.Equal(t, int64(2000), got[1].CheckedAt)
	assert.Equal(t, int64(3000), got[2].CheckedAt)
}

func TestScanHistoryStore_EmptyWallet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := ch.NewScanHistoryStore(conn)

	got, err := store.GetByWallet(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScanHistoryStore_InvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := ch.NewScanHistoryStore(conn)
	ctx := context.Background()

	assert.True(t, errors.Is(store.Insert(ctx, nil), storage.ErrInvalidInput))
	assert.True(t, errors.Is(store.Insert(ctx, &domain.ScanSnapshot{}), storage.ErrInvalidInput))
}
