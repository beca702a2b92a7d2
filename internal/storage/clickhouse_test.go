package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/types"
)

func TestTransactionRepository_OrderAndWindow(t *testing.T) {
	db := openTestClickHouse(t)
	repo := NewTransactionRepository(db)
	ctx := testContext(t)

	walletID := "wallet-" + uuid.NewString()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	txs := []models.Transaction{
		{WalletID: walletID, TxID: "c", BlockHeight: 3, Timestamp: base.Add(2 * time.Hour), Type: types.TxTypeTransfer, Value: 1},
		{WalletID: walletID, TxID: "a", BlockHeight: 1, Timestamp: base, PoolEntry: true, Type: types.TxTypeShield, Value: 5},
		{WalletID: walletID, TxID: "b", BlockHeight: 2, Timestamp: base.Add(time.Hour), Shielded: true, Type: types.TxTypeShielded},
	}
	require.NoError(t, repo.InsertTransactions(ctx, txs))

	all, err := repo.ListTransactions(ctx, walletID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].TxID, all[1].TxID, all[2].TxID})
	assert.True(t, all[0].PoolEntry)
	assert.Equal(t, types.TxTypeShielded, all[1].Type)

	windowed, err := repo.ListTransactions(ctx, walletID, base.Add(30*time.Minute), base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "b", windowed[0].TxID)
}

func TestTransactionRepository_UpsertRollupsIsIdempotent(t *testing.T) {
	db := openTestClickHouse(t)
	repo := NewTransactionRepository(db)
	ctx := testContext(t)

	walletID := "wallet-" + uuid.NewString()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	rollup := models.ActivityRollup{
		WalletID: walletID, Date: day, TxCount: 2, Volume: 10, IsActive: true,
		TypeCounts: models.TypeCounts{Transfer: 1, Shield: 1},
	}

	require.NoError(t, repo.UpsertRollups(ctx, []models.ActivityRollup{rollup}))
	rollup.TxCount = 3
	require.NoError(t, repo.UpsertRollups(ctx, []models.ActivityRollup{rollup}))

	got, err := repo.ListRollups(ctx, walletID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 3, got[0].TxCount)
	assert.EqualValues(t, 1, got[0].TypeCounts.Shield)
	assert.True(t, got[0].Date.Equal(day))
}
