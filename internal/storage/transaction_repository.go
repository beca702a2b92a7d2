package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/types"
)

// TransactionRepository reads indexed transactions and maintains daily
// activity rollups in ClickHouse
type TransactionRepository struct {
	db *ClickHouseDB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *ClickHouseDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ListTransactions returns a wallet's transactions within [from, to] ordered by
// (timestamp, block height, tx id). A zero bound leaves that side open.
func (r *TransactionRepository) ListTransactions(ctx context.Context, walletID string, from, to time.Time) ([]models.Transaction, error) {
	var (
		conditions = []string{"wallet_id = ?"}
		args       = []interface{}{walletID}
	)
	if !from.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, to.UTC())
	}

	query := fmt.Sprintf(`
		SELECT wallet_id, tx_id, block_height, timestamp, shielded, pool_entry, pool_exit, value, fee, type
		FROM transactions FINAL
		WHERE %s
		ORDER BY timestamp ASC, block_height ASC, tx_id ASC
	`, strings.Join(conditions, " AND "))

	rows, err := r.db.Conn().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var (
			tx     models.Transaction
			txType string
		)
		if err := rows.Scan(
			&tx.WalletID,
			&tx.TxID,
			&tx.BlockHeight,
			&tx.Timestamp,
			&tx.Shielded,
			&tx.PoolEntry,
			&tx.PoolExit,
			&tx.Value,
			&tx.Fee,
			&txType,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Type = types.TransactionType(txType)
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txs, nil
}

// InsertTransactions batch inserts transactions. Used by fixtures and backfills;
// the indexer owns the table in production.
func (r *TransactionRepository) InsertTransactions(ctx context.Context, txs []models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO transactions (
			wallet_id, tx_id, block_height, timestamp, shielded, pool_entry, pool_exit, value, fee, type
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, tx := range txs {
		if err := batch.Append(
			tx.WalletID,
			tx.TxID,
			tx.BlockHeight,
			tx.Timestamp.UTC(),
			tx.Shielded,
			tx.PoolEntry,
			tx.PoolExit,
			tx.Value,
			tx.Fee,
			string(tx.Type),
		); err != nil {
			return fmt.Errorf("failed to append transaction to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

const rollupColumns = `wallet_id, date, tx_count, volume, fee_total,
	transfer_count, shield_count, unshield_count, shielded_count, swap_count,
	is_active, is_returning, days_since_creation`

// ListRollups returns a wallet's daily rollups ordered by date
func (r *TransactionRepository) ListRollups(ctx context.Context, walletID string) ([]models.ActivityRollup, error) {
	query := `SELECT ` + rollupColumns + `
		FROM activity_rollups FINAL
		WHERE wallet_id = ?
		ORDER BY date ASC
	`
	return r.queryRollups(ctx, query, walletID)
}

// ListProjectRollups returns the rollups of many wallets with dates in [from, to]
// ordered by wallet and date. A zero from returns full history.
func (r *TransactionRepository) ListProjectRollups(ctx context.Context, walletIDs []string, from, to time.Time) ([]models.ActivityRollup, error) {
	if len(walletIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + rollupColumns + `
		FROM activity_rollups FINAL
		WHERE wallet_id IN (?) AND date >= ? AND date <= ?
		ORDER BY wallet_id ASC, date ASC
	`
	if to.IsZero() {
		to = time.Now().UTC()
	}
	return r.queryRollups(ctx, query, walletIDs, from.UTC(), to.UTC())
}

func (r *TransactionRepository) queryRollups(ctx context.Context, query string, args ...interface{}) ([]models.ActivityRollup, error) {
	rows, err := r.db.Conn().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rollups: %w", err)
	}
	defer rows.Close()

	var rollups []models.ActivityRollup
	for rows.Next() {
		var ru models.ActivityRollup
		if err := rows.Scan(
			&ru.WalletID,
			&ru.Date,
			&ru.TxCount,
			&ru.Volume,
			&ru.FeeTotal,
			&ru.TypeCounts.Transfer,
			&ru.TypeCounts.Shield,
			&ru.TypeCounts.Unshield,
			&ru.TypeCounts.Shielded,
			&ru.TypeCounts.Swap,
			&ru.IsActive,
			&ru.IsReturning,
			&ru.DaysSinceCreation,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rollup: %w", err)
		}
		ru.Date = ru.Date.UTC()
		rollups = append(rollups, ru)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rollups: %w", err)
	}

	return rollups, nil
}

// UpsertRollups writes rollups; the ReplacingMergeTree keeps the latest row per (wallet, date)
func (r *TransactionRepository) UpsertRollups(ctx context.Context, rollups []models.ActivityRollup) error {
	if len(rollups) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `INSERT INTO activity_rollups (`+rollupColumns+`, updated_at)`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	updatedAt := time.Now().UTC()
	for _, ru := range rollups {
		if err := batch.Append(
			ru.WalletID,
			ru.Date.UTC(),
			ru.TxCount,
			ru.Volume,
			ru.FeeTotal,
			ru.TypeCounts.Transfer,
			ru.TypeCounts.Shield,
			ru.TypeCounts.Unshield,
			ru.TypeCounts.Shielded,
			ru.TypeCounts.Swap,
			ru.IsActive,
			ru.IsReturning,
			ru.DaysSinceCreation,
			updatedAt,
		); err != nil {
			return fmt.Errorf("failed to append rollup to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}
