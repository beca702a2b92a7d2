package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/wallet-insights/internal/models"
)

// GrantRepository persists paid access grants and the owner earnings ledger
type GrantRepository struct {
	db *PostgresDB
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(db *PostgresDB) *GrantRepository {
	return &GrantRepository{db: db}
}

// Numeric columns travel as text so decimal precision survives the round trip.

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid numeric value %q: %w", s, err)
	}
	return d, nil
}

// FindActiveGrant returns the requester's grant on a wallet that is valid at t, or nil
func (r *GrantRepository) FindActiveGrant(ctx context.Context, walletID, requesterID string, at time.Time) (*models.AccessGrant, error) {
	query := `
		SELECT id, wallet_id, requester_id, payment_ref, amount::text, granted_at, expires_at
		FROM access_grants
		WHERE wallet_id = $1 AND requester_id = $2 AND granted_at <= $3 AND expires_at > $3
		ORDER BY expires_at DESC
		LIMIT 1
	`

	var (
		g      models.AccessGrant
		amount string
	)
	err := r.db.Pool().QueryRow(ctx, query, walletID, requesterID, at).Scan(
		&g.ID, &g.WalletID, &g.RequesterID, &g.PaymentRef, &amount, &g.GrantedAt, &g.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find access grant: %w", err)
	}
	if g.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGrantWithEarnings records a grant, its ledger entry and the owner's
// balance credit in one transaction
func (r *GrantRepository) CreateGrantWithEarnings(ctx context.Context, grant *models.AccessGrant, entry *models.EarningsEntry) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO access_grants (id, wallet_id, requester_id, payment_ref, amount, granted_at, expires_at)
			VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
		`, grant.ID, grant.WalletID, grant.RequesterID, grant.PaymentRef, grant.Amount.String(), grant.GrantedAt, grant.ExpiresAt); err != nil {
			return fmt.Errorf("failed to insert access grant: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO earnings_ledger (id, grant_id, owner_id, gross, owner_share, platform_share, created_at)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7)
		`, entry.ID, entry.GrantID, entry.OwnerID, entry.Gross.String(), entry.OwnerShare.String(), entry.PlatformShare.String(), entry.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert earnings entry: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO owner_balances (owner_id, balance, updated_at)
			VALUES ($1, $2::numeric, $3)
			ON CONFLICT (owner_id) DO UPDATE SET
				balance = owner_balances.balance + EXCLUDED.balance,
				updated_at = EXCLUDED.updated_at
		`, entry.OwnerID, entry.OwnerShare.String(), entry.CreatedAt); err != nil {
			return fmt.Errorf("failed to credit owner balance: %w", err)
		}
		return nil
	})
}

// GetEarnings returns an owner's balance and ledger entries, newest first
func (r *GrantRepository) GetEarnings(ctx context.Context, ownerID string) (*models.OwnerEarnings, error) {
	earnings := &models.OwnerEarnings{OwnerID: ownerID, Balance: decimal.Zero, Entries: []models.EarningsEntry{}}

	var balance string
	err := r.db.Pool().QueryRow(ctx, `SELECT balance::text FROM owner_balances WHERE owner_id = $1`, ownerID).Scan(&balance)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to get owner balance: %w", err)
	default:
		if earnings.Balance, err = parseDecimal(balance); err != nil {
			return nil, err
		}
	}

	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, grant_id, owner_id, gross::text, owner_share::text, platform_share::text, created_at
		FROM earnings_ledger
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e                      models.EarningsEntry
			gross, owner, platform string
		)
		if err := rows.Scan(&e.ID, &e.GrantID, &e.OwnerID, &gross, &owner, &platform, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan earnings entry: %w", err)
		}
		if e.Gross, err = parseDecimal(gross); err != nil {
			return nil, err
		}
		if e.OwnerShare, err = parseDecimal(owner); err != nil {
			return nil, err
		}
		if e.PlatformShare, err = parseDecimal(platform); err != nil {
			return nil, err
		}
		earnings.Entries = append(earnings.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating earnings: %w", err)
	}
	return earnings, nil
}
