package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/wallet-insights/internal/errors"
	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/types"
)

// WalletRepository handles wallet identity, ownership and privacy mode in Postgres.
// It is the source of truth for access decisions.
type WalletRepository struct {
	db *PostgresDB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *PostgresDB) *WalletRepository {
	return &WalletRepository{db: db}
}

const walletSelect = `
	SELECT w.id, w.address, w.project_id, p.owner_id, w.privacy_mode, w.created_at, w.updated_at
	FROM wallets w
	JOIN projects p ON p.id = w.project_id
`

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var (
		w    models.Wallet
		mode string
	)
	if err := row.Scan(&w.ID, &w.Address, &w.ProjectID, &w.OwnerID, &mode, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.PrivacyMode = types.PrivacyMode(mode)
	return &w, nil
}

// CreateProject inserts a project
func (r *WalletRepository) CreateProject(ctx context.Context, project *models.Project) error {
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO projects (id, owner_id, name, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.Pool().Exec(ctx, query, project.ID, project.OwnerID, project.Name, project.CreatedAt); err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by id
func (r *WalletRepository) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	query := `SELECT id, owner_id, name, created_at FROM projects WHERE id = $1`

	var p models.Project
	err := r.db.Pool().QueryRow(ctx, query, projectID).Scan(&p.ID, &p.OwnerID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("project", projectID)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// CreateWallet inserts a wallet; the privacy mode defaults to private
func (r *WalletRepository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	if wallet.PrivacyMode == "" {
		wallet.PrivacyMode = types.PrivacyPrivate
	}
	now := time.Now().UTC()
	if wallet.CreatedAt.IsZero() {
		wallet.CreatedAt = now
	}
	wallet.UpdatedAt = now

	query := `
		INSERT INTO wallets (id, address, project_id, privacy_mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Pool().Exec(ctx, query,
		wallet.ID, wallet.Address, wallet.ProjectID, string(wallet.PrivacyMode), wallet.CreatedAt, wallet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// GetWallet retrieves a wallet with its owner
func (r *WalletRepository) GetWallet(ctx context.Context, walletID string) (*models.Wallet, error) {
	w, err := scanWallet(r.db.Pool().QueryRow(ctx, walletSelect+` WHERE w.id = $1`, walletID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("wallet", walletID)
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// ListProjectWallets returns every wallet of a project ordered by id
func (r *WalletRepository) ListProjectWallets(ctx context.Context, projectID string) ([]models.Wallet, error) {
	rows, err := r.db.Pool().Query(ctx, walletSelect+` WHERE w.project_id = $1 ORDER BY w.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallets: %w", err)
	}
	return wallets, nil
}

// SetPrivacyMode changes a wallet's mode and appends an audit entry in one transaction
func (r *WalletRepository) SetPrivacyMode(ctx context.Context, walletID string, mode types.PrivacyMode, actorID string) (*models.PrivacyAuditEntry, error) {
	entry := &models.PrivacyAuditEntry{
		ID:        uuid.New().String(),
		WalletID:  walletID,
		NewMode:   mode,
		ActorID:   actorID,
		ChangedAt: time.Now().UTC(),
	}

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		var previous string
		err := tx.QueryRow(ctx, `SELECT privacy_mode FROM wallets WHERE id = $1 FOR UPDATE`, walletID).Scan(&previous)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFoundError("wallet", walletID)
			}
			return fmt.Errorf("failed to lock wallet: %w", err)
		}
		entry.PreviousMode = types.PrivacyMode(previous)

		if _, err := tx.Exec(ctx,
			`UPDATE wallets SET privacy_mode = $1, updated_at = $2 WHERE id = $3`,
			string(mode), entry.ChangedAt, walletID,
		); err != nil {
			return fmt.Errorf("failed to update privacy mode: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO privacy_audit_log (id, wallet_id, previous_mode, new_mode, actor_id, changed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, entry.ID, entry.WalletID, string(entry.PreviousMode), string(entry.NewMode), entry.ActorID, entry.ChangedAt); err != nil {
			return fmt.Errorf("failed to append privacy audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListPrivacyAudit returns a wallet's privacy changes, newest first
func (r *WalletRepository) ListPrivacyAudit(ctx context.Context, walletID string) ([]models.PrivacyAuditEntry, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, wallet_id, previous_mode, new_mode, actor_id, changed_at
		FROM privacy_audit_log
		WHERE wallet_id = $1
		ORDER BY changed_at DESC
	`, walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to list privacy audit: %w", err)
	}
	defer rows.Close()

	var entries []models.PrivacyAuditEntry
	for rows.Next() {
		var (
			e              models.PrivacyAuditEntry
			previous, next string
		)
		if err := rows.Scan(&e.ID, &e.WalletID, &previous, &next, &e.ActorID, &e.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan privacy audit entry: %w", err)
		}
		e.PreviousMode = types.PrivacyMode(previous)
		e.NewMode = types.PrivacyMode(next)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating privacy audit: %w", err)
	}
	return entries, nil
}
