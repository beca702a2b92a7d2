package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/types"
)

// StageRepository persists adoption funnel stages
type StageRepository struct {
	db *PostgresDB
}

// NewStageRepository creates a new stage repository
func NewStageRepository(db *PostgresDB) *StageRepository {
	return &StageRepository{db: db}
}

const stageSelect = `
	SELECT wallet_id, stage, achieved_at, time_to_achieve_hours, conversion_probability, updated_at
	FROM adoption_stages
`

func scanStages(rows pgx.Rows) ([]models.AdoptionStage, error) {
	defer rows.Close()

	var stages []models.AdoptionStage
	for rows.Next() {
		var (
			s     models.AdoptionStage
			stage string
		)
		if err := rows.Scan(&s.WalletID, &stage, &s.AchievedAt, &s.TimeToAchieveHours, &s.ConversionProbability, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan adoption stage: %w", err)
		}
		s.Stage = types.StageName(stage)
		stages = append(stages, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating adoption stages: %w", err)
	}
	return stages, nil
}

// ListStages returns a wallet's stage rows
func (r *StageRepository) ListStages(ctx context.Context, walletID string) ([]models.AdoptionStage, error) {
	rows, err := r.db.Pool().Query(ctx, stageSelect+` WHERE wallet_id = $1`, walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to list adoption stages: %w", err)
	}
	return scanStages(rows)
}

// ListProjectStages returns the stage rows of the given wallets keyed by wallet id
func (r *StageRepository) ListProjectStages(ctx context.Context, walletIDs []string) (map[string][]models.AdoptionStage, error) {
	byWallet := make(map[string][]models.AdoptionStage, len(walletIDs))
	if len(walletIDs) == 0 {
		return byWallet, nil
	}

	rows, err := r.db.Pool().Query(ctx, stageSelect+` WHERE wallet_id = ANY($1)`, walletIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list adoption stages: %w", err)
	}
	stages, err := scanStages(rows)
	if err != nil {
		return nil, err
	}
	for _, s := range stages {
		byWallet[s.WalletID] = append(byWallet[s.WalletID], s)
	}
	return byWallet, nil
}

// UpsertStages writes stage rows in one batch. An achieved_at already stored is
// never cleared or moved.
func (r *StageRepository) UpsertStages(ctx context.Context, stages []models.AdoptionStage) error {
	if len(stages) == 0 {
		return nil
	}

	query := `
		INSERT INTO adoption_stages (
			wallet_id, stage, achieved_at, time_to_achieve_hours, conversion_probability, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (wallet_id, stage) DO UPDATE SET
			achieved_at = COALESCE(adoption_stages.achieved_at, EXCLUDED.achieved_at),
			time_to_achieve_hours = COALESCE(adoption_stages.time_to_achieve_hours, EXCLUDED.time_to_achieve_hours),
			conversion_probability = EXCLUDED.conversion_probability,
			updated_at = EXCLUDED.updated_at
	`

	batch := &pgx.Batch{}
	for _, s := range stages {
		batch.Queue(query, s.WalletID, string(s.Stage), s.AchievedAt, s.TimeToAchieveHours, s.ConversionProbability, s.UpdatedAt)
	}

	results := r.db.Pool().SendBatch(ctx, batch)
	defer func() {
		_ = results.Close() // nolint:errcheck // cleanup in defer
	}()

	for range stages {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert adoption stage: %w", err)
		}
	}
	return nil
}
