package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/types"
)

// ScoreRepository persists the current productivity score of each wallet
type ScoreRepository struct {
	db *PostgresDB
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(db *PostgresDB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

const scoreSelect = `
	SELECT wallet_id, total_score, retention_score, adoption_score, activity_score,
	       diversity_score, status, risk_level, computed_at
	FROM productivity_scores
`

func scanScore(row pgx.Row) (*models.ProductivityScore, error) {
	var (
		s            models.ProductivityScore
		status, risk string
	)
	if err := row.Scan(
		&s.WalletID,
		&s.TotalScore,
		&s.RetentionScore,
		&s.AdoptionScore,
		&s.ActivityScore,
		&s.DiversityScore,
		&status,
		&risk,
		&s.ComputedAt,
	); err != nil {
		return nil, err
	}
	s.Status = types.ScoreStatus(status)
	s.RiskLevel = types.RiskLevel(risk)
	return &s, nil
}

// GetScore returns a wallet's current score, or nil when none was computed yet
func (r *ScoreRepository) GetScore(ctx context.Context, walletID string) (*models.ProductivityScore, error) {
	s, err := scanScore(r.db.Pool().QueryRow(ctx, scoreSelect+` WHERE wallet_id = $1`, walletID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get productivity score: %w", err)
	}
	return s, nil
}

// UpsertScore overwrites a wallet's score row
func (r *ScoreRepository) UpsertScore(ctx context.Context, s *models.ProductivityScore) error {
	query := `
		INSERT INTO productivity_scores (
			wallet_id, total_score, retention_score, adoption_score, activity_score,
			diversity_score, status, risk_level, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (wallet_id) DO UPDATE SET
			total_score = EXCLUDED.total_score,
			retention_score = EXCLUDED.retention_score,
			adoption_score = EXCLUDED.adoption_score,
			activity_score = EXCLUDED.activity_score,
			diversity_score = EXCLUDED.diversity_score,
			status = EXCLUDED.status,
			risk_level = EXCLUDED.risk_level,
			computed_at = EXCLUDED.computed_at
	`
	_, err := r.db.Pool().Exec(ctx, query,
		s.WalletID,
		s.TotalScore,
		s.RetentionScore,
		s.AdoptionScore,
		s.ActivityScore,
		s.DiversityScore,
		string(s.Status),
		string(s.RiskLevel),
		s.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert productivity score: %w", err)
	}
	return nil
}

// ListScores returns the current scores of the given wallets keyed by wallet id
func (r *ScoreRepository) ListScores(ctx context.Context, walletIDs []string) (map[string]models.ProductivityScore, error) {
	scores := make(map[string]models.ProductivityScore, len(walletIDs))
	if len(walletIDs) == 0 {
		return scores, nil
	}

	rows, err := r.db.Pool().Query(ctx, scoreSelect+` WHERE wallet_id = ANY($1)`, walletIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list productivity scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan productivity score: %w", err)
		}
		scores[s.WalletID] = *s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating productivity scores: %w", err)
	}
	return scores, nil
}
