package models

import (
	"time"

	"github.com/wallet-insights/internal/types"
)

// ProductivityScore is the single current score row of a wallet.
// Recomputation overwrites the row; no history is kept.
type ProductivityScore struct {
	WalletID       string            `json:"walletId" db:"wallet_id"`
	TotalScore     float64           `json:"totalScore" db:"total_score"`
	RetentionScore float64           `json:"retentionScore" db:"retention_score"`
	AdoptionScore  float64           `json:"adoptionScore" db:"adoption_score"`
	ActivityScore  float64           `json:"activityScore" db:"activity_score"`
	DiversityScore float64           `json:"diversityScore" db:"diversity_score"`
	Status         types.ScoreStatus `json:"status" db:"status"`
	RiskLevel      types.RiskLevel   `json:"riskLevel" db:"risk_level"`
	ComputedAt     time.Time         `json:"computedAt" db:"computed_at"`
}

// AdoptionStage is one (wallet, stage) row of the adoption funnel
type AdoptionStage struct {
	WalletID              string          `json:"walletId" db:"wallet_id"`
	Stage                 types.StageName `json:"stage" db:"stage"`
	AchievedAt            *time.Time      `json:"achievedAt,omitempty" db:"achieved_at"`
	TimeToAchieveHours    *float64        `json:"timeToAchieveHours,omitempty" db:"time_to_achieve_hours"`
	ConversionProbability float64         `json:"conversionProbability" db:"conversion_probability"`
	UpdatedAt             time.Time       `json:"updatedAt" db:"updated_at"`
}

// Achieved reports whether the stage has been reached
func (s *AdoptionStage) Achieved() bool {
	return s.AchievedAt != nil
}
