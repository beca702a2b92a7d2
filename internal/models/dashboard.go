package models

import (
	"time"

	"github.com/wallet-insights/internal/types"
)

// Dashboard is the project-level analytics view served from the view cache
type Dashboard struct {
	ProjectID           string                    `json:"projectId"`
	WalletCount         int                       `json:"walletCount"`
	ActiveWallets       int                       `json:"activeWallets"`
	TransactionCount    int64                     `json:"transactionCount"`
	TotalVolume         float64                   `json:"totalVolume"`
	TotalFees           float64                   `json:"totalFees"`
	AverageProductivity float64                   `json:"averageProductivity"`
	StatusDistribution  map[types.ScoreStatus]int `json:"statusDistribution"`
	Funnel              []FunnelStage             `json:"funnel"`
	Cohorts             []CohortRow               `json:"cohorts"`
	Alerts              []Alert                   `json:"alerts"`
	Recommendations     []string                  `json:"recommendations"`
	GeneratedAt         time.Time                 `json:"generatedAt"`
}

// FunnelStage is the count of wallets that reached one adoption stage
type FunnelStage struct {
	Stage          types.StageName `json:"stage"`
	Wallets        int             `json:"wallets"`
	ConversionRate float64         `json:"conversionRate"`
}

// CohortRow tracks the weekly retention of wallets created in the same week
type CohortRow struct {
	CohortWeek time.Time `json:"cohortWeek"`
	Size       int       `json:"size"`
	// Retention[i] is the share (0-100) of the cohort active in week i after creation
	Retention []float64 `json:"retention"`
}

// Alert is a derived dashboard warning
type Alert struct {
	Code     string  `json:"code"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	Value    float64 `json:"value"`
}

// TimeSeriesPoint is one UTC day of a project metric
type TimeSeriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// TimeSeries is a daily metric series for a project
type TimeSeries struct {
	ProjectID string            `json:"projectId"`
	Metric    types.Metric      `json:"metric"`
	Days      int               `json:"days"`
	Points    []TimeSeriesPoint `json:"points"`
}

// ExportRow is one wallet line of an exported project report.
// Only aggregatable (non-private) wallets appear and no identity fields are carried.
type ExportRow struct {
	Rank              int               `json:"rank"`
	TotalScore        float64           `json:"totalScore"`
	RetentionScore    float64           `json:"retentionScore"`
	AdoptionScore     float64           `json:"adoptionScore"`
	ActivityScore     float64           `json:"activityScore"`
	DiversityScore    float64           `json:"diversityScore"`
	Status            types.ScoreStatus `json:"status"`
	HighestStage      types.StageName   `json:"highestStage"`
	TransactionCount  int64             `json:"transactionCount"`
	Volume            float64           `json:"volume"`
	ActiveDays        int               `json:"activeDays"`
	DaysSinceCreation int               `json:"daysSinceCreation"`
}

// WalletView is the composed per-wallet analytics view
type WalletView struct {
	WalletID     string             `json:"walletId"`
	Address      string             `json:"address"`
	ProjectID    string             `json:"projectId"`
	OwnerID      string             `json:"ownerId"`
	PrivacyMode  types.PrivacyMode  `json:"privacyMode"`
	Flows        *FlowAnalysis      `json:"flows,omitempty"`
	Productivity *ProductivityScore `json:"productivity,omitempty"`
	Stages       []AdoptionStage    `json:"stages"`
}

// ExportReport is the structured rendering of a project export
type ExportReport struct {
	ProjectID   string      `json:"projectId"`
	GeneratedAt time.Time   `json:"generatedAt"`
	Rows        []ExportRow `json:"rows"`
}
