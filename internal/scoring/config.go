// Package scoring computes productivity scores and adoption stage progress
// from a wallet's daily activity rollups.
package scoring

import "time"

// Step awards Score when a measured count reaches Min
type Step struct {
	Min   float64 `mapstructure:"min"`
	Score float64 `mapstructure:"score"`
}

// Weights are the component weights of the total score
type Weights struct {
	Retention float64 `mapstructure:"retention"`
	Adoption  float64 `mapstructure:"adoption"`
	Activity  float64 `mapstructure:"activity"`
	Diversity float64 `mapstructure:"diversity"`
}

// StageConfig holds adoption stage trigger thresholds
type StageConfig struct {
	RecurringActiveDays int     `mapstructure:"recurring_active_days"`
	RecurringWindowDays int     `mapstructure:"recurring_window_days"`
	HighValueVolume     float64 `mapstructure:"high_value_volume"`
}

// AlertConfig holds project dashboard thresholds. Shares are percentages (0-100)
// of the project's aggregatable wallets.
type AlertConfig struct {
	AtRiskShare      float64 `mapstructure:"at_risk_share"`
	ChurnShare       float64 `mapstructure:"churn_share"`
	MinActiveShare   float64 `mapstructure:"min_active_share"`
	ActiveWindowDays int     `mapstructure:"active_window_days"`
	CohortWeeks      int     `mapstructure:"cohort_weeks"`
}

// Config holds scoring thresholds. Step lists are ordered from the highest Min down.
type Config struct {
	Weights Weights `mapstructure:"weights"`

	RetentionWindowDays int     `mapstructure:"retention_window_days"`
	RetentionSteps      []Step  `mapstructure:"retention_steps"`
	RetentionStaleDays  int     `mapstructure:"retention_stale_days"`
	RetentionStaleCap   float64 `mapstructure:"retention_stale_cap"`

	AdoptionSteps []Step `mapstructure:"adoption_steps"`

	ActivityWindowDays int    `mapstructure:"activity_window_days"`
	ActivitySteps      []Step `mapstructure:"activity_steps"`

	DiversityWindowDays int     `mapstructure:"diversity_window_days"`
	DiversityPerType    float64 `mapstructure:"diversity_per_type"`

	ChurnBelow  float64 `mapstructure:"churn_below"`
	AtRiskBelow float64 `mapstructure:"at_risk_below"`

	// ScoreMaxAge is how long a stored score is served before recomputation
	ScoreMaxAge time.Duration `mapstructure:"score_max_age"`

	Stages StageConfig `mapstructure:"stages"`
	Alerts AlertConfig `mapstructure:"alerts"`
}

// DefaultConfig returns the default scoring thresholds
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Retention: 0.30,
			Adoption:  0.25,
			Activity:  0.25,
			Diversity: 0.20,
		},
		RetentionWindowDays: 30,
		RetentionSteps: []Step{
			{Min: 10, Score: 100},
			{Min: 5, Score: 75},
			{Min: 2, Score: 50},
			{Min: 1, Score: 25},
		},
		RetentionStaleDays: 14,
		RetentionStaleCap:  25,
		AdoptionSteps: []Step{
			{Min: 30, Score: 100},
			{Min: 15, Score: 75},
			{Min: 7, Score: 50},
			{Min: 3, Score: 25},
		},
		ActivityWindowDays: 7,
		ActivitySteps: []Step{
			{Min: 21, Score: 100},
			{Min: 14, Score: 80},
			{Min: 7, Score: 60},
			{Min: 3, Score: 40},
			{Min: 1, Score: 20},
		},
		DiversityWindowDays: 30,
		DiversityPerType:    25,
		ChurnBelow:          30,
		AtRiskBelow:         60,
		ScoreMaxAge:         time.Hour,
		Stages: StageConfig{
			RecurringActiveDays: 4,
			RecurringWindowDays: 30,
			HighValueVolume:     100,
		},
		Alerts: AlertConfig{
			AtRiskShare:      30,
			ChurnShare:       20,
			MinActiveShare:   50,
			ActiveWindowDays: 30,
			CohortWeeks:      5,
		},
	}
}

func stepScore(value float64, steps []Step) float64 {
	for _, s := range steps {
		if value >= s.Min {
			return s.Score
		}
	}
	return 0
}
