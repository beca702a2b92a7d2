// Package flow segments a wallet's ordered transactions into privacy flows
// and classifies the wallet's behavior from them.
package flow

import (
	"time"

	"github.com/wallet-insights/internal/types"
)

// Config holds the thresholds used by segmentation, classification and loyalty prediction
type Config struct {
	// HoldingThreshold separates holding flows from mixing flows
	HoldingThreshold time.Duration `mapstructure:"holding_threshold"`

	SimpleMaxTx   int `mapstructure:"simple_max_tx"`
	ModerateMaxTx int `mapstructure:"moderate_max_tx"`
	ComplexMaxTx  int `mapstructure:"complex_max_tx"`

	Pattern PatternConfig `mapstructure:"pattern"`
	Loyalty LoyaltyConfig `mapstructure:"loyalty"`

	// MaxWindow bounds the span of an analysis window
	MaxWindow time.Duration `mapstructure:"max_window"`
}

// PatternConfig holds behavior pattern thresholds. Shares are percentages (0-100).
type PatternConfig struct {
	PrivacyNativeRatio   float64 `mapstructure:"privacy_native_ratio"`
	AccumulatorShare     float64 `mapstructure:"accumulator_share"`
	HolderDurationHours  float64 `mapstructure:"holder_duration_hours"`
	CyclingMinShare      float64 `mapstructure:"cycling_min_share"`
	CyclerSymmetryPoints float64 `mapstructure:"cycler_symmetry_points"`
}

// LoyaltyConfig holds loyalty prediction deltas and thresholds
type LoyaltyConfig struct {
	BaseScore     float64                      `mapstructure:"base_score"`
	PatternDeltas map[types.PatternTag]float64 `mapstructure:"pattern_deltas"`

	LongDurationHours   float64 `mapstructure:"long_duration_hours"`
	LongDurationBonus   float64 `mapstructure:"long_duration_bonus"`
	ShortDurationHours  float64 `mapstructure:"short_duration_hours"`
	ShortDurationMalus  float64 `mapstructure:"short_duration_malus"`
	HighEfficiency      float64 `mapstructure:"high_efficiency"`
	HighEfficiencyBonus float64 `mapstructure:"high_efficiency_bonus"`
	LowEfficiency       float64 `mapstructure:"low_efficiency"`
	LowEfficiencyMalus  float64 `mapstructure:"low_efficiency_malus"`
	ManyFlows           int     `mapstructure:"many_flows"`
	ManyFlowsBonus      float64 `mapstructure:"many_flows_bonus"`
	FewFlows            int     `mapstructure:"few_flows"`
	FewFlowsMalus       float64 `mapstructure:"few_flows_malus"`
	ComplexShare        float64 `mapstructure:"complex_share"`
	ComplexShareBonus   float64 `mapstructure:"complex_share_bonus"`

	// RetentionLoyaltyWeight blends loyalty with the shielded flow ratio
	RetentionLoyaltyWeight float64 `mapstructure:"retention_loyalty_weight"`

	HighTier   float64 `mapstructure:"high_tier"`
	MediumTier float64 `mapstructure:"medium_tier"`
	LowTier    float64 `mapstructure:"low_tier"`
}

// DefaultConfig returns the default flow thresholds
func DefaultConfig() Config {
	return Config{
		HoldingThreshold: 24 * time.Hour,
		SimpleMaxTx:      2,
		ModerateMaxTx:    5,
		ComplexMaxTx:     10,
		Pattern: PatternConfig{
			PrivacyNativeRatio:   0.8,
			AccumulatorShare:     50,
			HolderDurationHours:  24,
			CyclingMinShare:      20,
			CyclerSymmetryPoints: 10,
		},
		Loyalty: LoyaltyConfig{
			BaseScore: 50,
			PatternDeltas: map[types.PatternTag]float64{
				types.PatternPrivacyNative:   20,
				types.PatternHolder:          15,
				types.PatternAccumulator:     10,
				types.PatternCycler:          5,
				types.PatternMixer:           0,
				types.PatternOccasional:      -5,
				types.PatternTransparentOnly: -15,
			},
			LongDurationHours:      72,
			LongDurationBonus:      10,
			ShortDurationHours:     1,
			ShortDurationMalus:     5,
			HighEfficiency:         70,
			HighEfficiencyBonus:    10,
			LowEfficiency:          30,
			LowEfficiencyMalus:     10,
			ManyFlows:              10,
			ManyFlowsBonus:         10,
			FewFlows:               2,
			FewFlowsMalus:          10,
			ComplexShare:           0.3,
			ComplexShareBonus:      5,
			RetentionLoyaltyWeight: 0.7,
			HighTier:               75,
			MediumTier:             50,
			LowTier:                25,
		},
		MaxWindow: 365 * 24 * time.Hour,
	}
}

// Complexity maps a flow's transaction count to its complexity tier
func (c Config) Complexity(txCount int) types.ComplexityTier {
	switch {
	case txCount <= c.SimpleMaxTx:
		return types.ComplexitySimple
	case txCount <= c.ModerateMaxTx:
		return types.ComplexityModerate
	case txCount <= c.ComplexMaxTx:
		return types.ComplexityComplex
	default:
		return types.ComplexityAdvanced
	}
}
