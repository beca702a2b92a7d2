package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/wallet-insights/internal/flow"
	"github.com/wallet-insights/internal/scoring"
)

// Thresholds groups the tunable classification and scoring constants
type Thresholds struct {
	Flow    flow.Config    `mapstructure:"flow"`
	Scoring scoring.Config `mapstructure:"scoring"`
}

// DefaultThresholds returns the built-in thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		Flow:    flow.DefaultConfig(),
		Scoring: scoring.DefaultConfig(),
	}
}

// LoadThresholds reads a thresholds file over the defaults. Keys absent from
// the file keep their default value. An empty path returns the defaults.
func LoadThresholds(path string) (Thresholds, error) {
	t := DefaultThresholds()
	if path == "" {
		return t, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return t, fmt.Errorf("read thresholds %s: %w", path, err)
	}

	// decoding into a populated struct only overwrites keys present in the file
	if err := v.Unmarshal(&t); err != nil {
		return t, fmt.Errorf("decode thresholds %s: %w", path, err)
	}

	if err := validateThresholds(t); err != nil {
		return t, err
	}
	return t, nil
}

func validateThresholds(t Thresholds) error {
	w := t.Scoring.Weights
	sum := w.Retention + w.Adoption + w.Activity + w.Diversity
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("scoring weights must sum to 1, got %.3f", sum)
	}
	if t.Scoring.ChurnBelow > t.Scoring.AtRiskBelow {
		return fmt.Errorf("churn threshold %.1f exceeds at-risk threshold %.1f", t.Scoring.ChurnBelow, t.Scoring.AtRiskBelow)
	}
	f := t.Flow
	if f.SimpleMaxTx > f.ModerateMaxTx || f.ModerateMaxTx > f.ComplexMaxTx {
		return fmt.Errorf("complexity thresholds must be ascending")
	}
	return nil
}
