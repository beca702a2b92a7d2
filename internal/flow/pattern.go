package flow

import (
	"math"

	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/types"
)

// ClassifyPattern picks the dominant behavior pattern of a window.
// Rules are evaluated in order and the first match wins.
func ClassifyPattern(m models.FlowMetrics, s models.TransitionShares, cfg PatternConfig) (types.PatternTag, float64) {
	if m.ShieldedTransactions == 0 {
		return types.PatternTransparentOnly, 1
	}

	if m.ShieldedRatio >= cfg.PrivacyNativeRatio {
		return types.PatternPrivacyNative, m.ShieldedRatio
	}

	if s.ShieldedToShielded > cfg.AccumulatorShare {
		return types.PatternAccumulator, s.ShieldedToShielded / 100
	}

	if m.AverageDurationHours > cfg.HolderDurationHours {
		excess := (m.AverageDurationHours - cfg.HolderDurationHours) / cfg.HolderDurationHours
		return types.PatternHolder, clamp(0.5+0.5*excess, 0, 1)
	}

	if s.TransparentToShielded >= cfg.CyclingMinShare && s.ShieldedToTransparent >= cfg.CyclingMinShare {
		gap := math.Abs(s.TransparentToShielded - s.ShieldedToTransparent)
		if gap <= cfg.CyclerSymmetryPoints {
			return types.PatternCycler, clamp(1-gap/100, 0, 1)
		}
		return types.PatternMixer, clamp((s.TransparentToShielded+s.ShieldedToTransparent)/100, 0, 1)
	}

	return types.PatternOccasional, 0.5
}
