package flow

import (
	"fmt"

	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/types"
)

// PredictLoyalty derives a loyalty prediction from a pattern and the window's metrics
func PredictLoyalty(pattern types.PatternTag, m models.FlowMetrics, cfg LoyaltyConfig) models.LoyaltyPrediction {
	p := models.LoyaltyPrediction{
		RiskFactors:        []string{},
		PositiveIndicators: []string{},
	}
	score := cfg.BaseScore

	delta := cfg.PatternDeltas[pattern]
	score += delta
	switch {
	case delta > 0:
		p.PositiveIndicators = append(p.PositiveIndicators, fmt.Sprintf("%s behavior", pattern))
	case delta < 0:
		p.RiskFactors = append(p.RiskFactors, fmt.Sprintf("%s behavior", pattern))
	}

	if m.PrivacyFlows > 0 {
		switch {
		case m.AverageDurationHours > cfg.LongDurationHours:
			score += cfg.LongDurationBonus
			p.PositiveIndicators = append(p.PositiveIndicators, "long shielded holding periods")
		case m.AverageDurationHours < cfg.ShortDurationHours:
			score -= cfg.ShortDurationMalus
			p.RiskFactors = append(p.RiskFactors, "very short shielded periods")
		}
	}

	switch {
	case m.PrivacyEfficiency >= cfg.HighEfficiency:
		score += cfg.HighEfficiencyBonus
		p.PositiveIndicators = append(p.PositiveIndicators, "high privacy efficiency")
	case m.PrivacyEfficiency < cfg.LowEfficiency:
		score -= cfg.LowEfficiencyMalus
		p.RiskFactors = append(p.RiskFactors, "low privacy efficiency")
	}

	switch {
	case m.TotalFlows >= cfg.ManyFlows:
		score += cfg.ManyFlowsBonus
		p.PositiveIndicators = append(p.PositiveIndicators, "frequent activity")
	case m.TotalFlows <= cfg.FewFlows:
		score -= cfg.FewFlowsMalus
		p.RiskFactors = append(p.RiskFactors, "limited activity")
	}

	if m.TotalFlows > 0 {
		complexFlows := m.ComplexityDistribution[types.ComplexityComplex] + m.ComplexityDistribution[types.ComplexityAdvanced]
		if float64(complexFlows)/float64(m.TotalFlows) >= cfg.ComplexShare {
			score += cfg.ComplexShareBonus
			p.PositiveIndicators = append(p.PositiveIndicators, "sophisticated flow usage")
		}
	}

	p.LoyaltyScore = clamp(score, 0, 100)
	p.RetentionProbability = clamp(
		cfg.RetentionLoyaltyWeight*p.LoyaltyScore+(1-cfg.RetentionLoyaltyWeight)*100*m.ShieldedFlowRatio,
		0, 100,
	)
	p.EngagementTier = engagementTier(p.LoyaltyScore, cfg)

	return p
}

func engagementTier(score float64, cfg LoyaltyConfig) types.EngagementTier {
	switch {
	case score >= cfg.HighTier:
		return types.EngagementHigh
	case score >= cfg.MediumTier:
		return types.EngagementMedium
	case score >= cfg.LowTier:
		return types.EngagementLow
	default:
		return types.EngagementDormant
	}
}
