package flow

import (
	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/types"
)

// CountTransitions counts the transition performed by every transaction in the flows
func CountTransitions(flows []models.Flow) models.TransitionCounts {
	var counts models.TransitionCounts
	for i := range flows {
		for _, t := range flows[i].Transitions {
			counts.Add(t)
		}
	}
	return counts
}

// Shares converts transition counts to percentages of all transactions
func Shares(c models.TransitionCounts) models.TransitionShares {
	total := c.Total()
	if total == 0 {
		return models.TransitionShares{}
	}
	pct := func(n int) float64 { return float64(n) / float64(total) * 100 }
	return models.TransitionShares{
		TransparentToShielded:    pct(c.TransparentToShielded),
		ShieldedToTransparent:    pct(c.ShieldedToTransparent),
		ShieldedToShielded:       pct(c.ShieldedToShielded),
		TransparentToTransparent: pct(c.TransparentToTransparent),
	}
}

// ComputeMetrics summarizes a window's flows
func ComputeMetrics(flows []models.Flow) models.FlowMetrics {
	m := models.FlowMetrics{
		TotalFlows:             len(flows),
		TypeDistribution:       make(map[types.FlowType]int),
		ComplexityDistribution: make(map[types.ComplexityTier]int),
	}

	var privacyDurationHours float64
	for i := range flows {
		f := &flows[i]
		m.TotalTransactions += len(f.Transactions)
		m.ShieldedTransactions += f.ShieldedCount
		m.TypeDistribution[f.Type]++
		m.ComplexityDistribution[f.Complexity]++

		if f.IsPrivacyFlow() {
			m.PrivacyFlows++
			privacyDurationHours += f.Duration.Hours()
		} else {
			m.TransparentFlows++
		}
	}

	if m.TotalTransactions > 0 {
		m.ShieldedRatio = float64(m.ShieldedTransactions) / float64(m.TotalTransactions)
	}
	if m.TotalFlows > 0 {
		m.ShieldedFlowRatio = float64(m.PrivacyFlows) / float64(m.TotalFlows)
	}
	if m.PrivacyFlows > 0 {
		m.AverageDurationHours = privacyDurationHours / float64(m.PrivacyFlows)
	}
	m.PrivacyEfficiency = privacyEfficiency(m)

	return m
}

// privacyEfficiency rewards shielded usage, flow type diversity and
// the prevalence of holding and mixing flows
func privacyEfficiency(m models.FlowMetrics) float64 {
	score := 50 * m.ShieldedRatio
	score += 25 * float64(len(m.TypeDistribution)) / float64(len(types.AllFlowTypes))
	if m.PrivacyFlows > 0 {
		deep := m.TypeDistribution[types.FlowHolding] + m.TypeDistribution[types.FlowMixing]
		score += 25 * float64(deep) / float64(m.PrivacyFlows)
	}
	return clamp(score, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
