package flow

import (
	"fmt"
	"time"

	"github.com/wallet-insights/internal/models"
)

// Window is a closed time range [From, To] of a flow analysis
type Window struct {
	From time.Time
	To   time.Time
}

// Validate checks the window is ordered and no longer than maxSpan
func (w Window) Validate(maxSpan time.Duration) error {
	if w.From.After(w.To) {
		return fmt.Errorf("window start %s is after end %s", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
	}
	if maxSpan > 0 && w.To.Sub(w.From) > maxSpan {
		return fmt.Errorf("window span %s exceeds maximum %s", w.To.Sub(w.From), maxSpan)
	}
	return nil
}

// Analyze segments a wallet's ordered transactions and classifies the result.
// It returns nil when there are no transactions.
func Analyze(walletID string, txs []models.Transaction, cfg Config) *models.FlowAnalysis {
	if len(txs) == 0 {
		return nil
	}

	flows := Segment(txs, cfg)
	counts := CountTransitions(flows)
	shares := Shares(counts)
	metrics := ComputeMetrics(flows)

	pattern, confidence := ClassifyPattern(metrics, shares, cfg.Pattern)

	return &models.FlowAnalysis{
		WalletID:    walletID,
		WindowFrom:  txs[0].Timestamp,
		WindowTo:    txs[len(txs)-1].Timestamp,
		Flows:       flows,
		Transitions: counts,
		Shares:      shares,
		Metrics:     metrics,
		Pattern: models.BehaviorPattern{
			Pattern:    pattern,
			Confidence: confidence,
			Loyalty:    PredictLoyalty(pattern, metrics, cfg.Loyalty),
		},
	}
}
