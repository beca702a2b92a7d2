package flow

import (
	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/types"
)

// Segment splits an ordered transaction sequence into contiguous flows.
// Every transaction lands in exactly one flow and flow order follows input order.
func Segment(txs []models.Transaction, cfg Config) []models.Flow {
	var (
		flows     []models.Flow
		open      []models.Transaction
		isPrivacy bool
	)

	closeOpen := func() {
		if len(open) == 0 {
			return
		}
		flows = append(flows, buildFlow(open, cfg))
		open = nil
		isPrivacy = false
	}

	for _, tx := range txs {
		shielded := tx.IsShieldedLike()

		if len(open) > 0 {
			switch {
			case !isPrivacy && shielded:
				// transparent run ends where shielded activity starts
				closeOpen()
			case isPrivacy && !shielded && len(open) >= 2:
				closeOpen()
			}
		}

		open = append(open, tx)
		if shielded {
			isPrivacy = true
			if tx.PoolExit {
				closeOpen()
			}
		}
	}
	closeOpen()

	return flows
}

func buildFlow(txs []models.Transaction, cfg Config) models.Flow {
	f := models.Flow{
		Transactions: txs,
		Transitions:  make([]types.TransitionType, len(txs)),
		StartTime:    txs[0].Timestamp,
		EndTime:      txs[len(txs)-1].Timestamp,
	}
	f.Duration = f.EndTime.Sub(f.StartTime)

	for i := range txs {
		tx := &txs[i]
		f.Transitions[i] = tx.Transition()
		if tx.PoolEntry {
			f.HasEntry = true
		}
		if tx.PoolExit {
			f.HasExit = true
		}
		if tx.IsShieldedLike() {
			f.ShieldedCount++
		}
	}

	f.Type = classify(&f, cfg)
	f.Complexity = cfg.Complexity(len(txs))
	return f
}

// classify assigns a flow type; the first matching rule wins
func classify(f *models.Flow, cfg Config) types.FlowType {
	switch {
	case f.ShieldedCount == 0:
		return types.FlowTransparentOnly
	case len(f.Transactions) == 1 && !f.HasEntry && !f.HasExit:
		return types.FlowSingleTransaction
	case f.HasEntry && f.HasExit && f.Duration > cfg.HoldingThreshold:
		return types.FlowHolding
	case f.HasEntry && f.HasExit:
		return types.FlowMixing
	case f.HasEntry:
		return types.FlowAccumulation
	case f.HasExit:
		return types.FlowSpending
	default:
		return types.FlowInternalShielded
	}
}
