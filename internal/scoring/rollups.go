package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/wallet-insights/internal/models"
)

// BuildRollups aggregates a wallet's transactions into one rollup per active UTC day.
// Rows come back in ascending date order. Every day after the first active day is returning.
func BuildRollups(walletID string, createdAt time.Time, txs []models.Transaction) []models.ActivityRollup {
	byDay := make(map[time.Time]*models.ActivityRollup)
	for i := range txs {
		tx := &txs[i]
		d := DayOf(tx.Timestamp)
		r, ok := byDay[d]
		if !ok {
			r = &models.ActivityRollup{WalletID: walletID, Date: d}
			byDay[d] = r
		}
		r.TxCount++
		r.Volume += math.Abs(tx.Value)
		r.FeeTotal += tx.Fee
		r.TypeCounts.Add(tx.Type)
	}

	out := make([]models.ActivityRollup, 0, len(byDay))
	for _, r := range byDay {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	created := DayOf(createdAt)
	for i := range out {
		out[i].IsActive = out[i].TxCount > 0
		out[i].IsReturning = i > 0
		days := int32(out[i].Date.Sub(created) / day)
		if days < 0 {
			days = 0
		}
		out[i].DaysSinceCreation = days
	}
	return out
}
