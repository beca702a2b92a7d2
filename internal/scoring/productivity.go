package scoring

import (
	"math"
	"time"

	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/types"
)

const day = 24 * time.Hour

// DayOf truncates t to its UTC calendar day
func DayOf(t time.Time) time.Time {
	return t.UTC().Truncate(day)
}

// inTrailing reports whether date falls within the n calendar days ending on today
func inTrailing(date, today time.Time, n int) bool {
	d := DayOf(date)
	return !d.After(today) && today.Sub(d) < time.Duration(n)*day
}

// RetentionScore scores returning activity in the trailing window. A wallet
// whose last active day is older than the stale limit is capped.
func RetentionScore(rollups []models.ActivityRollup, now time.Time, cfg Config) float64 {
	today := DayOf(now)
	returning := 0
	var lastActive time.Time
	for i := range rollups {
		r := &rollups[i]
		if !r.IsActive {
			continue
		}
		if d := DayOf(r.Date); d.After(lastActive) && !d.After(today) {
			lastActive = d
		}
		if r.IsReturning && inTrailing(r.Date, today, cfg.RetentionWindowDays) {
			returning++
		}
	}

	score := stepScore(float64(returning), cfg.RetentionSteps)
	if !lastActive.IsZero() && today.Sub(lastActive) > time.Duration(cfg.RetentionStaleDays)*day {
		score = math.Min(score, cfg.RetentionStaleCap)
	}
	return score
}

// AdoptionScore scores lifetime active days
func AdoptionScore(rollups []models.ActivityRollup, cfg Config) float64 {
	active := 0
	for i := range rollups {
		if rollups[i].IsActive {
			active++
		}
	}
	return stepScore(float64(active), cfg.AdoptionSteps)
}

// ActivityScore scores transaction volume in the trailing activity window
func ActivityScore(rollups []models.ActivityRollup, now time.Time, cfg Config) float64 {
	today := DayOf(now)
	var txs uint64
	for i := range rollups {
		if inTrailing(rollups[i].Date, today, cfg.ActivityWindowDays) {
			txs += uint64(rollups[i].TxCount)
		}
	}
	return stepScore(float64(txs), cfg.ActivitySteps)
}

// DiversityScore awards points per distinct transaction category used in the trailing window
func DiversityScore(rollups []models.ActivityRollup, now time.Time, cfg Config) float64 {
	today := DayOf(now)
	var sum models.TypeCounts
	for i := range rollups {
		r := &rollups[i]
		if !inTrailing(r.Date, today, cfg.DiversityWindowDays) {
			continue
		}
		sum.Transfer += r.TypeCounts.Transfer
		sum.Shield += r.TypeCounts.Shield
		sum.Unshield += r.TypeCounts.Unshield
		sum.Shielded += r.TypeCounts.Shielded
		sum.Swap += r.TypeCounts.Swap
	}

	distinct := 0
	for _, t := range types.AllTransactionTypes {
		if sum.Count(t) > 0 {
			distinct++
		}
	}
	return math.Min(float64(distinct)*cfg.DiversityPerType, 100)
}

// Status maps a total score to its status and risk level
func Status(total float64, cfg Config) (types.ScoreStatus, types.RiskLevel) {
	switch {
	case total < cfg.ChurnBelow:
		return types.StatusChurn, types.RiskHigh
	case total < cfg.AtRiskBelow:
		return types.StatusAtRisk, types.RiskMedium
	default:
		return types.StatusHealthy, types.RiskLow
	}
}

// Compute scores a wallet's rollups at the reference time now
func Compute(walletID string, rollups []models.ActivityRollup, now time.Time, cfg Config) models.ProductivityScore {
	s := models.ProductivityScore{
		WalletID:       walletID,
		RetentionScore: bound(RetentionScore(rollups, now, cfg)),
		AdoptionScore:  bound(AdoptionScore(rollups, cfg)),
		ActivityScore:  bound(ActivityScore(rollups, now, cfg)),
		DiversityScore: bound(DiversityScore(rollups, now, cfg)),
		ComputedAt:     now.UTC(),
	}

	total := s.RetentionScore*cfg.Weights.Retention +
		s.AdoptionScore*cfg.Weights.Adoption +
		s.ActivityScore*cfg.Weights.Activity +
		s.DiversityScore*cfg.Weights.Diversity
	s.TotalScore = bound(math.Round(total*100) / 100)
	s.Status, s.RiskLevel = Status(s.TotalScore, cfg)

	return s
}

func bound(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
