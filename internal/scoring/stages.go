package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/types"
)

// trigger is the evaluation of one stage's condition against rollups
type trigger struct {
	at       *time.Time // first rollup date on which the condition held
	progress float64    // 0-1 progress toward the condition
}

// EvaluateStages advances a wallet's adoption stages in funnel order.
// A stage can only be achieved once its predecessor is, and an existing
// AchievedAt is never cleared or moved. It returns the full stage set and
// the subset whose stored state changed.
func EvaluateStages(
	walletID string,
	createdAt time.Time,
	rollups []models.ActivityRollup,
	existing []models.AdoptionStage,
	now time.Time,
	cfg Config,
) (all []models.AdoptionStage, updated []models.AdoptionStage) {
	sorted := make([]models.ActivityRollup, len(rollups))
	copy(sorted, rollups)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	prior := make(map[types.StageName]models.AdoptionStage, len(existing))
	for _, s := range existing {
		prior[s.Stage] = s
	}

	triggers := map[types.StageName]trigger{
		types.StageCreated:      {at: &createdAt, progress: 1},
		types.StageFirstTx:      firstTxTrigger(sorted),
		types.StageFeatureUsage: featureUsageTrigger(sorted),
		types.StageRecurring:    recurringTrigger(sorted, cfg.Stages),
		types.StageHighValue:    highValueTrigger(sorted, cfg.Stages),
	}

	var predAchieved *time.Time
	for i, name := range types.OrderedStages {
		old, existed := prior[name]
		next := models.AdoptionStage{
			WalletID:  walletID,
			Stage:     name,
			UpdatedAt: now.UTC(),
		}

		predOK := i == 0 || predAchieved != nil
		tr := triggers[name]

		switch {
		case existed && old.AchievedAt != nil:
			next.AchievedAt = old.AchievedAt
		case predOK && tr.at != nil:
			at := latest(*tr.at, createdAt)
			if predAchieved != nil {
				at = latest(at, *predAchieved)
			}
			next.AchievedAt = &at
		}

		if next.AchievedAt != nil {
			hours := math.Max(0, next.AchievedAt.Sub(createdAt).Hours())
			next.TimeToAchieveHours = &hours
			next.ConversionProbability = 1
		} else {
			p := 0.8 * tr.progress
			if predOK {
				p += 0.2
			}
			next.ConversionProbability = math.Max(0, math.Min(1, p))
		}

		all = append(all, next)
		if !existed || changed(old, next) {
			updated = append(updated, next)
		}
		predAchieved = next.AchievedAt
	}

	return all, updated
}

// InitialStages returns the stage rows of a newly created wallet
func InitialStages(walletID string, createdAt time.Time, now time.Time, cfg Config) []models.AdoptionStage {
	all, _ := EvaluateStages(walletID, createdAt, nil, nil, now, cfg)
	return all
}

func changed(old, next models.AdoptionStage) bool {
	if (old.AchievedAt == nil) != (next.AchievedAt == nil) {
		return true
	}
	return math.Abs(old.ConversionProbability-next.ConversionProbability) > 1e-9
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func firstTxTrigger(rollups []models.ActivityRollup) trigger {
	for i := range rollups {
		if rollups[i].TxCount > 0 {
			d := rollups[i].Date
			return trigger{at: &d, progress: 1}
		}
	}
	return trigger{}
}

func featureUsageTrigger(rollups []models.ActivityRollup) trigger {
	for i := range rollups {
		if rollups[i].TypeCounts.UsesPrivacyFeatures() {
			d := rollups[i].Date
			return trigger{at: &d, progress: 1}
		}
	}
	return trigger{}
}

// recurringTrigger holds on the first rollup date whose trailing window
// contains the required number of active days
func recurringTrigger(rollups []models.ActivityRollup, cfg StageConfig) trigger {
	var active []time.Time
	for i := range rollups {
		if rollups[i].IsActive {
			active = append(active, DayOf(rollups[i].Date))
		}
	}

	best := 0
	start := 0
	for end, d := range active {
		for d.Sub(active[start]) >= time.Duration(cfg.RecurringWindowDays)*day {
			start++
		}
		n := end - start + 1
		if n > best {
			best = n
		}
		if n >= cfg.RecurringActiveDays {
			at := d
			return trigger{at: &at, progress: 1}
		}
	}

	if cfg.RecurringActiveDays <= 0 {
		return trigger{progress: 1}
	}
	return trigger{progress: float64(best) / float64(cfg.RecurringActiveDays)}
}

func highValueTrigger(rollups []models.ActivityRollup, cfg StageConfig) trigger {
	var volume float64
	for i := range rollups {
		volume += rollups[i].Volume
		if volume >= cfg.HighValueVolume {
			d := rollups[i].Date
			return trigger{at: &d, progress: 1}
		}
	}
	if cfg.HighValueVolume <= 0 {
		return trigger{progress: 1}
	}
	return trigger{progress: math.Min(1, volume/cfg.HighValueVolume)}
}
