// Package privacy decides who may see a wallet's analytics and in what form.
package privacy

import (
	"time"

	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/types"
)

// Decision is the outcome of an access check
type Decision struct {
	Allowed         bool               `json:"allowed"`
	DataLevel       types.DataLevel    `json:"dataLevel"`
	Reason          types.AccessReason `json:"reason"`
	PaymentRequired bool               `json:"paymentRequired"`
}

// Decide applies the wallet's privacy mode to a requester.
// paid means the requester holds an active access grant for the wallet.
func Decide(wallet models.Wallet, requesterID string, paid bool) Decision {
	if requesterID != "" && requesterID == wallet.OwnerID {
		return Decision{Allowed: true, DataLevel: types.DataLevelFull, Reason: types.ReasonOwner}
	}

	switch wallet.PrivacyMode {
	case types.PrivacyPublic:
		return Decision{Allowed: true, DataLevel: types.DataLevelAnonymized, Reason: types.ReasonPublic}
	case types.PrivacyMonetizable:
		if paid {
			return Decision{Allowed: true, DataLevel: types.DataLevelAnonymized, Reason: types.ReasonPaidAccess}
		}
		return Decision{DataLevel: types.DataLevelNone, Reason: types.ReasonPaymentRequired, PaymentRequired: true}
	default:
		// private and unknown modes are denied
		return Decision{DataLevel: types.DataLevelNone, Reason: types.ReasonPrivate}
	}
}

// FilterAggregatable drops wallets that must not contribute to cross-wallet aggregates
func FilterAggregatable(wallets []models.Wallet) []models.Wallet {
	out := make([]models.Wallet, 0, len(wallets))
	for _, w := range wallets {
		if w.PrivacyMode == types.PrivacyPublic || w.PrivacyMode == types.PrivacyMonetizable {
			out = append(out, w)
		}
	}
	return out
}

// FlowSummary is a flow without its transactions
type FlowSummary struct {
	Type          types.FlowType       `json:"flowType"`
	Complexity    types.ComplexityTier `json:"complexity"`
	Transactions  int                  `json:"transactionCount"`
	ShieldedCount int                  `json:"shieldedCount"`
	DurationHours float64              `json:"durationHours"`
	HasEntry      bool                 `json:"hasEntry"`
	HasExit       bool                 `json:"hasExit"`
}

// ScoreSummary is a productivity score without the wallet reference
type ScoreSummary struct {
	TotalScore     float64           `json:"totalScore"`
	RetentionScore float64           `json:"retentionScore"`
	AdoptionScore  float64           `json:"adoptionScore"`
	ActivityScore  float64           `json:"activityScore"`
	DiversityScore float64           `json:"diversityScore"`
	Status         types.ScoreStatus `json:"status"`
	RiskLevel      types.RiskLevel   `json:"riskLevel"`
	ComputedAt     time.Time         `json:"computedAt"`
}

// StageSummary is an adoption stage without the wallet reference
type StageSummary struct {
	Stage                 types.StageName `json:"stage"`
	Achieved              bool            `json:"achieved"`
	TimeToAchieveHours    *float64        `json:"timeToAchieveHours,omitempty"`
	ConversionProbability float64         `json:"conversionProbability"`
}

// AnonymizedView is the projection of a wallet view shown to non-owners.
// It carries behavioral aggregates and no identifiers.
type AnonymizedView struct {
	PrivacyMode  types.PrivacyMode        `json:"privacyMode"`
	Pattern      *models.BehaviorPattern  `json:"pattern,omitempty"`
	Metrics      *models.FlowMetrics      `json:"metrics,omitempty"`
	Transitions  *models.TransitionCounts `json:"transitions,omitempty"`
	Flows        []FlowSummary            `json:"flows"`
	Productivity *ScoreSummary            `json:"productivity,omitempty"`
	Stages       []StageSummary           `json:"stages"`
}

// Anonymize strips wallet, address, project and owner identifiers from a view
func Anonymize(view models.WalletView) AnonymizedView {
	out := AnonymizedView{
		PrivacyMode: view.PrivacyMode,
		Flows:       []FlowSummary{},
		Stages:      make([]StageSummary, 0, len(view.Stages)),
	}

	if fa := view.Flows; fa != nil {
		pattern := fa.Pattern
		metrics := fa.Metrics
		transitions := fa.Transitions
		out.Pattern = &pattern
		out.Metrics = &metrics
		out.Transitions = &transitions
		for i := range fa.Flows {
			f := &fa.Flows[i]
			out.Flows = append(out.Flows, FlowSummary{
				Type:          f.Type,
				Complexity:    f.Complexity,
				Transactions:  len(f.Transactions),
				ShieldedCount: f.ShieldedCount,
				DurationHours: f.Duration.Hours(),
				HasEntry:      f.HasEntry,
				HasExit:       f.HasExit,
			})
		}
	}

	if p := view.Productivity; p != nil {
		out.Productivity = &ScoreSummary{
			TotalScore:     p.TotalScore,
			RetentionScore: p.RetentionScore,
			AdoptionScore:  p.AdoptionScore,
			ActivityScore:  p.ActivityScore,
			DiversityScore: p.DiversityScore,
			Status:         p.Status,
			RiskLevel:      p.RiskLevel,
			ComputedAt:     p.ComputedAt,
		}
	}

	for _, s := range view.Stages {
		out.Stages = append(out.Stages, StageSummary{
			Stage:                 s.Stage,
			Achieved:              s.Achieved(),
			TimeToAchieveHours:    s.TimeToAchieveHours,
			ConversionProbability: s.ConversionProbability,
		})
	}

	return out
}
