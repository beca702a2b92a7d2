package models

import (
	"time"

	"github.com/wallet-insights/internal/types"
)

// Flow is a contiguous run of a wallet's transactions bounded by shielded-pool
// entry and exit (or by the edges of the analysis window)
type Flow struct {
	Transactions  []Transaction          `json:"transactions"`
	Transitions   []types.TransitionType `json:"transitions"`
	StartTime     time.Time              `json:"startTime"`
	EndTime       time.Time              `json:"endTime"`
	Duration      time.Duration          `json:"duration"`
	Type          types.FlowType         `json:"flowType"`
	Complexity    types.ComplexityTier   `json:"complexity"`
	HasEntry      bool                   `json:"hasEntry"`
	HasExit       bool                   `json:"hasExit"`
	ShieldedCount int                    `json:"shieldedCount"`
}

// IsPrivacyFlow reports whether the flow contains any shielded activity
func (f *Flow) IsPrivacyFlow() bool {
	return f.ShieldedCount > 0
}

// TransitionCounts holds how many transactions performed each privacy transition
type TransitionCounts struct {
	TransparentToShielded    int `json:"transparentToShielded"`
	ShieldedToTransparent    int `json:"shieldedToTransparent"`
	ShieldedToShielded       int `json:"shieldedToShielded"`
	TransparentToTransparent int `json:"transparentToTransparent"`
}

// Add counts one transition
func (c *TransitionCounts) Add(t types.TransitionType) {
	switch t {
	case types.TransitionTransparentToShielded:
		c.TransparentToShielded++
	case types.TransitionShieldedToTransparent:
		c.ShieldedToTransparent++
	case types.TransitionShieldedToShielded:
		c.ShieldedToShielded++
	case types.TransitionTransparentToTransparent:
		c.TransparentToTransparent++
	}
}

// Total returns the number of counted transitions
func (c TransitionCounts) Total() int {
	return c.TransparentToShielded + c.ShieldedToTransparent + c.ShieldedToShielded + c.TransparentToTransparent
}

// TransitionShares holds transition percentages (0-100)
type TransitionShares struct {
	TransparentToShielded    float64 `json:"transparentToShielded"`
	ShieldedToTransparent    float64 `json:"shieldedToTransparent"`
	ShieldedToShielded       float64 `json:"shieldedToShielded"`
	TransparentToTransparent float64 `json:"transparentToTransparent"`
}

// FlowMetrics summarizes the flows of one analysis window
type FlowMetrics struct {
	TotalFlows             int                          `json:"totalFlows"`
	PrivacyFlows           int                          `json:"privacyFlows"`
	TransparentFlows       int                          `json:"transparentFlows"`
	TotalTransactions      int                          `json:"totalTransactions"`
	ShieldedTransactions   int                          `json:"shieldedTransactions"`
	ShieldedRatio          float64                      `json:"shieldedRatio"`
	ShieldedFlowRatio      float64                      `json:"shieldedFlowRatio"`
	AverageDurationHours   float64                      `json:"averageDurationHours"`
	TypeDistribution       map[types.FlowType]int       `json:"typeDistribution"`
	ComplexityDistribution map[types.ComplexityTier]int `json:"complexityDistribution"`
	PrivacyEfficiency      float64                      `json:"privacyEfficiency"`
}

// LoyaltyPrediction is derived from a wallet's behavior pattern and flow metrics
type LoyaltyPrediction struct {
	LoyaltyScore         float64              `json:"loyaltyScore"`
	RetentionProbability float64              `json:"retentionProbability"`
	EngagementTier       types.EngagementTier `json:"engagementTier"`
	RiskFactors          []string             `json:"riskFactors"`
	PositiveIndicators   []string             `json:"positiveIndicators"`
}

// BehaviorPattern is the classification of one wallet over one analysis window
type BehaviorPattern struct {
	Pattern    types.PatternTag  `json:"pattern"`
	Confidence float64           `json:"confidence"`
	Loyalty    LoyaltyPrediction `json:"loyaltyPrediction"`
}

// FlowAnalysis is the full result of segmenting and classifying a wallet
type FlowAnalysis struct {
	WalletID    string           `json:"walletId"`
	WindowFrom  time.Time        `json:"windowFrom"`
	WindowTo    time.Time        `json:"windowTo"`
	Flows       []Flow           `json:"flows"`
	Transitions TransitionCounts `json:"transitions"`
	Shares      TransitionShares `json:"transitionShares"`
	Metrics     FlowMetrics      `json:"metrics"`
	Pattern     BehaviorPattern  `json:"pattern"`
}
