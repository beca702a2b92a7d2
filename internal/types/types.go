// Package types provides common type definitions for the wallet analytics engine.
package types

import "fmt"

// PrivacyMode represents the visibility tier of a wallet
type PrivacyMode string

const (
	// PrivacyPrivate hides the wallet from everyone except its owner
	PrivacyPrivate PrivacyMode = "private"
	// PrivacyPublic exposes an anonymized projection to anyone
	PrivacyPublic PrivacyMode = "public"
	// PrivacyMonetizable exposes an anonymized projection to requesters holding a paid grant
	PrivacyMonetizable PrivacyMode = "monetizable"
)

// Valid reports whether the mode is one of the known privacy modes
func (m PrivacyMode) Valid() bool {
	switch m {
	case PrivacyPrivate, PrivacyPublic, PrivacyMonetizable:
		return true
	}
	return false
}

// ParsePrivacyMode parses a string into a PrivacyMode
func ParsePrivacyMode(s string) (PrivacyMode, error) {
	mode := PrivacyMode(s)
	if !mode.Valid() {
		return "", fmt.Errorf("unknown privacy mode: %q", s)
	}
	return mode, nil
}

// TransactionType represents the category of a wallet transaction
type TransactionType string

const (
	// TxTypeTransfer is a plain transparent transfer
	TxTypeTransfer TransactionType = "transfer"
	// TxTypeShield moves funds from transparent into a shielded pool
	TxTypeShield TransactionType = "shield"
	// TxTypeUnshield moves funds out of a shielded pool
	TxTypeUnshield TransactionType = "unshield"
	// TxTypeShielded is a fully shielded transfer
	TxTypeShielded TransactionType = "shielded"
	// TxTypeSwap is a cross-asset swap
	TxTypeSwap TransactionType = "swap"
)

// AllTransactionTypes lists every transaction category in a stable order
var AllTransactionTypes = []TransactionType{
	TxTypeTransfer,
	TxTypeShield,
	TxTypeUnshield,
	TxTypeShielded,
	TxTypeSwap,
}

// TransitionType represents the privacy transition a transaction performs
type TransitionType string

const (
	TransitionTransparentToShielded    TransitionType = "transparent_to_shielded"
	TransitionShieldedToTransparent    TransitionType = "shielded_to_transparent"
	TransitionShieldedToShielded       TransitionType = "shielded_to_shielded"
	TransitionTransparentToTransparent TransitionType = "transparent_to_transparent"
)

// FlowType represents the classification of a privacy flow
type FlowType string

const (
	FlowTransparentOnly   FlowType = "transparent_only"
	FlowAccumulation      FlowType = "accumulation"
	FlowMixing            FlowType = "mixing"
	FlowHolding           FlowType = "holding"
	FlowSpending          FlowType = "spending"
	FlowInternalShielded  FlowType = "internal_shielded"
	FlowSingleTransaction FlowType = "single_transaction"
)

// AllFlowTypes lists every flow classification
var AllFlowTypes = []FlowType{
	FlowTransparentOnly,
	FlowAccumulation,
	FlowMixing,
	FlowHolding,
	FlowSpending,
	FlowInternalShielded,
	FlowSingleTransaction,
}

// ComplexityTier represents how many transactions a flow spans
type ComplexityTier string

const (
	ComplexitySimple   ComplexityTier = "simple"
	ComplexityModerate ComplexityTier = "moderate"
	ComplexityComplex  ComplexityTier = "complex"
	ComplexityAdvanced ComplexityTier = "advanced"
)

// PatternTag represents the dominant behavioral pattern of a wallet
type PatternTag string

const (
	PatternPrivacyNative   PatternTag = "privacy_native"
	PatternAccumulator     PatternTag = "accumulator"
	PatternHolder          PatternTag = "holder"
	PatternCycler          PatternTag = "cycler"
	PatternMixer           PatternTag = "mixer"
	PatternTransparentOnly PatternTag = "transparent_only"
	PatternOccasional      PatternTag = "occasional"
)

// EngagementTier represents the predicted engagement level of a wallet
type EngagementTier string

const (
	EngagementHigh    EngagementTier = "high"
	EngagementMedium  EngagementTier = "medium"
	EngagementLow     EngagementTier = "low"
	EngagementDormant EngagementTier = "dormant"
)

// ScoreStatus represents the health bucket of a productivity score
type ScoreStatus string

const (
	StatusHealthy ScoreStatus = "healthy"
	StatusAtRisk  ScoreStatus = "at_risk"
	StatusChurn   ScoreStatus = "churn"
)

// RiskLevel represents the churn risk attached to a productivity score
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// StageName represents an adoption milestone
type StageName string

const (
	StageCreated      StageName = "created"
	StageFirstTx      StageName = "first_tx"
	StageFeatureUsage StageName = "feature_usage"
	StageRecurring    StageName = "recurring"
	StageHighValue    StageName = "high_value"
)

// OrderedStages is the fixed adoption funnel order
var OrderedStages = []StageName{
	StageCreated,
	StageFirstTx,
	StageFeatureUsage,
	StageRecurring,
	StageHighValue,
}

// Index returns the position of the stage in the funnel, or -1 if unknown
func (s StageName) Index() int {
	for i, stage := range OrderedStages {
		if stage == s {
			return i
		}
	}
	return -1
}

// DataLevel represents how much of a wallet's data a requester may see
type DataLevel string

const (
	DataLevelFull       DataLevel = "full"
	DataLevelAnonymized DataLevel = "anonymized"
	DataLevelNone       DataLevel = "none"
)

// AccessReason explains an access decision
type AccessReason string

const (
	ReasonOwner           AccessReason = "owner"
	ReasonPrivate         AccessReason = "private"
	ReasonPublic          AccessReason = "public"
	ReasonPaidAccess      AccessReason = "paid_access"
	ReasonPaymentRequired AccessReason = "payment_required"
)

// Metric represents a time-series metric
type Metric string

const (
	MetricTransactions     Metric = "transactions"
	MetricVolume           Metric = "volume"
	MetricFees             Metric = "fees"
	MetricActiveWallets    Metric = "active_wallets"
	MetricReturningWallets Metric = "returning_wallets"
	MetricNewWallets       Metric = "new_wallets"
)

// ParseMetric parses a string into a Metric
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricTransactions, MetricVolume, MetricFees, MetricActiveWallets, MetricReturningWallets, MetricNewWallets:
		return m, nil
	}
	return "", fmt.Errorf("unknown metric: %q", s)
}

// ExportFormat represents the rendering of an exported report
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// ParseExportFormat parses a string into an ExportFormat
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(s); f {
	case ExportJSON, ExportCSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format: %q", s)
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
