package models

import (
	"time"

	"github.com/wallet-insights/internal/types"
)

// TypeCounts holds per-category transaction counts for one rollup day
type TypeCounts struct {
	Transfer uint32 `json:"transfer" ch:"transfer_count"`
	Shield   uint32 `json:"shield" ch:"shield_count"`
	Unshield uint32 `json:"unshield" ch:"unshield_count"`
	Shielded uint32 `json:"shielded" ch:"shielded_count"`
	Swap     uint32 `json:"swap" ch:"swap_count"`
}

// Count returns the count for a transaction category
func (c TypeCounts) Count(t types.TransactionType) uint32 {
	switch t {
	case types.TxTypeTransfer:
		return c.Transfer
	case types.TxTypeShield:
		return c.Shield
	case types.TxTypeUnshield:
		return c.Unshield
	case types.TxTypeShielded:
		return c.Shielded
	case types.TxTypeSwap:
		return c.Swap
	}
	return 0
}

// Add increments the count for a transaction category.
// Unknown categories are counted as transfers.
func (c *TypeCounts) Add(t types.TransactionType) {
	switch t {
	case types.TxTypeShield:
		c.Shield++
	case types.TxTypeUnshield:
		c.Unshield++
	case types.TxTypeShielded:
		c.Shielded++
	case types.TxTypeSwap:
		c.Swap++
	default:
		c.Transfer++
	}
}

// UsesPrivacyFeatures reports whether any shielded-pool category was used
func (c TypeCounts) UsesPrivacyFeatures() bool {
	return c.Shield > 0 || c.Unshield > 0 || c.Shielded > 0
}

// ActivityRollup is a per wallet, per calendar day activity summary.
// One row exists per (wallet, date); rows are upserted idempotently.
type ActivityRollup struct {
	WalletID          string     `json:"walletId" ch:"wallet_id"`
	Date              time.Time  `json:"date" ch:"date"`
	TxCount           uint32     `json:"txCount" ch:"tx_count"`
	Volume            float64    `json:"volume" ch:"volume"`
	FeeTotal          float64    `json:"feeTotal" ch:"fee_total"`
	TypeCounts        TypeCounts `json:"typeCounts"`
	IsActive          bool       `json:"isActive" ch:"is_active"`
	IsReturning       bool       `json:"isReturning" ch:"is_returning"`
	DaysSinceCreation int32      `json:"daysSinceCreation" ch:"days_since_creation"`
}
