// Package models provides data models for the wallet analytics engine.
package models

import (
	"time"

	"github.com/wallet-insights/internal/types"
)

// Transaction represents an indexed wallet transaction stored in ClickHouse.
// Rows are owned by the indexer and are read-only to the engine.
type Transaction struct {
	WalletID    string                `json:"walletId" ch:"wallet_id"`
	TxID        string                `json:"txId" ch:"tx_id"`
	BlockHeight uint64                `json:"blockHeight" ch:"block_height"`
	Timestamp   time.Time             `json:"timestamp" ch:"timestamp"`
	Shielded    bool                  `json:"shielded" ch:"shielded"`
	PoolEntry   bool                  `json:"poolEntry" ch:"pool_entry"`
	PoolExit    bool                  `json:"poolExit" ch:"pool_exit"`
	Value       float64               `json:"value" ch:"value"`
	Fee         float64               `json:"fee" ch:"fee"`
	Type        types.TransactionType `json:"type" ch:"type"`
}

// IsShieldedLike reports whether the transaction touches a shielded pool
func (t *Transaction) IsShieldedLike() bool {
	return t.Shielded || t.PoolEntry || t.PoolExit
}

// Transition returns the privacy transition this transaction performs
func (t *Transaction) Transition() types.TransitionType {
	switch {
	case t.PoolEntry && !t.PoolExit:
		return types.TransitionTransparentToShielded
	case t.PoolExit && !t.PoolEntry:
		return types.TransitionShieldedToTransparent
	case t.IsShieldedLike():
		return types.TransitionShieldedToShielded
	default:
		return types.TransitionTransparentToTransparent
	}
}
