package models

import (
	"time"

	"github.com/wallet-insights/internal/types"
)

// Project groups wallets under one owning user
type Project struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"ownerId" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Wallet is a tracked wallet with its ownership chain and privacy mode
type Wallet struct {
	ID          string            `json:"id" db:"id"`
	Address     string            `json:"address" db:"address"`
	ProjectID   string            `json:"projectId" db:"project_id"`
	OwnerID     string            `json:"ownerId" db:"owner_id"`
	PrivacyMode types.PrivacyMode `json:"privacyMode" db:"privacy_mode"`
	CreatedAt   time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time         `json:"updatedAt" db:"updated_at"`
}

// PrivacyAuditEntry is one append-only record of a privacy mode change
type PrivacyAuditEntry struct {
	ID           string            `json:"id" db:"id"`
	WalletID     string            `json:"walletId" db:"wallet_id"`
	PreviousMode types.PrivacyMode `json:"previousMode" db:"previous_mode"`
	NewMode      types.PrivacyMode `json:"newMode" db:"new_mode"`
	ActorID      string            `json:"actorId" db:"actor_id"`
	ChangedAt    time.Time         `json:"changedAt" db:"changed_at"`
}
