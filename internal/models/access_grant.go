package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccessGrant is a paid, time-bounded right to view a monetizable wallet
type AccessGrant struct {
	ID          string          `json:"id" db:"id"`
	WalletID    string          `json:"walletId" db:"wallet_id"`
	RequesterID string          `json:"requesterId" db:"requester_id"`
	PaymentRef  string          `json:"paymentRef" db:"payment_ref"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	GrantedAt   time.Time       `json:"grantedAt" db:"granted_at"`
	ExpiresAt   time.Time       `json:"expiresAt" db:"expires_at"`
}

// ActiveAt reports whether the grant is valid at the given time
func (g *AccessGrant) ActiveAt(t time.Time) bool {
	return !t.Before(g.GrantedAt) && t.Before(g.ExpiresAt)
}

// EarningsEntry is one append-only revenue split record
type EarningsEntry struct {
	ID            string          `json:"id" db:"id"`
	GrantID       string          `json:"grantId" db:"grant_id"`
	OwnerID       string          `json:"ownerId" db:"owner_id"`
	Gross         decimal.Decimal `json:"gross" db:"gross"`
	OwnerShare    decimal.Decimal `json:"ownerShare" db:"owner_share"`
	PlatformShare decimal.Decimal `json:"platformShare" db:"platform_share"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}

// OwnerEarnings is an owner's credited balance plus ledger history
type OwnerEarnings struct {
	OwnerID string          `json:"ownerId"`
	Balance decimal.Decimal `json:"balance"`
	Entries []EarningsEntry `json:"entries"`
}
