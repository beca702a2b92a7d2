package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/storage"
	"github.com/wallet-insights/internal/types"
)

// Repository interfaces for dependency injection

// TransactionStore reads indexed transactions and maintains activity rollups
type TransactionStore interface {
	ListTransactions(ctx context.Context, walletID string, from, to time.Time) ([]models.Transaction, error)
	ListRollups(ctx context.Context, walletID string) ([]models.ActivityRollup, error)
	ListProjectRollups(ctx context.Context, walletIDs []string, from, to time.Time) ([]models.ActivityRollup, error)
	UpsertRollups(ctx context.Context, rollups []models.ActivityRollup) error
}

// WalletRepository is the source of truth for wallet ownership and privacy mode
type WalletRepository interface {
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	GetWallet(ctx context.Context, walletID string) (*models.Wallet, error)
	ListProjectWallets(ctx context.Context, projectID string) ([]models.Wallet, error)
	SetPrivacyMode(ctx context.Context, walletID string, mode types.PrivacyMode, actorID string) (*models.PrivacyAuditEntry, error)
}

// ScoreRepository persists current productivity scores
type ScoreRepository interface {
	GetScore(ctx context.Context, walletID string) (*models.ProductivityScore, error)
	UpsertScore(ctx context.Context, score *models.ProductivityScore) error
	ListScores(ctx context.Context, walletIDs []string) (map[string]models.ProductivityScore, error)
}

// StageRepository persists adoption stages
type StageRepository interface {
	ListStages(ctx context.Context, walletID string) ([]models.AdoptionStage, error)
	ListProjectStages(ctx context.Context, walletIDs []string) (map[string][]models.AdoptionStage, error)
	UpsertStages(ctx context.Context, stages []models.AdoptionStage) error
}

// GrantRepository persists paid access grants and owner earnings
type GrantRepository interface {
	FindActiveGrant(ctx context.Context, walletID, requesterID string, at time.Time) (*models.AccessGrant, error)
	CreateGrantWithEarnings(ctx context.Context, grant *models.AccessGrant, entry *models.EarningsEntry) error
	GetEarnings(ctx context.Context, ownerID string) (*models.OwnerEarnings, error)
}

// ViewCache caches computed project views
type ViewCache interface {
	GetOrCompute(ctx context.Context, projectID, key string, compute storage.ComputeFunc) (*storage.ViewResult, error)
	InvalidateProject(ctx context.Context, projectID string) (int, error)
}

// PaymentVerifier confirms a payment reference and returns the settled amount
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, paymentRef, walletID, requesterID string) (decimal.Decimal, error)
}
