package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wallet-insights/internal/config"
	apperrors "github.com/wallet-insights/internal/errors"
	"github.com/wallet-insights/internal/flow"
	"github.com/wallet-insights/internal/logging"
	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/privacy"
	"github.com/wallet-insights/internal/retry"
	"github.com/wallet-insights/internal/types"
)

// PrivacyService enforces wallet privacy modes and paid access
type PrivacyService struct {
	wallets      WalletRepository
	grants       GrantRepository
	stages       StageRepository
	payments     PaymentVerifier
	flows        *FlowService
	scoring      *ScoringService
	cache        ViewCache
	monetization config.MonetizationConfig
	retryCfg     retry.Config
	now          func() time.Time
}

// NewPrivacyService creates a new privacy service
func NewPrivacyService(
	wallets WalletRepository,
	grants GrantRepository,
	stages StageRepository,
	payments PaymentVerifier,
	flows *FlowService,
	scoring *ScoringService,
	cache ViewCache,
	monetization config.MonetizationConfig,
	retryCfg retry.Config,
) *PrivacyService {
	return &PrivacyService{
		wallets:      wallets,
		grants:       grants,
		stages:       stages,
		payments:     payments,
		flows:        flows,
		scoring:      scoring,
		cache:        cache,
		monetization: monetization,
		retryCfg:     retryCfg,
		now:          time.Now,
	}
}

// Input types

// PurchaseAccessInput represents a request to buy access to a monetizable wallet
type PurchaseAccessInput struct {
	WalletID    string `json:"walletId"`
	RequesterID string `json:"requesterId"`
	PaymentRef  string `json:"paymentRef"`
}

// Output types

// WalletViewResult is a privacy-gated wallet view. Exactly one of Full and
// Anonymized is set.
type WalletViewResult struct {
	Decision   privacy.Decision        `json:"decision"`
	Full       *models.WalletView      `json:"full,omitempty"`
	Anonymized *privacy.AnonymizedView `json:"anonymized,omitempty"`
}

// PurchaseResult is a created access grant with its revenue split
type PurchaseResult struct {
	Grant    models.AccessGrant   `json:"grant"`
	Earnings models.EarningsEntry `json:"earnings"`
}

// CheckAccess decides access using the caller-supplied payment state. The
// privacy mode is read from the wallet repository on every call.
func (s *PrivacyService) CheckAccess(ctx context.Context, walletID, requesterID string, paid bool) (*privacy.Decision, error) {
	wallet, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	decision := privacy.Decide(*wallet, requesterID, paid)
	return &decision, nil
}

// ResolveAccess decides access, deriving payment state from active grants
func (s *PrivacyService) ResolveAccess(ctx context.Context, walletID, requesterID string) (*privacy.Decision, *models.Wallet, error) {
	wallet, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, nil, err
	}

	paid := false
	if wallet.PrivacyMode == types.PrivacyMonetizable && requesterID != "" && requesterID != wallet.OwnerID {
		grant, err := s.grants.FindActiveGrant(ctx, walletID, requesterID, s.now().UTC())
		if err != nil {
			return nil, nil, err
		}
		paid = grant != nil
	}

	decision := privacy.Decide(*wallet, requesterID, paid)
	return &decision, wallet, nil
}

// RequireAccess resolves access and turns a denial into an error
func (s *PrivacyService) RequireAccess(ctx context.Context, walletID, requesterID string) (*privacy.Decision, *models.Wallet, error) {
	decision, wallet, err := s.ResolveAccess(ctx, walletID, requesterID)
	if err != nil {
		return nil, nil, err
	}
	if !decision.Allowed {
		if decision.PaymentRequired {
			return decision, wallet, apperrors.NewPaymentRequiredError(walletID)
		}
		return decision, wallet, apperrors.NewUnauthorizedError("wallet is private")
	}
	return decision, wallet, nil
}

// GetWalletView composes flows, productivity and stages for a wallet and
// returns the projection the requester is allowed to see
func (s *PrivacyService) GetWalletView(ctx context.Context, walletID, requesterID string) (*WalletViewResult, error) {
	decision, wallet, err := s.RequireAccess(ctx, walletID, requesterID)
	if err != nil {
		return nil, err
	}

	analysis, err := s.flows.GetFlowAnalysis(ctx, walletID, flow.Window{})
	if err != nil {
		return nil, err
	}
	score, err := s.scoring.GetOrComputeProductivity(ctx, walletID)
	if err != nil {
		return nil, err
	}
	stages, err := s.stages.ListStages(ctx, walletID)
	if err != nil {
		return nil, err
	}

	view := models.WalletView{
		WalletID:     wallet.ID,
		Address:      wallet.Address,
		ProjectID:    wallet.ProjectID,
		OwnerID:      wallet.OwnerID,
		PrivacyMode:  wallet.PrivacyMode,
		Flows:        analysis,
		Productivity: score,
		Stages:       stages,
	}

	result := &WalletViewResult{Decision: *decision}
	if decision.DataLevel == types.DataLevelFull {
		result.Full = &view
	} else {
		anon := privacy.Anonymize(view)
		result.Anonymized = &anon
	}
	return result, nil
}

// SetPrivacyMode changes a wallet's privacy mode. Only the owner may change it.
// The project's cached views are dropped before returning so the next
// aggregate read reflects the new mode.
func (s *PrivacyService) SetPrivacyMode(ctx context.Context, walletID, actorID, mode string) (*models.PrivacyAuditEntry, error) {
	newMode, err := types.ParsePrivacyMode(mode)
	if err != nil {
		return nil, apperrors.NewValidationError("mode", err.Error())
	}

	wallet, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if actorID == "" || actorID != wallet.OwnerID {
		return nil, apperrors.NewUnauthorizedError("only the wallet owner may change its privacy mode")
	}

	entry, err := s.wallets.SetPrivacyMode(ctx, walletID, newMode, actorID)
	if err != nil {
		return nil, err
	}

	err = retry.Do(ctx, s.retryCfg, "invalidate_project_views", func(ctx context.Context) error {
		_, err := s.cache.InvalidateProject(ctx, wallet.ProjectID)
		return err
	})
	if err != nil {
		return nil, apperrors.NewInternalError("privacy mode saved but cached views could not be cleared", err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"walletId":     walletID,
		"previousMode": entry.PreviousMode,
		"newMode":      entry.NewMode,
	}).Info("Privacy mode changed")
	return entry, nil
}

// PurchaseAccess verifies a payment for a monetizable wallet and records a
// time-bounded grant plus the owner's share of the revenue. A purchase made
// while a grant is still active extends access from that grant's expiry.
func (s *PrivacyService) PurchaseAccess(ctx context.Context, input PurchaseAccessInput) (*PurchaseResult, error) {
	if strings.TrimSpace(input.RequesterID) == "" {
		return nil, apperrors.NewValidationError("requesterId", "is required")
	}
	if strings.TrimSpace(input.PaymentRef) == "" {
		return nil, apperrors.NewValidationError("paymentRef", "is required")
	}

	wallet, err := s.wallets.GetWallet(ctx, input.WalletID)
	if err != nil {
		return nil, err
	}
	if wallet.PrivacyMode != types.PrivacyMonetizable {
		return nil, apperrors.NewValidationError("walletId", "wallet is not monetizable")
	}
	if input.RequesterID == wallet.OwnerID {
		return nil, apperrors.NewValidationError("requesterId", "owners already have full access")
	}

	amount, err := s.payments.VerifyPayment(ctx, input.PaymentRef, wallet.ID, input.RequesterID)
	if err != nil {
		payErr := apperrors.NewPaymentRequiredError(wallet.ID)
		payErr.Cause = err
		return nil, payErr
	}
	if !amount.IsPositive() {
		return nil, apperrors.NewValidationError("paymentRef", "payment amount must be positive")
	}

	now := s.now().UTC()
	start := now
	active, err := s.grants.FindActiveGrant(ctx, wallet.ID, input.RequesterID, now)
	if err != nil {
		return nil, err
	}
	if active != nil {
		start = active.ExpiresAt
	}

	grant := models.AccessGrant{
		ID:          uuid.New().String(),
		WalletID:    wallet.ID,
		RequesterID: input.RequesterID,
		PaymentRef:  input.PaymentRef,
		Amount:      amount,
		GrantedAt:   now,
		ExpiresAt:   start.Add(s.monetization.GrantDuration),
	}

	ownerShare, platformShare := SplitRevenue(amount, s.monetization.OwnerShare)
	entry := models.EarningsEntry{
		ID:            uuid.New().String(),
		GrantID:       grant.ID,
		OwnerID:       wallet.OwnerID,
		Gross:         amount,
		OwnerShare:    ownerShare,
		PlatformShare: platformShare,
		CreatedAt:     now,
	}

	if err := s.grants.CreateGrantWithEarnings(ctx, &grant, &entry); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"walletId":    wallet.ID,
		"requesterId": input.RequesterID,
		"amount":      amount.String(),
		"expiresAt":   grant.ExpiresAt,
	}).Info("Access grant created")
	return &PurchaseResult{Grant: grant, Earnings: entry}, nil
}

// GetEarnings returns an owner's balance and ledger. Users can only read their own.
func (s *PrivacyService) GetEarnings(ctx context.Context, ownerID, requesterID string) (*models.OwnerEarnings, error) {
	if requesterID == "" || requesterID != ownerID {
		return nil, apperrors.NewUnauthorizedError("earnings are visible to their owner only")
	}
	return s.grants.GetEarnings(ctx, ownerID)
}

// SplitRevenue divides a gross amount into owner and platform shares. The
// owner share is rounded to 8 places and the platform takes the remainder,
// so the two always sum to gross.
func SplitRevenue(gross decimal.Decimal, ownerShare float64) (decimal.Decimal, decimal.Decimal) {
	owner := gross.Mul(decimal.NewFromFloat(ownerShare)).Round(8)
	return owner, gross.Sub(owner)
}

// RequireProjectOwner fails unless requesterID owns the project
func (s *PrivacyService) RequireProjectOwner(ctx context.Context, projectID, requesterID string) error {
	project, err := s.wallets.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if requesterID == "" || requesterID != project.OwnerID {
		return apperrors.NewUnauthorizedError("only the project owner can perform this operation")
	}
	return nil
}
