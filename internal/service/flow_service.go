package service

import (
	"context"
	"time"

	"github.com/wallet-insights/internal/circuitbreaker"
	apperrors "github.com/wallet-insights/internal/errors"
	"github.com/wallet-insights/internal/flow"
	"github.com/wallet-insights/internal/logging"
	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/retry"
)

// FlowService segments a wallet's transactions into privacy flows
type FlowService struct {
	wallets WalletRepository
	txStore TransactionStore
	cfg     flow.Config
	guard   *storeGuard
	now     func() time.Time
}

// NewFlowService creates a new flow service
func NewFlowService(
	wallets WalletRepository,
	txStore TransactionStore,
	cfg flow.Config,
	breaker *circuitbreaker.CircuitBreaker,
	retryCfg retry.Config,
) *FlowService {
	return &FlowService{
		wallets: wallets,
		txStore: txStore,
		cfg:     cfg,
		guard:   newStoreGuard(breaker, retryCfg),
		now:     time.Now,
	}
}

// DefaultWindow returns the window used when a caller gives no bounds:
// the maximum span ending now
func (s *FlowService) DefaultWindow() flow.Window {
	to := s.now().UTC()
	return flow.Window{From: to.Add(-s.cfg.MaxWindow), To: to}
}

// GetFlowAnalysis analyzes a wallet's transactions within window. A zero To
// means now and a zero From means the maximum span before To. An empty window
// yields (nil, nil).
func (s *FlowService) GetFlowAnalysis(ctx context.Context, walletID string, window flow.Window) (*models.FlowAnalysis, error) {
	if window.To.IsZero() {
		window.To = s.now().UTC()
	}
	if window.From.IsZero() {
		window.From = window.To.Add(-s.cfg.MaxWindow)
	}
	if err := window.Validate(s.cfg.MaxWindow); err != nil {
		return nil, apperrors.NewValidationError("window", err.Error())
	}

	if _, err := s.wallets.GetWallet(ctx, walletID); err != nil {
		return nil, err
	}

	var txs []models.Transaction
	err := s.guard.run(ctx, "list_transactions", func(ctx context.Context) error {
		var err error
		txs, err = s.txStore.ListTransactions(ctx, walletID, window.From, window.To)
		return err
	})
	if err != nil {
		return nil, err
	}

	analysis := flow.Analyze(walletID, txs, s.cfg)

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"walletId":     walletID,
		"transactions": len(txs),
	})
	if analysis == nil {
		logger.Debug("No transactions in window")
		return nil, nil
	}
	logger.WithField("flows", len(analysis.Flows)).Debug("Flow analysis computed")
	return analysis, nil
}
