package service

import (
	"context"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/wallet-insights/internal/circuitbreaker"
	"github.com/wallet-insights/internal/config"
	apperrors "github.com/wallet-insights/internal/errors"
	"github.com/wallet-insights/internal/logging"
	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/retry"
	"github.com/wallet-insights/internal/scoring"
)

// ScoringService computes productivity scores and advances adoption stages
type ScoringService struct {
	wallets WalletRepository
	txStore TransactionStore
	scores  ScoreRepository
	stages  StageRepository
	cache   ViewCache
	cfg     scoring.Config
	batch   config.BatchConfig
	guard   *storeGuard
	now     func() time.Time
}

// NewScoringService creates a new scoring service
func NewScoringService(
	wallets WalletRepository,
	txStore TransactionStore,
	scores ScoreRepository,
	stages StageRepository,
	cache ViewCache,
	cfg scoring.Config,
	batch config.BatchConfig,
	breaker *circuitbreaker.CircuitBreaker,
	retryCfg retry.Config,
) *ScoringService {
	return &ScoringService{
		wallets: wallets,
		txStore: txStore,
		scores:  scores,
		stages:  stages,
		cache:   cache,
		cfg:     cfg,
		batch:   batch,
		guard:   newStoreGuard(breaker, retryCfg),
		now:     time.Now,
	}
}

// WalletOutcome is the result of recomputing one wallet in a batch
type WalletOutcome struct {
	WalletID   string        `json:"walletId"`
	Succeeded  bool          `json:"succeeded"`
	TotalScore *float64      `json:"totalScore,omitempty"`
	Status     string        `json:"status,omitempty"`
	Stages     int           `json:"stagesUpdated"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"durationMs"`
}

// BatchResult summarizes a bulk recompute
type BatchResult struct {
	ProjectID string          `json:"projectId"`
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Outcomes  []WalletOutcome `json:"outcomes"`
}

// GetOrComputeProductivity returns the stored score while it is younger than
// ScoreMaxAge and recomputes it otherwise
func (s *ScoringService) GetOrComputeProductivity(ctx context.Context, walletID string) (*models.ProductivityScore, error) {
	wallet, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	current, err := s.scores.GetScore(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if current != nil && s.now().Sub(current.ComputedAt) < s.cfg.ScoreMaxAge {
		return current, nil
	}

	rollups, err := s.loadRollups(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return s.recompute(ctx, wallet, rollups)
}

// RecomputeProductivity recomputes and overwrites a wallet's score
func (s *ScoringService) RecomputeProductivity(ctx context.Context, walletID string) (*models.ProductivityScore, error) {
	wallet, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	rollups, err := s.loadRollups(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return s.recompute(ctx, wallet, rollups)
}

// AdvanceAdoptionStages evaluates a wallet's funnel and returns the stages
// whose state changed
func (s *ScoringService) AdvanceAdoptionStages(ctx context.Context, walletID string) ([]models.AdoptionStage, error) {
	wallet, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	rollups, err := s.loadRollups(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return s.advance(ctx, wallet, rollups)
}

// InitializeWallet writes the stage rows of a new wallet with created achieved
func (s *ScoringService) InitializeWallet(ctx context.Context, walletID string) ([]models.AdoptionStage, error) {
	wallet, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	stages := scoring.InitialStages(wallet.ID, wallet.CreatedAt, s.now(), s.cfg)
	if err := s.stages.UpsertStages(ctx, stages); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithField("walletId", walletID).Info("Wallet analytics initialized")
	return stages, nil
}

// RefreshRollups rebuilds a wallet's daily rollups from its transactions
func (s *ScoringService) RefreshRollups(ctx context.Context, walletID string) ([]models.ActivityRollup, error) {
	wallet, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	return s.refreshRollups(ctx, wallet)
}

// RecomputeProject refreshes rollups, scores and stages for every wallet of a
// project on a bounded worker pool. Each wallet runs under its own timeout and
// a failing wallet does not stop the others. When any wallet fails the result
// is returned together with a partial batch failure error.
func (s *ScoringService) RecomputeProject(ctx context.Context, projectID string) (*BatchResult, error) {
	if _, err := s.wallets.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	wallets, err := s.wallets.ListProjectWallets(ctx, projectID)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"projectId": projectID,
		"wallets":   len(wallets),
	})
	logger.Info("Starting project recompute")

	outcomes := make([]WalletOutcome, len(wallets))
	for i := range wallets {
		outcomes[i] = WalletOutcome{WalletID: wallets[i].ID, Error: "not processed"}
	}

	pool := pond.NewPool(
		s.batch.Concurrency,
		pond.WithQueueSize(s.batch.QueueSize),
		pond.WithContext(ctx),
	)
	for i := range wallets {
		wallet := wallets[i]
		pool.Submit(func() {
			outcomes[i] = s.recomputeWallet(ctx, &wallet)
		})
	}
	pool.StopAndWait()

	result := &BatchResult{ProjectID: projectID, Total: len(wallets), Outcomes: outcomes}
	failures := make(map[string]string)
	for _, o := range outcomes {
		if o.Succeeded {
			result.Succeeded++
			continue
		}
		result.Failed++
		failures[o.WalletID] = o.Error
	}

	if s.cache != nil {
		if _, err := s.cache.InvalidateProject(ctx, projectID); err != nil {
			logger.WithError(err).Warn("Failed to invalidate project views after recompute")
		}
	}

	logger.WithFields(map[string]interface{}{
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}).Info("Project recompute finished")

	if result.Failed > 0 {
		return result, apperrors.NewPartialBatchFailureError("recompute_project", result.Succeeded, failures)
	}
	return result, nil
}

func (s *ScoringService) recomputeWallet(ctx context.Context, wallet *models.Wallet) WalletOutcome {
	start := time.Now()
	outcome := WalletOutcome{WalletID: wallet.ID}

	wctx := ctx
	if s.batch.WalletTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, s.batch.WalletTimeout)
		defer cancel()
	}

	err := func() error {
		rollups, err := s.refreshRollups(wctx, wallet)
		if err != nil {
			return err
		}
		score, err := s.recompute(wctx, wallet, rollups)
		if err != nil {
			return err
		}
		total := score.TotalScore
		outcome.TotalScore = &total
		outcome.Status = string(score.Status)

		updated, err := s.advance(wctx, wallet, rollups)
		if err != nil {
			return err
		}
		outcome.Stages = len(updated)
		return nil
	}()

	outcome.Duration = time.Since(start)
	outcome.DurationMs = outcome.Duration.Milliseconds()
	if err != nil {
		outcome.Error = err.Error()
		logging.FromContext(ctx).WithField("walletId", wallet.ID).WithError(err).Warn("Wallet recompute failed")
		return outcome
	}
	outcome.Succeeded = true
	return outcome
}

// loadRollups reads stored rollups, building them from transactions when none exist yet
func (s *ScoringService) loadRollups(ctx context.Context, wallet *models.Wallet) ([]models.ActivityRollup, error) {
	var rollups []models.ActivityRollup
	err := s.guard.run(ctx, "list_rollups", func(ctx context.Context) error {
		var err error
		rollups, err = s.txStore.ListRollups(ctx, wallet.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(rollups) > 0 {
		return rollups, nil
	}
	return s.refreshRollups(ctx, wallet)
}

func (s *ScoringService) refreshRollups(ctx context.Context, wallet *models.Wallet) ([]models.ActivityRollup, error) {
	var txs []models.Transaction
	err := s.guard.run(ctx, "list_transactions", func(ctx context.Context) error {
		var err error
		txs, err = s.txStore.ListTransactions(ctx, wallet.ID, time.Time{}, time.Time{})
		return err
	})
	if err != nil {
		return nil, err
	}

	rollups := scoring.BuildRollups(wallet.ID, wallet.CreatedAt, txs)
	err = s.guard.run(ctx, "upsert_rollups", func(ctx context.Context) error {
		return s.txStore.UpsertRollups(ctx, rollups)
	})
	if err != nil {
		return nil, err
	}
	return rollups, nil
}

func (s *ScoringService) recompute(ctx context.Context, wallet *models.Wallet, rollups []models.ActivityRollup) (*models.ProductivityScore, error) {
	score := scoring.Compute(wallet.ID, rollups, s.now(), s.cfg)
	if err := s.scores.UpsertScore(ctx, &score); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"walletId":   wallet.ID,
		"totalScore": score.TotalScore,
		"status":     score.Status,
	}).Debug("Productivity score computed")
	return &score, nil
}

func (s *ScoringService) advance(ctx context.Context, wallet *models.Wallet, rollups []models.ActivityRollup) ([]models.AdoptionStage, error) {
	existing, err := s.stages.ListStages(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}

	_, updated := scoring.EvaluateStages(wallet.ID, wallet.CreatedAt, rollups, existing, s.now(), s.cfg)
	if len(updated) == 0 {
		return []models.AdoptionStage{}, nil
	}
	if err := s.stages.UpsertStages(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}
