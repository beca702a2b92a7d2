package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wallet-insights/internal/errors"
	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/types"
)

func seedWallet(t *testing.T, repo *WalletRepository, mode types.PrivacyMode) *models.Wallet {
	t.Helper()
	ctx := testContext(t)

	project := &models.Project{ID: "proj-" + uuid.NewString(), OwnerID: "owner-" + uuid.NewString(), Name: "test"}
	require.NoError(t, repo.CreateProject(ctx, project))

	wallet := &models.Wallet{
		ID:          "wallet-" + uuid.NewString(),
		Address:     "addr-" + uuid.NewString(),
		ProjectID:   project.ID,
		PrivacyMode: mode,
		CreatedAt:   time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Microsecond),
	}
	require.NoError(t, repo.CreateWallet(ctx, wallet))
	wallet.OwnerID = project.OwnerID
	return wallet
}

func TestWalletRepository_SetPrivacyModeWritesAudit(t *testing.T) {
	db := openTestPostgres(t)
	repo := NewWalletRepository(db)
	ctx := testContext(t)

	wallet := seedWallet(t, repo, types.PrivacyPrivate)

	got, err := repo.GetWallet(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.OwnerID, got.OwnerID)
	assert.Equal(t, types.PrivacyPrivate, got.PrivacyMode)

	entry, err := repo.SetPrivacyMode(ctx, wallet.ID, types.PrivacyPublic, wallet.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, types.PrivacyPrivate, entry.PreviousMode)

	got, err = repo.GetWallet(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PrivacyPublic, got.PrivacyMode)

	audit, err := repo.ListPrivacyAudit(ctx, wallet.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, types.PrivacyPublic, audit[0].NewMode)

	_, err = repo.GetWallet(ctx, "missing-wallet")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStageRepository_NeverMovesAchievedAt(t *testing.T) {
	db := openTestPostgres(t)
	wallets := NewWalletRepository(db)
	repo := NewStageRepository(db)
	ctx := testContext(t)

	wallet := seedWallet(t, wallets, types.PrivacyPrivate)
	first := wallet.CreatedAt.Add(time.Hour)
	later := first.Add(72 * time.Hour)
	hours := 1.0

	require.NoError(t, repo.UpsertStages(ctx, []models.AdoptionStage{{
		WalletID: wallet.ID, Stage: types.StageFirstTx, AchievedAt: &first,
		TimeToAchieveHours: &hours, ConversionProbability: 1, UpdatedAt: first,
	}}))
	require.NoError(t, repo.UpsertStages(ctx, []models.AdoptionStage{{
		WalletID: wallet.ID, Stage: types.StageFirstTx, AchievedAt: &later,
		ConversionProbability: 1, UpdatedAt: later,
	}}))

	stages, err := repo.ListStages(ctx, wallet.ID)
	require.NoError(t, err)
	require.Len(t, stages, 1)
	require.NotNil(t, stages[0].AchievedAt)
	assert.True(t, first.Equal(*stages[0].AchievedAt))
}

func TestScoreRepository_UpsertOverwrites(t *testing.T) {
	db := openTestPostgres(t)
	wallets := NewWalletRepository(db)
	repo := NewScoreRepository(db)
	ctx := testContext(t)

	wallet := seedWallet(t, wallets, types.PrivacyPublic)

	missing, err := repo.GetScore(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	score := &models.ProductivityScore{
		WalletID: wallet.ID, TotalScore: 20, Status: types.StatusChurn, RiskLevel: types.RiskHigh,
		ComputedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.UpsertScore(ctx, score))
	score.TotalScore = 90
	score.Status = types.StatusHealthy
	require.NoError(t, repo.UpsertScore(ctx, score))

	scores, err := repo.ListScores(ctx, []string{wallet.ID})
	require.NoError(t, err)
	assert.Equal(t, 90.0, scores[wallet.ID].TotalScore)
	assert.Equal(t, types.StatusHealthy, scores[wallet.ID].Status)
}

func TestGrantRepository_CreditsOwner(t *testing.T) {
	db := openTestPostgres(t)
	wallets := NewWalletRepository(db)
	repo := NewGrantRepository(db)
	ctx := testContext(t)

	wallet := seedWallet(t, wallets, types.PrivacyMonetizable)
	now := time.Now().UTC()

	grant := &models.AccessGrant{
		ID: uuid.NewString(), WalletID: wallet.ID, RequesterID: "buyer", PaymentRef: "pay-" + uuid.NewString(),
		Amount: decimal.RequireFromString("10.00"), GrantedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	entry := &models.EarningsEntry{
		ID: uuid.NewString(), GrantID: grant.ID, OwnerID: wallet.OwnerID,
		Gross: grant.Amount, OwnerShare: decimal.RequireFromString("7.00"), PlatformShare: decimal.RequireFromString("3.00"),
		CreatedAt: now,
	}
	require.NoError(t, repo.CreateGrantWithEarnings(ctx, grant, entry))

	active, err := repo.FindActiveGrant(ctx, wallet.ID, "buyer", now.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.True(t, grant.Amount.Equal(active.Amount))

	expired, err := repo.FindActiveGrant(ctx, wallet.ID, "buyer", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, expired)

	earnings, err := repo.GetEarnings(ctx, wallet.OwnerID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("7").Equal(earnings.Balance))
	assert.Len(t, earnings.Entries, 1)
}
