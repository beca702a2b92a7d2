package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wallet-insights/internal/errors"
	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/types"
)

func privacyFixture(t *testing.T) *fixture {
	f := newFixture(t)
	f.store.addProject("p1", "owner")
	created := f.now.Add(-30 * 24 * time.Hour)
	f.store.addWallet("w-private", "p1", types.PrivacyPrivate, created)
	f.store.addWallet("w-public", "p1", types.PrivacyPublic, created)
	f.store.addWallet("w-paid", "p1", types.PrivacyMonetizable, created)
	for _, id := range []string{"w-private", "w-public", "w-paid"} {
		f.store.dailyTransfers(id, f.now.Add(-time.Hour), 5, 2)
	}
	return f
}

func TestCheckAccess(t *testing.T) {
	f := privacyFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		walletID  string
		requester string
		paid      bool
		allowed   bool
		level     types.DataLevel
		reason    types.AccessReason
		payment   bool
	}{
		{name: "owner sees private", walletID: "w-private", requester: "owner", allowed: true, level: types.DataLevelFull, reason: types.ReasonOwner},
		{name: "stranger denied private", walletID: "w-private", requester: "bob", level: types.DataLevelNone, reason: types.ReasonPrivate},
		{name: "public anonymized", walletID: "w-public", requester: "bob", allowed: true, level: types.DataLevelAnonymized, reason: types.ReasonPublic},
		{name: "monetizable unpaid", walletID: "w-paid", requester: "bob", level: types.DataLevelNone, reason: types.ReasonPaymentRequired, payment: true},
		{name: "monetizable paid", walletID: "w-paid", requester: "bob", paid: true, allowed: true, level: types.DataLevelAnonymized, reason: types.ReasonPaidAccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := f.privacy.CheckAccess(ctx, tt.walletID, tt.requester, tt.paid)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.level, d.DataLevel)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.payment, d.PaymentRequired)
		})
	}
}

func TestGetWalletView_DenialsAreDistinct(t *testing.T) {
	f := privacyFixture(t)
	ctx := context.Background()

	_, err := f.privacy.GetWalletView(ctx, "w-private", "bob")
	assert.True(t, apperrors.IsUnauthorized(err))
	assert.False(t, apperrors.IsPaymentRequired(err))

	_, err = f.privacy.GetWalletView(ctx, "w-paid", "bob")
	assert.True(t, apperrors.IsPaymentRequired(err))
	assert.False(t, apperrors.IsUnauthorized(err))
}

func TestGetWalletView_OwnerGetsFullView(t *testing.T) {
	f := privacyFixture(t)

	res, err := f.privacy.GetWalletView(context.Background(), "w-private", "owner")
	require.NoError(t, err)
	require.NotNil(t, res.Full)
	assert.Nil(t, res.Anonymized)
	assert.Equal(t, "addr-w-private", res.Full.Address)
	assert.NotNil(t, res.Full.Productivity)
}

func TestGetWalletView_AnonymizedCarriesNoIdentifiers(t *testing.T) {
	f := privacyFixture(t)

	res, err := f.privacy.GetWalletView(context.Background(), "w-public", "bob")
	require.NoError(t, err)
	require.NotNil(t, res.Anonymized)
	assert.Nil(t, res.Full)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	body := string(data)
	assert.NotContains(t, body, "addr-w-public")
	assert.NotContains(t, body, "w-public")
}

func TestPurchaseAccess_SplitsRevenueAndGrantsAccess(t *testing.T) {
	f := privacyFixture(t)
	ctx := context.Background()

	res, err := f.privacy.PurchaseAccess(ctx, PurchaseAccessInput{WalletID: "w-paid", RequesterID: "bob", PaymentRef: "pay-00000001"})
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("10").Equal(res.Grant.Amount))
	assert.True(t, decimal.RequireFromString("7").Equal(res.Earnings.OwnerShare))
	assert.True(t, decimal.RequireFromString("3").Equal(res.Earnings.PlatformShare))
	assert.Equal(t, "owner", res.Earnings.OwnerID)
	assert.True(t, res.Grant.ExpiresAt.Equal(f.now.Add(30*24*time.Hour)))

	view, err := f.privacy.GetWalletView(ctx, "w-paid", "bob")
	require.NoError(t, err)
	require.NotNil(t, view.Anonymized)
	assert.Equal(t, types.ReasonPaidAccess, view.Decision.Reason)

	earnings, err := f.privacy.GetEarnings(ctx, "owner", "owner")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("7").Equal(earnings.Balance))
	assert.Len(t, earnings.Entries, 1)

	// a second purchase stacks onto the active grant
	res2, err := f.privacy.PurchaseAccess(ctx, PurchaseAccessInput{WalletID: "w-paid", RequesterID: "bob", PaymentRef: "pay-00000002"})
	require.NoError(t, err)
	assert.True(t, res2.Grant.ExpiresAt.Equal(f.now.Add(60*24*time.Hour)))
}

func TestPurchaseAccess_Rejections(t *testing.T) {
	f := privacyFixture(t)
	ctx := context.Background()

	_, err := f.privacy.PurchaseAccess(ctx, PurchaseAccessInput{WalletID: "w-public", RequesterID: "bob", PaymentRef: "pay-1"})
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.privacy.PurchaseAccess(ctx, PurchaseAccessInput{WalletID: "w-paid", RequesterID: "owner", PaymentRef: "pay-1"})
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.privacy.PurchaseAccess(ctx, PurchaseAccessInput{WalletID: "w-paid", RequesterID: "bob"})
	assert.True(t, apperrors.IsValidation(err))

	f.payments.err = errors.New("unknown reference")
	_, err = f.privacy.PurchaseAccess(ctx, PurchaseAccessInput{WalletID: "w-paid", RequesterID: "bob", PaymentRef: "pay-1"})
	assert.True(t, apperrors.IsPaymentRequired(err))
	assert.Empty(t, f.store.grants)
}

func TestSetPrivacyMode(t *testing.T) {
	f := privacyFixture(t)
	ctx := context.Background()

	_, err := f.privacy.SetPrivacyMode(ctx, "w-public", "bob", "private")
	assert.True(t, apperrors.IsUnauthorized(err))

	_, err = f.privacy.SetPrivacyMode(ctx, "w-public", "owner", "secret")
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.privacy.SetPrivacyMode(ctx, "missing", "owner", "private")
	assert.True(t, apperrors.IsNotFound(err))

	entry, err := f.privacy.SetPrivacyMode(ctx, "w-public", "owner", "private")
	require.NoError(t, err)
	assert.Equal(t, types.PrivacyPublic, entry.PreviousMode)
	assert.Equal(t, types.PrivacyPrivate, entry.NewMode)
	assert.Len(t, f.store.audit, 1)

	// the next access check observes the new mode
	d, err := f.privacy.CheckAccess(ctx, "w-public", "bob", false)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestSetPrivacyMode_TakesEffectOnCachedDashboard(t *testing.T) {
	f := privacyFixture(t)
	ctx := context.Background()

	_, err := f.scoring.RecomputeProject(ctx, "p1")
	require.NoError(t, err)

	before := dashboardOf(t, f)
	assert.Equal(t, 2, before.WalletCount)

	_, err = f.privacy.SetPrivacyMode(ctx, "w-public", "owner", "private")
	require.NoError(t, err)

	// well within the TTL, the dashboard already excludes the wallet
	after := dashboardOf(t, f)
	assert.Equal(t, 1, after.WalletCount)
}

func TestGetEarnings_OwnerOnly(t *testing.T) {
	f := privacyFixture(t)

	_, err := f.privacy.GetEarnings(context.Background(), "owner", "bob")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestSplitRevenue(t *testing.T) {
	owner, platform := SplitRevenue(decimal.RequireFromString("0.03"), 0.7)
	assert.True(t, decimal.RequireFromString("0.021").Equal(owner))
	assert.True(t, decimal.RequireFromString("0.009").Equal(platform))

	owner, platform = SplitRevenue(decimal.RequireFromString("1"), 1.0/3)
	assert.True(t, owner.Add(platform).Equal(decimal.RequireFromString("1")))
}

func dashboardOf(t *testing.T, f *fixture) models.Dashboard {
	t.Helper()
	res, err := f.aggregation.GetDashboard(context.Background(), "p1")
	require.NoError(t, err)
	var d models.Dashboard
	require.NoError(t, json.Unmarshal(res.Payload, &d))
	return d
}

func TestRequireProjectOwner(t *testing.T) {
	f := privacyFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.privacy.RequireProjectOwner(ctx, "p1", "owner"))
	assert.True(t, apperrors.IsUnauthorized(f.privacy.RequireProjectOwner(ctx, "p1", "viewer")))
	assert.True(t, apperrors.IsUnauthorized(f.privacy.RequireProjectOwner(ctx, "p1", "")))
	assert.True(t, apperrors.IsNotFound(f.privacy.RequireProjectOwner(ctx, "missing", "owner")))
}
