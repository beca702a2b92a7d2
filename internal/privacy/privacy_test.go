package privacy

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/types"
)

func wallet(mode types.PrivacyMode) models.Wallet {
	return models.Wallet{
		ID:          "wallet-123",
		Address:     "zs1secretaddress",
		ProjectID:   "project-9",
		OwnerID:     "owner-1",
		PrivacyMode: mode,
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		mode      types.PrivacyMode
		requester string
		paid      bool
		want      Decision
	}{
		{
			name:      "owner sees private wallet in full",
			mode:      types.PrivacyPrivate,
			requester: "owner-1",
			want:      Decision{Allowed: true, DataLevel: types.DataLevelFull, Reason: types.ReasonOwner},
		},
		{
			name:      "private denied to others",
			mode:      types.PrivacyPrivate,
			requester: "other",
			paid:      true,
			want:      Decision{DataLevel: types.DataLevelNone, Reason: types.ReasonPrivate},
		},
		{
			name:      "public is anonymized",
			mode:      types.PrivacyPublic,
			requester: "other",
			want:      Decision{Allowed: true, DataLevel: types.DataLevelAnonymized, Reason: types.ReasonPublic},
		},
		{
			name:      "monetizable unpaid requires payment",
			mode:      types.PrivacyMonetizable,
			requester: "other",
			want:      Decision{DataLevel: types.DataLevelNone, Reason: types.ReasonPaymentRequired, PaymentRequired: true},
		},
		{
			name:      "monetizable paid is anonymized",
			mode:      types.PrivacyMonetizable,
			requester: "other",
			paid:      true,
			want:      Decision{Allowed: true, DataLevel: types.DataLevelAnonymized, Reason: types.ReasonPaidAccess},
		},
		{
			name: "anonymous requester is never the owner",
			mode: types.PrivacyPrivate,
			want: Decision{DataLevel: types.DataLevelNone, Reason: types.ReasonPrivate},
		},
		{
			name:      "unknown mode fails closed",
			mode:      types.PrivacyMode("shared"),
			requester: "other",
			want:      Decision{DataLevel: types.DataLevelNone, Reason: types.ReasonPrivate},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(wallet(tt.mode), tt.requester, tt.paid))
		})
	}
}

func TestFilterAggregatable(t *testing.T) {
	wallets := []models.Wallet{
		wallet(types.PrivacyPublic),
		wallet(types.PrivacyPrivate),
		wallet(types.PrivacyMonetizable),
	}

	out := FilterAggregatable(wallets)

	require.Len(t, out, 2)
	for _, w := range out {
		assert.NotEqual(t, types.PrivacyPrivate, w.PrivacyMode)
	}
}

func TestAnonymizeStripsIdentifiers(t *testing.T) {
	achieved := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	hours := 24.0
	w := wallet(types.PrivacyPublic)
	view := models.WalletView{
		WalletID:    w.ID,
		Address:     w.Address,
		ProjectID:   w.ProjectID,
		OwnerID:     w.OwnerID,
		PrivacyMode: w.PrivacyMode,
		Flows: &models.FlowAnalysis{
			WalletID: w.ID,
			Flows: []models.Flow{{
				Transactions:  []models.Transaction{{WalletID: w.ID, TxID: "tx-1"}},
				Type:          types.FlowSingleTransaction,
				Complexity:    types.ComplexitySimple,
				ShieldedCount: 1,
			}},
			Pattern: models.BehaviorPattern{Pattern: types.PatternOccasional},
		},
		Productivity: &models.ProductivityScore{WalletID: w.ID, TotalScore: 42, Status: types.StatusAtRisk},
		Stages: []models.AdoptionStage{
			{WalletID: w.ID, Stage: types.StageCreated, AchievedAt: &achieved, TimeToAchieveHours: &hours, ConversionProbability: 1},
		},
	}

	anon := Anonymize(view)
	payload, err := json.Marshal(anon)
	require.NoError(t, err)

	for _, secret := range []string{w.ID, w.Address, w.ProjectID, w.OwnerID, "tx-1"} {
		assert.NotContains(t, string(payload), secret)
	}
	assert.Equal(t, types.PatternOccasional, anon.Pattern.Pattern)
	assert.Equal(t, 42.0, anon.Productivity.TotalScore)
	require.Len(t, anon.Flows, 1)
	assert.Equal(t, 1, anon.Flows[0].Transactions)
	require.Len(t, anon.Stages, 1)
	assert.True(t, anon.Stages[0].Achieved)
}
