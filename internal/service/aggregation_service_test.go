package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wallet-insights/internal/errors"
	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/scoring"
	"github.com/wallet-insights/internal/types"
)

func aggregationFixture(t *testing.T) *fixture {
	f := newFixture(t)
	f.store.addProject("p1", "owner")
	created := f.now.Add(-20 * 24 * time.Hour)
	f.store.addWallet("w-private", "p1", types.PrivacyPrivate, created)
	f.store.addWallet("w-public", "p1", types.PrivacyPublic, created)
	f.store.addWallet("w-paid", "p1", types.PrivacyMonetizable, created)
	f.store.dailyTransfers("w-private", f.now.Add(-time.Hour), 10, 1000)
	f.store.dailyTransfers("w-public", f.now.Add(-time.Hour), 10, 1)
	f.store.dailyTransfers("w-paid", f.now.Add(-time.Hour), 3, 2)

	_, err := f.scoring.RecomputeProject(context.Background(), "p1")
	require.NoError(t, err)
	return f
}

func TestGetDashboard_ExcludesPrivateWallets(t *testing.T) {
	f := aggregationFixture(t)

	d := dashboardOf(t, f)
	assert.Equal(t, 2, d.WalletCount)
	assert.EqualValues(t, 13, d.TransactionCount)
	assert.Equal(t, 16.0, d.TotalVolume)
	assert.Equal(t, 2, d.ActiveWallets)

	require.Len(t, d.Funnel, len(types.OrderedStages))
	assert.Equal(t, types.StageCreated, d.Funnel[0].Stage)
	assert.Equal(t, 2, d.Funnel[0].Wallets)
	assert.Equal(t, 100.0, d.Funnel[0].ConversionRate)
	assert.Equal(t, 2, d.Funnel[1].Wallets)
	assert.Equal(t, 0, d.Funnel[2].Wallets)

	total := 0
	for _, n := range d.StatusDistribution {
		total += n
	}
	assert.Equal(t, 2, total)
	assert.NotEmpty(t, d.Recommendations)
}

func TestGetDashboard_CachedPayloadIsIdentical(t *testing.T) {
	f := aggregationFixture(t)
	ctx := context.Background()

	first, err := f.aggregation.GetDashboard(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	// data changes inside the TTL are not visible until invalidation
	f.store.dailyTransfers("w-paid", f.now.Add(-5*24*time.Hour), 1, 500)
	_, err = f.scoring.RefreshRollups(ctx, "w-paid")
	require.NoError(t, err)

	second, err := f.aggregation.GetDashboard(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Payload, second.Payload)

	stats := f.aggregation.ViewStats()
	assert.EqualValues(t, 1, stats.CacheHits)
	assert.EqualValues(t, 1, stats.CacheMisses)
	assert.EqualValues(t, 2, stats.ByKind["dashboard"])

	removed, err := f.aggregation.Invalidate(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	third, err := f.aggregation.GetDashboard(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, third.FromCache)
	assert.NotEqual(t, first.Payload, third.Payload)
}

func TestGetDashboard_UnknownProject(t *testing.T) {
	f := newFixture(t)

	_, err := f.aggregation.GetDashboard(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGetTimeSeries(t *testing.T) {
	f := aggregationFixture(t)
	ctx := context.Background()

	res, err := f.aggregation.GetTimeSeries(ctx, "p1", "transactions", 7)
	require.NoError(t, err)

	var series models.TimeSeries
	require.NoError(t, json.Unmarshal(res.Payload, &series))
	require.Len(t, series.Points, 7)
	assert.True(t, series.Points[6].Date.Equal(scoring.DayOf(f.now)))

	// the last three days have both public wallets, earlier days only one
	assert.Equal(t, []float64{1, 1, 1, 1, 2, 2, 2}, pointValues(series))

	res, err = f.aggregation.GetTimeSeries(ctx, "p1", "volume", 2)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(res.Payload, &series))
	assert.Equal(t, []float64{3, 3}, pointValues(series))
}

func TestGetTimeSeries_Validation(t *testing.T) {
	f := aggregationFixture(t)
	ctx := context.Background()

	_, err := f.aggregation.GetTimeSeries(ctx, "p1", "avg_productivity", 7)
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.aggregation.GetTimeSeries(ctx, "p1", "volume", 0)
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.aggregation.GetTimeSeries(ctx, "p1", "volume", MaxTimeSeriesDays+1)
	assert.True(t, apperrors.IsValidation(err))
}

func TestExportReport_FormatsCarryIdenticalValues(t *testing.T) {
	f := aggregationFixture(t)
	ctx := context.Background()

	jsonRes, err := f.aggregation.ExportReport(ctx, "p1", "json")
	require.NoError(t, err)

	// a data change between the two reads must not split the formats
	f.store.dailyTransfers("w-paid", f.now.Add(-5*24*time.Hour), 1, 500)
	_, err = f.scoring.RefreshRollups(ctx, "w-paid")
	require.NoError(t, err)

	csvRes, err := f.aggregation.ExportReport(ctx, "p1", "csv")
	require.NoError(t, err)
	assert.True(t, csvRes.FromCache)
	assert.True(t, jsonRes.ComputedAt.Equal(csvRes.ComputedAt))

	var report models.ExportReport
	require.NoError(t, json.Unmarshal(jsonRes.Payload, &report))
	require.Len(t, report.Rows, 2)

	records, err := csv.NewReader(bytes.NewReader(csvRes.Payload)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ExportHeader, records[0])

	for i, row := range report.Rows {
		rec := records[i+1]
		assert.Equal(t, strconv.Itoa(row.Rank), rec[0])
		total, err := strconv.ParseFloat(rec[1], 64)
		require.NoError(t, err)
		assert.Equal(t, row.TotalScore, total)
		assert.Equal(t, string(row.Status), rec[6])
		assert.Equal(t, string(row.HighestStage), rec[7])
		assert.Equal(t, strconv.FormatInt(row.TransactionCount, 10), rec[8])
		volume, err := strconv.ParseFloat(rec[9], 64)
		require.NoError(t, err)
		assert.Equal(t, row.Volume, volume)
	}

	assert.NotContains(t, string(jsonRes.Payload), "w-public")
	assert.NotContains(t, string(csvRes.Payload), "w-public")

	_, err = f.aggregation.Invalidate(ctx, "p1")
	require.NoError(t, err)
	refreshed, err := f.aggregation.ExportReport(ctx, "p1", "csv")
	require.NoError(t, err)
	assert.False(t, refreshed.FromCache)
	assert.NotEqual(t, csvRes.Payload, refreshed.Payload)

	_, err = f.aggregation.ExportReport(ctx, "p1", "xlsx")
	assert.True(t, apperrors.IsValidation(err))
}

func TestBuildExportRows_RanksByScore(t *testing.T) {
	now := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	wallets := []models.Wallet{
		{ID: "a", CreatedAt: now.Add(-10 * 24 * time.Hour)},
		{ID: "b", CreatedAt: now.Add(-5 * 24 * time.Hour)},
		{ID: "c", CreatedAt: now},
	}
	scores := map[string]models.ProductivityScore{
		"a": {TotalScore: 40, Status: types.StatusAtRisk},
		"b": {TotalScore: 80, Status: types.StatusHealthy},
		"c": {TotalScore: 40, Status: types.StatusAtRisk},
	}

	rows := BuildExportRows(wallets, scores, nil, nil, now)
	require.Len(t, rows, 3)
	assert.Equal(t, 80.0, rows[0].TotalScore)
	assert.Equal(t, 5, rows[0].DaysSinceCreation)
	assert.Equal(t, 10, rows[1].DaysSinceCreation)
	assert.Equal(t, 0, rows[2].DaysSinceCreation)
	assert.Equal(t, []int{1, 2, 3}, []int{rows[0].Rank, rows[1].Rank, rows[2].Rank})
}

func TestBuildDashboard_AlertsAndCohorts(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC) // Sunday
	created := time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC) // Monday
	wallets := []models.Wallet{
		{ID: "a", CreatedAt: created},
		{ID: "b", CreatedAt: created},
	}
	scores := map[string]models.ProductivityScore{
		"a": {TotalScore: 20, Status: types.StatusChurn},
		"b": {TotalScore: 50, Status: types.StatusAtRisk},
	}
	rollups := map[string][]models.ActivityRollup{
		"a": {{WalletID: "a", Date: scoring.DayOf(created), TxCount: 1, IsActive: true}},
	}

	d := BuildDashboard("p1", wallets, scores, nil, rollups, now, scoring.DefaultConfig().Alerts)

	assert.Equal(t, 35.0, d.AverageProductivity)
	codes := make([]string, 0, len(d.Alerts))
	for _, a := range d.Alerts {
		codes = append(codes, a.Code)
	}
	assert.ElementsMatch(t, []string{"at_risk_share_high", "churn_share_high"}, codes)

	require.Len(t, d.Cohorts, 1)
	assert.True(t, d.Cohorts[0].CohortWeek.Equal(scoring.DayOf(created)))
	assert.Equal(t, 2, d.Cohorts[0].Size)
	assert.Equal(t, []float64{50, 0, 0, 0, 0}, d.Cohorts[0].Retention)
}

func TestBuildDashboard_AlertsFireAboveThresholds(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	statuses := []types.ScoreStatus{
		types.StatusAtRisk, types.StatusAtRisk, types.StatusAtRisk,
		types.StatusChurn, types.StatusChurn,
		types.StatusHealthy, types.StatusHealthy, types.StatusHealthy, types.StatusHealthy, types.StatusHealthy,
	}
	build := func(statuses []types.ScoreStatus) []string {
		var wallets []models.Wallet
		scores := map[string]models.ProductivityScore{}
		rollups := map[string][]models.ActivityRollup{}
		for i, st := range statuses {
			id := fmt.Sprintf("w%d", i)
			wallets = append(wallets, models.Wallet{ID: id, CreatedAt: now.AddDate(0, 0, -3)})
			scores[id] = models.ProductivityScore{TotalScore: 50, Status: st}
			rollups[id] = []models.ActivityRollup{{WalletID: id, Date: scoring.DayOf(now), TxCount: 1, IsActive: true}}
		}
		d := BuildDashboard("p1", wallets, scores, nil, rollups, now, scoring.DefaultConfig().Alerts)
		codes := []string{}
		for _, a := range d.Alerts {
			codes = append(codes, a.Code)
		}
		return codes
	}

	// exactly 30% at risk and 20% churning sit on the thresholds
	assert.Empty(t, build(statuses))

	statuses[5] = types.StatusAtRisk
	statuses[6] = types.StatusChurn
	assert.ElementsMatch(t, []string{"at_risk_share_high", "churn_share_high"}, build(statuses))
}

func pointValues(s models.TimeSeries) []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}
