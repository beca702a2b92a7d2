package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/wallet-insights/internal/circuitbreaker"
	apperrors "github.com/wallet-insights/internal/errors"
	"github.com/wallet-insights/internal/logging"
	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/privacy"
	"github.com/wallet-insights/internal/retry"
	"github.com/wallet-insights/internal/scoring"
	"github.com/wallet-insights/internal/storage"
	"github.com/wallet-insights/internal/types"
)

const (
	day = 24 * time.Hour

	// MaxTimeSeriesDays bounds a time series request
	MaxTimeSeriesDays = 365
)

// AggregationService builds cached project-level views over the wallets whose
// privacy mode allows aggregation
type AggregationService struct {
	wallets WalletRepository
	txStore TransactionStore
	scores  ScoreRepository
	stages  StageRepository
	cache   ViewCache
	cfg     scoring.Config
	guard   *storeGuard
	monitor *ViewMonitor
	now     func() time.Time
}

// NewAggregationService creates a new aggregation service
func NewAggregationService(
	wallets WalletRepository,
	txStore TransactionStore,
	scores ScoreRepository,
	stages StageRepository,
	cache ViewCache,
	cfg scoring.Config,
	breaker *circuitbreaker.CircuitBreaker,
	retryCfg retry.Config,
) *AggregationService {
	return &AggregationService{
		wallets: wallets,
		txStore: txStore,
		scores:  scores,
		stages:  stages,
		cache:   cache,
		cfg:     cfg,
		guard:   newStoreGuard(breaker, retryCfg),
		monitor: NewViewMonitor(),
		now:     time.Now,
	}
}

// projectData is the privacy-filtered input of every project view
type projectData struct {
	projectID string
	wallets   []models.Wallet
	scores    map[string]models.ProductivityScore
	stages    map[string][]models.AdoptionStage
	rollups   map[string][]models.ActivityRollup
}

func (s *AggregationService) load(ctx context.Context, projectID string) (*projectData, error) {
	if _, err := s.wallets.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	all, err := s.wallets.ListProjectWallets(ctx, projectID)
	if err != nil {
		return nil, err
	}

	wallets := privacy.FilterAggregatable(all)
	ids := make([]string, len(wallets))
	for i, w := range wallets {
		ids[i] = w.ID
	}

	scores, err := s.scores.ListScores(ctx, ids)
	if err != nil {
		return nil, err
	}
	stages, err := s.stages.ListProjectStages(ctx, ids)
	if err != nil {
		return nil, err
	}

	var rollups []models.ActivityRollup
	err = s.guard.run(ctx, "list_project_rollups", func(ctx context.Context) error {
		var err error
		rollups, err = s.txStore.ListProjectRollups(ctx, ids, time.Time{}, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	byWallet := make(map[string][]models.ActivityRollup, len(ids))
	for _, r := range rollups {
		byWallet[r.WalletID] = append(byWallet[r.WalletID], r)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"projectId": projectID,
		"wallets":   len(all),
		"included":  len(wallets),
	}).Debug("Loaded project data")

	return &projectData{
		projectID: projectID,
		wallets:   wallets,
		scores:    scores,
		stages:    stages,
		rollups:   byWallet,
	}, nil
}

// serve reads a view through the cache and records its latency
func (s *AggregationService) serve(ctx context.Context, kind, projectID, key string, compute storage.ComputeFunc) (*storage.ViewResult, error) {
	start := time.Now()
	res, err := s.cache.GetOrCompute(ctx, projectID, key, compute)
	if err != nil {
		return nil, err
	}
	s.monitor.Record(kind, time.Since(start), res.FromCache)
	return res, nil
}

// ViewStats reports latency and cache hit statistics of served views
func (s *AggregationService) ViewStats() ViewStats {
	return s.monitor.Stats()
}

// GetDashboard returns the project dashboard, served from cache while fresh
func (s *AggregationService) GetDashboard(ctx context.Context, projectID string) (*storage.ViewResult, error) {
	return s.serve(ctx, "dashboard", projectID, storage.DashboardKey(projectID), func(ctx context.Context) ([]byte, error) {
		data, err := s.load(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(BuildDashboard(data.projectID, data.wallets, data.scores, data.stages, data.rollups, s.now(), s.cfg.Alerts))
	})
}

// GetTimeSeries returns one point per UTC day for the last days days
func (s *AggregationService) GetTimeSeries(ctx context.Context, projectID, metric string, days int) (*storage.ViewResult, error) {
	m, err := types.ParseMetric(metric)
	if err != nil {
		return nil, apperrors.NewValidationError("metric", err.Error())
	}
	if days < 1 || days > MaxTimeSeriesDays {
		return nil, apperrors.NewValidationError("days", fmt.Sprintf("must be between 1 and %d", MaxTimeSeriesDays))
	}

	return s.serve(ctx, "timeseries", projectID, storage.TimeSeriesKey(projectID, m, days), func(ctx context.Context) ([]byte, error) {
		data, err := s.load(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(BuildTimeSeries(data.projectID, data.wallets, data.rollups, m, days, s.now()))
	})
}

// ExportReport renders the project's ranked wallet rows as JSON or CSV. Both
// formats are rendered from one cached row set.
func (s *AggregationService) ExportReport(ctx context.Context, projectID, format string) (*storage.ViewResult, error) {
	f, err := types.ParseExportFormat(format)
	if err != nil {
		return nil, apperrors.NewValidationError("format", err.Error())
	}

	rows, err := s.serve(ctx, "export", projectID, storage.ExportRowsKey(projectID), func(ctx context.Context) ([]byte, error) {
		data, err := s.load(ctx, projectID)
		if err != nil {
			return nil, err
		}
		now := s.now().UTC()
		rows := BuildExportRows(data.wallets, data.scores, data.stages, data.rollups, now)
		return json.Marshal(models.ExportReport{ProjectID: projectID, GeneratedAt: now, Rows: rows})
	})
	if err != nil {
		return nil, err
	}

	var report models.ExportReport
	if err := json.Unmarshal(rows.Payload, &report); err != nil {
		return nil, apperrors.NewCacheError("decode", err)
	}
	payload, err := RenderExport(f, report)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to render export", err)
	}
	return &storage.ViewResult{Payload: payload, ComputedAt: rows.ComputedAt, FromCache: rows.FromCache}, nil
}

// Invalidate drops every cached view of a project
func (s *AggregationService) Invalidate(ctx context.Context, projectID string) (int, error) {
	removed, err := s.cache.InvalidateProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"projectId": projectID,
		"removed":   removed,
	}).Info("Project views invalidated")
	return removed, nil
}

// BuildDashboard composes a dashboard from already privacy-filtered wallets
func BuildDashboard(
	projectID string,
	wallets []models.Wallet,
	scores map[string]models.ProductivityScore,
	stages map[string][]models.AdoptionStage,
	rollups map[string][]models.ActivityRollup,
	now time.Time,
	cfg scoring.AlertConfig,
) models.Dashboard {
	today := scoring.DayOf(now)
	d := models.Dashboard{
		ProjectID:   projectID,
		WalletCount: len(wallets),
		StatusDistribution: map[types.ScoreStatus]int{
			types.StatusHealthy: 0,
			types.StatusAtRisk:  0,
			types.StatusChurn:   0,
		},
		GeneratedAt: now.UTC(),
	}

	scored := 0
	var scoreSum float64
	for _, w := range wallets {
		active := false
		for _, r := range rollups[w.ID] {
			d.TransactionCount += int64(r.TxCount)
			d.TotalVolume += r.Volume
			d.TotalFees += r.FeeTotal
			if r.IsActive && withinDays(r.Date, today, cfg.ActiveWindowDays) {
				active = true
			}
		}
		if active {
			d.ActiveWallets++
		}
		if sc, ok := scores[w.ID]; ok {
			scored++
			scoreSum += sc.TotalScore
			d.StatusDistribution[sc.Status]++
		}
	}
	d.TotalVolume = round2(d.TotalVolume)
	d.TotalFees = round2(d.TotalFees)
	if scored > 0 {
		d.AverageProductivity = round2(scoreSum / float64(scored))
	}

	d.Funnel = buildFunnel(wallets, stages)
	d.Cohorts = buildCohorts(wallets, rollups, today, cfg.CohortWeeks)
	d.Alerts = buildAlerts(d, scored, cfg)
	d.Recommendations = buildRecommendations(d)
	return d
}

func buildFunnel(wallets []models.Wallet, stages map[string][]models.AdoptionStage) []models.FunnelStage {
	reached := make(map[types.StageName]int, len(types.OrderedStages))
	for _, w := range wallets {
		for _, st := range stages[w.ID] {
			if st.Achieved() {
				reached[st.Stage]++
			}
		}
	}

	funnel := make([]models.FunnelStage, 0, len(types.OrderedStages))
	prev := len(wallets)
	for _, name := range types.OrderedStages {
		n := reached[name]
		funnel = append(funnel, models.FunnelStage{
			Stage:          name,
			Wallets:        n,
			ConversionRate: percent(n, prev),
		})
		prev = n
	}
	return funnel
}

func buildCohorts(wallets []models.Wallet, rollups map[string][]models.ActivityRollup, today time.Time, weeks int) []models.CohortRow {
	type cohort struct {
		size   int
		active []int
	}
	byWeek := make(map[time.Time]*cohort)

	for _, w := range wallets {
		created := scoring.DayOf(w.CreatedAt)
		wk := weekStart(created)
		c, ok := byWeek[wk]
		if !ok {
			c = &cohort{active: make([]int, weeks)}
			byWeek[wk] = c
		}
		c.size++

		seen := make([]bool, weeks)
		for _, r := range rollups[w.ID] {
			if !r.IsActive || r.Date.After(today) {
				continue
			}
			offset := int(scoring.DayOf(r.Date).Sub(created) / day / 7)
			if offset >= 0 && offset < weeks && !seen[offset] {
				seen[offset] = true
				c.active[offset]++
			}
		}
	}

	rows := make([]models.CohortRow, 0, len(byWeek))
	for wk, c := range byWeek {
		row := models.CohortRow{CohortWeek: wk, Size: c.size, Retention: make([]float64, weeks)}
		for i, n := range c.active {
			row.Retention[i] = percent(n, c.size)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CohortWeek.Before(rows[j].CohortWeek) })
	return rows
}

func buildAlerts(d models.Dashboard, scored int, cfg scoring.AlertConfig) []models.Alert {
	alerts := []models.Alert{}
	if scored > 0 {
		if share := percent(d.StatusDistribution[types.StatusAtRisk], scored); share > cfg.AtRiskShare {
			alerts = append(alerts, models.Alert{
				Code:     "at_risk_share_high",
				Severity: "warning",
				Message:  fmt.Sprintf("%.1f%% of scored wallets are at risk", share),
				Value:    share,
			})
		}
		if share := percent(d.StatusDistribution[types.StatusChurn], scored); share > cfg.ChurnShare {
			alerts = append(alerts, models.Alert{
				Code:     "churn_share_high",
				Severity: "critical",
				Message:  fmt.Sprintf("%.1f%% of scored wallets are churning", share),
				Value:    share,
			})
		}
	}
	if d.WalletCount > 0 {
		if share := percent(d.ActiveWallets, d.WalletCount); share < cfg.MinActiveShare {
			alerts = append(alerts, models.Alert{
				Code:     "low_activity",
				Severity: "warning",
				Message:  fmt.Sprintf("only %.1f%% of wallets were active in the last %d days", share, cfg.ActiveWindowDays),
				Value:    share,
			})
		}
	}
	return alerts
}

func buildRecommendations(d models.Dashboard) []string {
	recs := []string{}
	for _, a := range d.Alerts {
		switch a.Code {
		case "at_risk_share_high":
			recs = append(recs, "Reach out to at-risk wallets before their activity lapses")
		case "churn_share_high":
			recs = append(recs, "Investigate churned wallets and run a re-engagement campaign")
		case "low_activity":
			recs = append(recs, "Prompt inactive wallets with reminders or incentives")
		}
	}
	for _, f := range d.Funnel {
		if f.Stage == types.StageFeatureUsage && d.WalletCount > 0 && f.ConversionRate < 50 {
			recs = append(recs, "Guide transacting wallets toward shielded features")
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "Project health is good; keep monitoring retention")
	}
	return recs
}

// BuildTimeSeries derives one point per UTC day ending today. Each point is
// aggregated independently from the rollups of that day.
func BuildTimeSeries(
	projectID string,
	wallets []models.Wallet,
	rollups map[string][]models.ActivityRollup,
	metric types.Metric,
	days int,
	now time.Time,
) models.TimeSeries {
	today := scoring.DayOf(now)
	byDay := make(map[time.Time][]models.ActivityRollup)
	for _, w := range wallets {
		for _, r := range rollups[w.ID] {
			d := scoring.DayOf(r.Date)
			byDay[d] = append(byDay[d], r)
		}
	}

	series := models.TimeSeries{
		ProjectID: projectID,
		Metric:    metric,
		Days:      days,
		Points:    make([]models.TimeSeriesPoint, 0, days),
	}
	for i := days - 1; i >= 0; i-- {
		d := today.Add(-time.Duration(i) * day)
		series.Points = append(series.Points, models.TimeSeriesPoint{
			Date:  d,
			Value: aggregateDay(d, byDay[d], wallets, metric),
		})
	}
	return series
}

func aggregateDay(d time.Time, rollups []models.ActivityRollup, wallets []models.Wallet, metric types.Metric) float64 {
	var v float64
	switch metric {
	case types.MetricTransactions:
		for _, r := range rollups {
			v += float64(r.TxCount)
		}
	case types.MetricVolume:
		for _, r := range rollups {
			v += r.Volume
		}
	case types.MetricFees:
		for _, r := range rollups {
			v += r.FeeTotal
		}
	case types.MetricActiveWallets:
		for _, r := range rollups {
			if r.IsActive {
				v++
			}
		}
	case types.MetricReturningWallets:
		for _, r := range rollups {
			if r.IsActive && r.IsReturning {
				v++
			}
		}
	case types.MetricNewWallets:
		for _, w := range wallets {
			if scoring.DayOf(w.CreatedAt).Equal(d) {
				v++
			}
		}
	}
	return round2(v)
}

// BuildExportRows ranks wallets by total score. Ties keep wallet id order.
func BuildExportRows(
	wallets []models.Wallet,
	scores map[string]models.ProductivityScore,
	stages map[string][]models.AdoptionStage,
	rollups map[string][]models.ActivityRollup,
	now time.Time,
) []models.ExportRow {
	type ranked struct {
		id  string
		row models.ExportRow
	}
	today := scoring.DayOf(now)

	list := make([]ranked, 0, len(wallets))
	for _, w := range wallets {
		row := models.ExportRow{
			HighestStage:      highestStage(stages[w.ID]),
			DaysSinceCreation: int(today.Sub(scoring.DayOf(w.CreatedAt)) / day),
		}
		if sc, ok := scores[w.ID]; ok {
			row.TotalScore = sc.TotalScore
			row.RetentionScore = sc.RetentionScore
			row.AdoptionScore = sc.AdoptionScore
			row.ActivityScore = sc.ActivityScore
			row.DiversityScore = sc.DiversityScore
			row.Status = sc.Status
		}
		for _, r := range rollups[w.ID] {
			row.TransactionCount += int64(r.TxCount)
			row.Volume += r.Volume
			if r.IsActive {
				row.ActiveDays++
			}
		}
		row.Volume = round2(row.Volume)
		list = append(list, ranked{id: w.ID, row: row})
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].row.TotalScore != list[j].row.TotalScore {
			return list[i].row.TotalScore > list[j].row.TotalScore
		}
		return list[i].id < list[j].id
	})

	rows := make([]models.ExportRow, len(list))
	for i := range list {
		rows[i] = list[i].row
		rows[i].Rank = i + 1
	}
	return rows
}

// ExportHeader is the CSV column order
var ExportHeader = []string{
	"rank", "total_score", "retention_score", "adoption_score", "activity_score", "diversity_score",
	"status", "highest_stage", "transaction_count", "volume", "active_days", "days_since_creation",
}

// RenderExport renders a report in the requested format from the same rows
func RenderExport(format types.ExportFormat, report models.ExportReport) ([]byte, error) {
	switch format {
	case types.ExportJSON:
		return json.Marshal(report)
	case types.ExportCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write(ExportHeader); err != nil {
			return nil, err
		}
		for _, r := range report.Rows {
			record := []string{
				strconv.Itoa(r.Rank),
				formatFloat(r.TotalScore),
				formatFloat(r.RetentionScore),
				formatFloat(r.AdoptionScore),
				formatFloat(r.ActivityScore),
				formatFloat(r.DiversityScore),
				string(r.Status),
				string(r.HighestStage),
				strconv.FormatInt(r.TransactionCount, 10),
				formatFloat(r.Volume),
				strconv.Itoa(r.ActiveDays),
				strconv.Itoa(r.DaysSinceCreation),
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, apperrors.NewValidationError("format", fmt.Sprintf("unknown export format: %q", format))
	}
}

func highestStage(stages []models.AdoptionStage) types.StageName {
	best := -1
	for _, s := range stages {
		if s.Achieved() && s.Stage.Index() > best {
			best = s.Stage.Index()
		}
	}
	if best < 0 {
		return ""
	}
	return types.OrderedStages[best]
}

func withinDays(date, today time.Time, n int) bool {
	d := scoring.DayOf(date)
	return !d.After(today) && today.Sub(d) < time.Duration(n)*day
}

// weekStart returns the Monday starting t's ISO week
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return scoring.DayOf(t).Add(-time.Duration(offset) * day)
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return round2(float64(n) / float64(of) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
