package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/wallet-insights/internal/circuitbreaker"
	"github.com/wallet-insights/internal/config"
	apperrors "github.com/wallet-insights/internal/errors"
	"github.com/wallet-insights/internal/flow"
	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/retry"
	"github.com/wallet-insights/internal/scoring"
	"github.com/wallet-insights/internal/storage"
	"github.com/wallet-insights/internal/types"
)

// memStore is an in-memory implementation of every repository interface
type memStore struct {
	mu       sync.Mutex
	projects map[string]*models.Project
	wallets  map[string]*models.Wallet
	audit    []models.PrivacyAuditEntry
	txs      map[string][]models.Transaction
	rollups  map[string][]models.ActivityRollup
	scores   map[string]models.ProductivityScore
	stages   map[string]map[types.StageName]models.AdoptionStage
	grants   []models.AccessGrant
	ledger   []models.EarningsEntry
	balances map[string]decimal.Decimal

	// failTx makes transaction reads fail for the given wallets
	failTx map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		projects: make(map[string]*models.Project),
		wallets:  make(map[string]*models.Wallet),
		txs:      make(map[string][]models.Transaction),
		rollups:  make(map[string][]models.ActivityRollup),
		scores:   make(map[string]models.ProductivityScore),
		stages:   make(map[string]map[types.StageName]models.AdoptionStage),
		balances: make(map[string]decimal.Decimal),
		failTx:   make(map[string]error),
	}
}

func (m *memStore) addProject(id, ownerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[id] = &models.Project{ID: id, OwnerID: ownerID, Name: id}
}

func (m *memStore) addWallet(id, projectID string, mode types.PrivacyMode, createdAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[id] = &models.Wallet{
		ID:          id,
		Address:     "addr-" + id,
		ProjectID:   projectID,
		OwnerID:     m.projects[projectID].OwnerID,
		PrivacyMode: mode,
		CreatedAt:   createdAt,
	}
}

func (m *memStore) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil, apperrors.NewNotFoundError("project", projectID)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetWallet(ctx context.Context, walletID string) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[walletID]
	if !ok {
		return nil, apperrors.NewNotFoundError("wallet", walletID)
	}
	cp := *w
	return &cp, nil
}

func (m *memStore) ListProjectWallets(ctx context.Context, projectID string) ([]models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Wallet
	for _, w := range m.wallets {
		if w.ProjectID == projectID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) SetPrivacyMode(ctx context.Context, walletID string, mode types.PrivacyMode, actorID string) (*models.PrivacyAuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[walletID]
	if !ok {
		return nil, apperrors.NewNotFoundError("wallet", walletID)
	}
	entry := models.PrivacyAuditEntry{
		ID: "audit", WalletID: walletID, PreviousMode: w.PrivacyMode, NewMode: mode, ActorID: actorID, ChangedAt: time.Now(),
	}
	w.PrivacyMode = mode
	m.audit = append(m.audit, entry)
	return &entry, nil
}

func (m *memStore) ListTransactions(ctx context.Context, walletID string, from, to time.Time) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failTx[walletID]; err != nil {
		return nil, err
	}
	var out []models.Transaction
	for _, tx := range m.txs[walletID] {
		if (!from.IsZero() && tx.Timestamp.Before(from)) || (!to.IsZero() && tx.Timestamp.After(to)) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (m *memStore) ListRollups(ctx context.Context, walletID string) ([]models.ActivityRollup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failTx[walletID]; err != nil {
		return nil, err
	}
	return append([]models.ActivityRollup(nil), m.rollups[walletID]...), nil
}

func (m *memStore) ListProjectRollups(ctx context.Context, walletIDs []string, from, to time.Time) ([]models.ActivityRollup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ActivityRollup
	for _, id := range walletIDs {
		out = append(out, m.rollups[id]...)
	}
	return out, nil
}

func (m *memStore) UpsertRollups(ctx context.Context, rollups []models.ActivityRollup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rollups {
		list := m.rollups[r.WalletID]
		replaced := false
		for i := range list {
			if list[i].Date.Equal(r.Date) {
				list[i] = r
				replaced = true
			}
		}
		if !replaced {
			list = append(list, r)
		}
		m.rollups[r.WalletID] = list
	}
	return nil
}

func (m *memStore) GetScore(ctx context.Context, walletID string) (*models.ProductivityScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scores[walletID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) UpsertScore(ctx context.Context, score *models.ProductivityScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[score.WalletID] = *score
	return nil
}

func (m *memStore) ListScores(ctx context.Context, walletIDs []string) (map[string]models.ProductivityScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.ProductivityScore)
	for _, id := range walletIDs {
		if s, ok := m.scores[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (m *memStore) ListStages(ctx context.Context, walletID string) ([]models.AdoptionStage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AdoptionStage
	for _, name := range types.OrderedStages {
		if s, ok := m.stages[walletID][name]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) ListProjectStages(ctx context.Context, walletIDs []string) (map[string][]models.AdoptionStage, error) {
	out := make(map[string][]models.AdoptionStage)
	for _, id := range walletIDs {
		stages, _ := m.ListStages(ctx, id)
		out[id] = stages
	}
	return out, nil
}

// UpsertStages mirrors the COALESCE on achieved_at
func (m *memStore) UpsertStages(ctx context.Context, stages []models.AdoptionStage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range stages {
		if m.stages[s.WalletID] == nil {
			m.stages[s.WalletID] = make(map[types.StageName]models.AdoptionStage)
		}
		if old, ok := m.stages[s.WalletID][s.Stage]; ok && old.AchievedAt != nil {
			s.AchievedAt = old.AchievedAt
			s.TimeToAchieveHours = old.TimeToAchieveHours
		}
		m.stages[s.WalletID][s.Stage] = s
	}
	return nil
}

func (m *memStore) FindActiveGrant(ctx context.Context, walletID, requesterID string, at time.Time) (*models.AccessGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.AccessGrant
	for i := range m.grants {
		g := m.grants[i]
		if g.WalletID == walletID && g.RequesterID == requesterID && g.ActiveAt(at) {
			if best == nil || g.ExpiresAt.After(best.ExpiresAt) {
				best = &g
			}
		}
	}
	return best, nil
}

func (m *memStore) CreateGrantWithEarnings(ctx context.Context, grant *models.AccessGrant, entry *models.EarningsEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants = append(m.grants, *grant)
	m.ledger = append(m.ledger, *entry)
	m.balances[entry.OwnerID] = m.balances[entry.OwnerID].Add(entry.OwnerShare)
	return nil
}

func (m *memStore) GetEarnings(ctx context.Context, ownerID string) (*models.OwnerEarnings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &models.OwnerEarnings{OwnerID: ownerID, Balance: m.balances[ownerID], Entries: []models.EarningsEntry{}}
	for _, e := range m.ledger {
		if e.OwnerID == ownerID {
			out.Entries = append(out.Entries, e)
		}
	}
	return out, nil
}

type stubPayments struct {
	amount decimal.Decimal
	err    error
}

func (p *stubPayments) VerifyPayment(ctx context.Context, paymentRef, walletID, requesterID string) (decimal.Decimal, error) {
	return p.amount, p.err
}

var errStoreDown = errors.New("store down")

// fixture wires every service against one memStore and a miniredis view cache
type fixture struct {
	store       *memStore
	cache       *storage.ViewCache
	mr          *miniredis.Miniredis
	payments    *stubPayments
	flows       *FlowService
	scoring     *ScoringService
	privacy     *PrivacyService
	aggregation *AggregationService
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := newMemStore()
	cache := storage.NewViewCache(storage.NewRedisCacheFromClient(client), 5*time.Minute, time.Hour)
	retryCfg := retry.Config{MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	breakerCfg := circuitbreaker.DefaultConfig("test-store")
	breakerCfg.MaxFailures = 100

	flows := NewFlowService(store, store, flow.DefaultConfig(), circuitbreaker.NewCircuitBreaker(breakerCfg), retryCfg)
	flows.now = clock

	scoringSvc := NewScoringService(store, store, store, store, cache, scoring.DefaultConfig(),
		config.BatchConfig{Concurrency: 4, QueueSize: 100, WalletTimeout: 5 * time.Second},
		circuitbreaker.NewCircuitBreaker(breakerCfg), retryCfg)
	scoringSvc.now = clock

	payments := &stubPayments{amount: decimal.RequireFromString("10")}
	privacySvc := NewPrivacyService(store, store, store, payments, flows, scoringSvc, cache,
		config.MonetizationConfig{OwnerShare: 0.7, GrantDuration: 30 * 24 * time.Hour}, retryCfg)
	privacySvc.now = clock

	aggregation := NewAggregationService(store, store, store, store, cache, scoring.DefaultConfig(),
		circuitbreaker.NewCircuitBreaker(breakerCfg), retryCfg)
	aggregation.now = clock

	return &fixture{
		store:       store,
		cache:       cache,
		mr:          mr,
		payments:    payments,
		flows:       flows,
		scoring:     scoringSvc,
		privacy:     privacySvc,
		aggregation: aggregation,
		now:         now,
	}
}

// dailyTransfers gives a wallet one transfer per day for the n days ending at end
func (m *memStore) dailyTransfers(walletID string, end time.Time, n int, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := n - 1; i >= 0; i-- {
		ts := end.Add(-time.Duration(i) * 24 * time.Hour)
		m.txs[walletID] = append(m.txs[walletID], models.Transaction{
			WalletID: walletID, TxID: walletID + "-" + ts.Format("20060102"), Timestamp: ts,
			Type: types.TxTypeTransfer, Value: value,
		})
	}
}

