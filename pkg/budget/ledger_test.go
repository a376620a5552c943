package budget

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialcast/config"
	"socialcast/database"
	"socialcast/entities"
)

func testLedger(t *testing.T, caps map[entities.Provider]config.BudgetCap, enforce bool) *Ledger {
	t.Helper()
	db := database.OpenMemory()
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return NewLedger(NewRepository(db), caps, enforce, log)
}

func TestLedgerBlocksAtDailyCap(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t, map[entities.Provider]config.BudgetCap{
		entities.ProviderVideoGen: {DailyUnits: 3, UnitCostUSD: 0.5},
	}, true)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.CanAfford(ctx, entities.ProviderVideoGen, entities.BrandRealty, 1))
		require.NoError(t, l.RecordSpend(ctx, entities.ProviderVideoGen, entities.BrandRealty, "video.submit", 1, "wf-1"))
	}
	err := l.CanAfford(ctx, entities.ProviderVideoGen, entities.BrandRealty, 1)
	require.ErrorIs(t, err, ErrBudgetExceeded)

	// other brands keep their own counters
	assert.NoError(t, l.CanAfford(ctx, entities.ProviderVideoGen, entities.BrandAutos, 1))
}

func TestLedgerMonthlyCap(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t, map[entities.Provider]config.BudgetCap{
		entities.ProviderCaptions: {MonthlyUnits: 2, UnitCostUSD: 0.25},
	}, true)

	require.NoError(t, l.RecordSpend(ctx, entities.ProviderCaptions, entities.BrandRealty, "caption.create", 2, "wf-1"))
	err := l.CanAfford(ctx, entities.ProviderCaptions, entities.BrandRealty, 1)
	require.ErrorIs(t, err, ErrBudgetExceeded)
}

func TestLedgerAdvisoryModeNeverBlocks(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t, map[entities.Provider]config.BudgetCap{
		entities.ProviderVideoGen: {DailyUnits: 1, UnitCostUSD: 0.5},
	}, false)

	require.NoError(t, l.RecordSpend(ctx, entities.ProviderVideoGen, entities.BrandRealty, "video.submit", 5, "wf-1"))
	assert.NoError(t, l.CanAfford(ctx, entities.ProviderVideoGen, entities.BrandRealty, 1))
}

func TestLedgerUncappedProviderAlwaysAffordable(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t, map[entities.Provider]config.BudgetCap{}, true)
	assert.NoError(t, l.CanAfford(ctx, entities.ProviderBroker, entities.BrandPodcast, 100))
}

type captureNotifier struct{ alerts []float64 }

func (c *captureNotifier) BudgetAlert(_ entities.Provider, _ entities.Brand, _ string, pct float64) {
	c.alerts = append(c.alerts, pct)
}

func TestLedgerThresholdAlertsFireOnce(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t, map[entities.Provider]config.BudgetCap{
		entities.ProviderVideoGen: {DailyUnits: 10, UnitCostUSD: 0.5},
	}, true)
	n := &captureNotifier{}
	l.SetNotifier(n)

	// 0 -> 8 crosses 80
	require.NoError(t, l.RecordSpend(ctx, entities.ProviderVideoGen, entities.BrandRealty, "video.submit", 8, "wf-1"))
	require.Len(t, n.alerts, 1)
	assert.InDelta(t, 80, n.alerts[0], 0.01)

	// 8 -> 9 crosses nothing
	require.NoError(t, l.RecordSpend(ctx, entities.ProviderVideoGen, entities.BrandRealty, "video.submit", 1, "wf-2"))
	require.Len(t, n.alerts, 1)

	// 9 -> 10 crosses 95
	require.NoError(t, l.RecordSpend(ctx, entities.ProviderVideoGen, entities.BrandRealty, "video.submit", 1, "wf-3"))
	require.Len(t, n.alerts, 2)
	assert.InDelta(t, 100, n.alerts[1], 0.01)
}

func TestRepositoryIncrementAccumulates(t *testing.T) {
	ctx := context.Background()
	db := database.OpenMemory()
	repo := NewRepository(db)

	day := time.Now().UTC().Format("2006-01-02")
	_, err := repo.Increment(ctx, entities.ProviderVideoGen, entities.BrandRealty, day, 2, 1.0)
	require.NoError(t, err)
	row, err := repo.Increment(ctx, entities.ProviderVideoGen, entities.BrandRealty, day, 3, 1.5)
	require.NoError(t, err)

	assert.Equal(t, 5, row.Units)
	assert.InDelta(t, 2.5, row.CostUSD, 0.001)
}

func TestRepositoryGetMissingIsZero(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(database.OpenMemory())
	row, err := repo.Get(ctx, entities.ProviderScorer, entities.BrandAutos, "2026-01-01")
	require.NoError(t, err)
	assert.Zero(t, row.Units)
	assert.Zero(t, row.CostUSD)
}
