package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"socialcast/config"
	"socialcast/entities"
)

// ErrBudgetExceeded blocks a billable call when enforcement is on.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Notifier receives threshold alerts. Notifying must never block or fail the
// spend that triggered it.
type Notifier interface {
	BudgetAlert(provider entities.Provider, brand entities.Brand, period string, pct float64)
}

// LogNotifier logs alerts; the default sink.
type LogNotifier struct{ Log *slog.Logger }

func (n LogNotifier) BudgetAlert(provider entities.Provider, brand entities.Brand, period string, pct float64) {
	n.Log.Warn("budget threshold crossed",
		"provider", provider, "brand", brand, "period", period, "pct", fmt.Sprintf("%.0f%%", pct))
}

// Ledger answers "can this call spend?" before billable work and records what
// was actually spent after. Counters are per provider, brand and UTC
// day/month. With enforcement off a breached cap only logs a warning.
type Ledger struct {
	repo     *Repository
	caps     map[entities.Provider]config.BudgetCap
	enforce  bool
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

func NewLedger(repo *Repository, caps map[entities.Provider]config.BudgetCap, enforce bool, log *slog.Logger) *Ledger {
	l := &Ledger{
		repo:    repo,
		caps:    caps,
		enforce: enforce,
		log:     log.With("component", "budget"),
		now:     time.Now,
	}
	l.notifier = LogNotifier{Log: l.log}
	return l
}

// SetNotifier swaps the alert sink.
func (l *Ledger) SetNotifier(n Notifier) { l.notifier = n }

func dayKey(t time.Time) string   { return t.UTC().Format("2006-01-02") }
func monthKey(t time.Time) string { return t.UTC().Format("2006-01") }

// CanAfford checks the daily and monthly caps before a billable call adds
// units. Zero caps mean unlimited. When enforcement is disabled a breach is
// advisory: logged, never blocking.
func (l *Ledger) CanAfford(ctx context.Context, provider entities.Provider, brand entities.Brand, units int) error {
	cap, ok := l.caps[provider]
	if !ok {
		return nil
	}
	now := l.now()

	check := func(period string, limit int) error {
		if limit <= 0 {
			return nil
		}
		row, err := l.repo.Get(ctx, provider, brand, period)
		if err != nil {
			return err
		}
		if row.Units+units > limit {
			if !l.enforce {
				l.log.Warn("budget cap breached (advisory)",
					"provider", provider, "brand", brand, "period", period,
					"spent", row.Units, "requested", units, "cap", limit)
				return nil
			}
			return fmt.Errorf("%w: %s/%s %s at %d/%d units", ErrBudgetExceeded, provider, brand, period, row.Units, limit)
		}
		return nil
	}

	if err := check(dayKey(now), cap.DailyUnits); err != nil {
		return err
	}
	return check(monthKey(now), cap.MonthlyUnits)
}

// RecordSpend increments the day and month counters, writes the audit row
// and fires threshold alerts. Called after the provider accepted the job, so
// it never blocks.
func (l *Ledger) RecordSpend(ctx context.Context, provider entities.Provider, brand entities.Brand, operation string, units int, workflowID string) error {
	cap := l.caps[provider]
	cost := float64(units) * cap.UnitCostUSD
	now := l.now()

	dayRow, err := l.repo.Increment(ctx, provider, brand, dayKey(now), units, cost)
	if err != nil {
		return err
	}
	if _, err := l.repo.Increment(ctx, provider, brand, monthKey(now), units, cost); err != nil {
		return err
	}

	if err := l.repo.Audit(ctx, entities.SpendEntry{
		ID: uuid.NewString(), Provider: provider, Brand: brand,
		Operation: operation, Units: units, CostUSD: cost, WorkflowID: workflowID,
	}); err != nil {
		l.log.Error("spend audit write failed", "err", err)
	}

	l.checkThreshold(provider, brand, dayRow, cap.DailyUnits, units)
	return nil
}

// checkThreshold alerts once when a spend crosses 80% or 95% of the daily
// cap. Crossing is judged against the pre-increment value so repeated spends
// above the line do not re-alert.
func (l *Ledger) checkThreshold(provider entities.Provider, brand entities.Brand, row entities.BudgetPeriod, limit, added int) {
	if limit <= 0 || l.notifier == nil {
		return
	}
	before := float64(row.Units-added) / float64(limit) * 100
	after := float64(row.Units) / float64(limit) * 100
	for _, th := range []float64{80, 95} {
		if before < th && after >= th {
			l.notifier.BudgetAlert(provider, brand, row.Period, after)
		}
	}
}

// Report returns spend counters for a period prefix.
func (l *Ledger) Report(ctx context.Context, prefix string) ([]entities.BudgetPeriod, error) {
	if prefix == "" {
		prefix = monthKey(l.now())
	}
	return l.repo.Report(ctx, prefix)
}
