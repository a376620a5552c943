package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"socialcast/entities"
)

type Repository struct{ db *gorm.DB }

func NewRepository(db *gorm.DB) *Repository { return &Repository{db} }

// Increment adds units and cost to a period counter with a single upsert, so
// concurrent spenders never lose an update. Returns the post-increment row.
func (r *Repository) Increment(ctx context.Context, provider entities.Provider, brand entities.Brand, period string, units int, cost float64) (entities.BudgetPeriod, error) {
	row := entities.BudgetPeriod{
		Provider: provider, Brand: brand, Period: period,
		Units: units, CostUSD: cost, UpdatedAt: time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}, {Name: "brand"}, {Name: "period"}},
		DoUpdates: clause.Assignments(map[string]any{
			"units":      gorm.Expr("units + ?", units),
			"cost_usd":   gorm.Expr("cost_usd + ?", cost),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(&row).Error
	if err != nil {
		return entities.BudgetPeriod{}, fmt.Errorf("increment budget %s/%s/%s: %w", provider, brand, period, err)
	}
	return r.Get(ctx, provider, brand, period)
}

// Get returns the counter row, or an empty zero-spend row when none exists.
func (r *Repository) Get(ctx context.Context, provider entities.Provider, brand entities.Brand, period string) (entities.BudgetPeriod, error) {
	var row entities.BudgetPeriod
	err := r.db.WithContext(ctx).
		Where("provider = ? AND brand = ? AND period = ?", provider, brand, period).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.BudgetPeriod{Provider: provider, Brand: brand, Period: period}, nil
	}
	if err != nil {
		return entities.BudgetPeriod{}, fmt.Errorf("get budget %s/%s/%s: %w", provider, brand, period, err)
	}
	return row, nil
}

func (r *Repository) Audit(ctx context.Context, e entities.SpendEntry) error {
	return r.db.WithContext(ctx).Create(&e).Error
}

// Report lists all counters for a period prefix ("2026-08" matches the month
// row and every day in it), for the operator spend endpoint.
func (r *Repository) Report(ctx context.Context, prefix string) ([]entities.BudgetPeriod, error) {
	var rows []entities.BudgetPeriod
	err := r.db.WithContext(ctx).
		Where("period LIKE ?", prefix+"%").
		Order("period, provider, brand").
		Find(&rows).Error
	return rows, err
}
