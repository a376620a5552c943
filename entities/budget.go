package entities

import "time"

// BudgetPeriod accumulates spend for one provider, brand and period key
// ("2026-08-29" for a UTC day, "2026-08" for a month). Counters are
// increment-only and updated with atomic SQL expressions, never
// read-modify-write, since concurrent invocations race on the same row.
type BudgetPeriod struct {
	Provider Provider `gorm:"primaryKey" json:"provider"`
	Brand    Brand    `gorm:"primaryKey" json:"brand"`
	Period   string   `gorm:"primaryKey" json:"period"`

	Units   int     `json:"units"`
	CostUSD float64 `json:"cost_usd"`

	UpdatedAt time.Time `json:"updated_at"`
}

// SpendEntry is the per-call audit row behind the aggregates.
type SpendEntry struct {
	ID         string   `gorm:"primaryKey" json:"id"`
	Provider   Provider `gorm:"index" json:"provider"`
	Brand      Brand    `json:"brand"`
	Operation  string   `json:"operation"`
	Units      int      `json:"units"`
	CostUSD    float64  `json:"cost_usd"`
	WorkflowID string   `json:"workflow_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
