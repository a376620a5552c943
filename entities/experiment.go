package entities

import "time"

// ExperimentVariant carries the modifiers a variant applies to a workflow.
// Stored as a JSON column on the experiment via the gorm serializer.
type ExperimentVariant struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PromptModifier string `json:"prompt_modifier,omitempty"`
	CaptionSuffix  string `json:"caption_suffix,omitempty"`
	// Optional fixed posting time overriding slot allocation.
	PostHour   *int   `json:"post_hour,omitempty"`
	PostMinute int    `json:"post_minute,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
}

type ExperimentStatus string

const (
	ExperimentDraft     ExperimentStatus = "draft"
	ExperimentActive    ExperimentStatus = "active"
	ExperimentPaused    ExperimentStatus = "paused"
	ExperimentCompleted ExperimentStatus = "completed"
)

// Experiment is an A/B test over a brand's content pipeline. TrafficSplit
// holds one weight per variant; weights are percentages and should sum
// to 100.
type Experiment struct {
	ID    string `gorm:"primaryKey" json:"id"`
	Name  string `json:"name"`
	Brand Brand  `gorm:"index" json:"brand"`

	Variants     []ExperimentVariant `gorm:"serializer:json" json:"variants"`
	TrafficSplit []int               `gorm:"serializer:json" json:"traffic_split"`

	Status ExperimentStatus `gorm:"index" json:"status"`

	WinningVariant string `json:"winning_variant,omitempty"`
	Confidence     int    `json:"confidence,omitempty"` // 0-100

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlatformMetrics is engagement pulled from the publisher for one platform.
type PlatformMetrics struct {
	Views    int `json:"views"`
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Shares   int `json:"shares"`
}

// ExperimentResult links a completed workflow to the variant it ran with
// and accumulates post-hoc engagement metrics per platform.
type ExperimentResult struct {
	ID           string `gorm:"primaryKey" json:"id"`
	ExperimentID string `gorm:"index" json:"experiment_id"`
	VariantID    string `gorm:"index" json:"variant_id"`
	WorkflowID   string `gorm:"uniqueIndex" json:"workflow_id"`
	Brand        Brand  `json:"brand"`

	Metrics map[Platform]PlatformMetrics `gorm:"serializer:json" json:"metrics"`

	TotalViews       int     `json:"total_views"`
	TotalEngagements int     `json:"total_engagements"`
	EngagementRate   float64 `json:"engagement_rate"` // percent

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Recompute refreshes the aggregate columns from the per-platform map.
func (r *ExperimentResult) Recompute() {
	r.TotalViews, r.TotalEngagements = 0, 0
	for _, m := range r.Metrics {
		r.TotalViews += m.Views
		r.TotalEngagements += m.Likes + m.Comments + m.Shares
	}
	if r.TotalViews > 0 {
		r.EngagementRate = float64(r.TotalEngagements) / float64(r.TotalViews) * 100
	} else {
		r.EngagementRate = 0
	}
}
