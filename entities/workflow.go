package entities

import (
	"fmt"
	"time"
)

// WorkflowState is the per-article pipeline position. States only move
// forward through the transition graph; failed is reachable from any
// non-terminal state; completed and failed are terminal.
type WorkflowState string

const (
	StatePending           WorkflowState = "pending"
	StateVideoProcessing   WorkflowState = "video_processing"
	StateCaptionProcessing WorkflowState = "caption_processing"
	StatePosting           WorkflowState = "posting"
	StateCompleted         WorkflowState = "completed"
	StateFailed            WorkflowState = "failed"
)

func (s WorkflowState) Terminal() bool { return s == StateCompleted || s == StateFailed }

// next maps each state to its single legal forward successor.
var next = map[WorkflowState]WorkflowState{
	StatePending:           StateVideoProcessing,
	StateVideoProcessing:   StateCaptionProcessing,
	StateCaptionProcessing: StatePosting,
	StatePosting:           StateCompleted,
}

// CanAdvance reports whether moving from s to to is a legal forward step.
// Failing from any non-terminal state is always allowed.
func (s WorkflowState) CanAdvance(to WorkflowState) bool {
	if to == StateFailed {
		return !s.Terminal()
	}
	return next[s] == to
}

// FailReason distinguishes why a workflow failed so operators can tell
// "service is down" apart from "we chose not to call it".
type FailReason string

const (
	ReasonProviderError  FailReason = "provider_error"
	ReasonValidation     FailReason = "validation"
	ReasonBudgetExceeded FailReason = "budget_exceeded"
	ReasonTimeout        FailReason = "timeout"
	ReasonNoPlatforms    FailReason = "no_platforms"
)

// JobStatus is the shared status enum used by provider webhooks and status
// polls alike (the two paths are deliberately shaped the same).
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case JobProcessing, JobCompleted, JobFailed:
		return JobStatus(s), nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// JobUpdate is one webhook delivery or poll result for an external job.
type JobUpdate struct {
	JobID    string
	Status   JobStatus
	AssetURL string
	Detail   string
}

// Workflow drives one accepted article through video generation, captioning
// and publishing. It is mutated only through workflow.Service transition
// methods; the current-state check in those methods is the sole concurrency
// guard (duplicate webhook deliveries are acknowledged and discarded).
type Workflow struct {
	ID        string `gorm:"primaryKey" json:"id"`
	ArticleID string `gorm:"index" json:"article_id"`
	Brand     Brand  `gorm:"index" json:"brand"`

	State      WorkflowState `gorm:"index" json:"state"`
	FailReason FailReason    `json:"fail_reason,omitempty"`
	Error      string        `json:"error,omitempty"`
	Warnings   string        `json:"warnings,omitempty"` // "; "-joined non-fatal notes

	ArticleTitle string `json:"article_title"`
	Script       string `json:"script,omitempty"`
	Caption      string `json:"caption,omitempty"`

	// External correlation ids.
	VideoJobID    string `gorm:"index" json:"video_job_id,omitempty"`
	CaptionJobID  string `gorm:"index" json:"caption_job_id,omitempty"`
	PublishPostID string `json:"publish_post_id,omitempty"`

	VideoURL string `json:"video_url,omitempty"` // raw avatar render
	AssetURL string `json:"asset_url,omitempty"` // captioned final cut

	// Two-phase caption completion: set when an export was requested so a
	// redelivered "completed, no URL" webhook does not trigger it twice.
	ExportTriggeredAt *time.Time `json:"export_triggered_at,omitempty"`

	PublishAt *time.Time `json:"publish_at,omitempty"`
	SlotIndex *int       `json:"slot_index,omitempty"`

	ExperimentID string `json:"experiment_id,omitempty"`
	VariantID    string `json:"variant_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
