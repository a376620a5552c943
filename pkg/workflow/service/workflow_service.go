package service

import (
	"context"

	"socialcast/entities"
)

// EvalSummary reports one scoring pass over a brand's unprocessed articles.
type EvalSummary struct {
	Brand     entities.Brand
	Evaluated int
	Accepted  int
	Rejected  int
	Deferred  int
	Started   int
}

// SweepSummary reports one recovery pass over stuck workflows.
type SweepSummary struct {
	Checked  int
	Advanced int
	Failed   int
}

type WorkflowService interface {
	// EvaluateBrand scores the brand's unprocessed articles, keeps the top
	// ones within daily capacity and starts a workflow for each.
	EvaluateBrand(ctx context.Context, brand entities.Brand) (EvalSummary, error)

	// StartFromArticle creates a workflow for an accepted article and
	// submits video generation (behind the budget gate).
	StartFromArticle(ctx context.Context, articleID string) (*entities.Workflow, error)

	// HandleVideoUpdate and HandleCaptionUpdate apply a provider status,
	// whether it arrived by webhook or by poll. Duplicates and stale
	// updates are acknowledged and dropped.
	HandleVideoUpdate(ctx context.Context, workflowID string, u entities.JobUpdate) error
	HandleCaptionUpdate(ctx context.Context, workflowID string, u entities.JobUpdate) error

	Get(ctx context.Context, id string) (entities.Workflow, error)
	List(ctx context.Context, brand entities.Brand, state entities.WorkflowState, limit int) ([]entities.Workflow, error)

	// Retry starts a fresh workflow from a terminal one's article. Refused
	// while the article still has a live workflow.
	Retry(ctx context.Context, id string) (*entities.Workflow, error)

	// Reopen is the operator override: it clears a terminal record's
	// failure and resumes from the stage its stored artifacts imply.
	Reopen(ctx context.Context, id string) (*entities.Workflow, error)

	// RecoverStuck polls providers for workflows that stopped hearing
	// webhooks and advances or fails them.
	RecoverStuck(ctx context.Context) (SweepSummary, error)
}
