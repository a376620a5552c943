package repository

import (
	"context"
	"time"

	"socialcast/entities"
)

type WorkflowRepository interface {
	Create(ctx context.Context, wf *entities.Workflow) error
	Get(ctx context.Context, id string) (entities.Workflow, error)
	List(ctx context.Context, brand entities.Brand, state entities.WorkflowState, limit int) ([]entities.Workflow, error)

	// CAS writes the whole record only if the stored state still equals
	// from. Losing the race means another invocation already handled this
	// transition; callers treat false as "acknowledge and drop".
	CAS(ctx context.Context, wf *entities.Workflow, from entities.WorkflowState) (bool, error)

	// HasActive reports whether the article already has a non-terminal
	// workflow.
	HasActive(ctx context.Context, articleID string) (bool, error)

	// StuckSince lists workflows sitting in the given states with no update
	// since the cutoff, for the recovery sweep.
	StuckSince(ctx context.Context, states []entities.WorkflowState, before time.Time) ([]entities.Workflow, error)
}
