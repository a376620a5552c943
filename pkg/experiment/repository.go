package experiment

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"socialcast/entities"
)

type Repository struct{ db *gorm.DB }

func NewRepository(db *gorm.DB) *Repository { return &Repository{db} }

func (r *Repository) Create(ctx context.Context, e *entities.Experiment) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *Repository) Get(ctx context.Context, id string) (entities.Experiment, error) {
	var e entities.Experiment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Experiment{}, fmt.Errorf("experiment %s not found", id)
	}
	return e, err
}

// ActiveForBrand returns the running experiment for a brand, nil when none.
// One active experiment per brand at a time; the oldest wins when operators
// misconfigure two.
func (r *Repository) ActiveForBrand(ctx context.Context, brand entities.Brand) (*entities.Experiment, error) {
	var e entities.Experiment
	err := r.db.WithContext(ctx).
		Where("brand = ? AND status = ?", brand, entities.ExperimentActive).
		Order("created_at").
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) Update(ctx context.Context, e *entities.Experiment) error {
	return r.db.WithContext(ctx).Save(e).Error
}

// SaveResult upserts on the workflow id so a re-run metrics sync refreshes
// instead of duplicating.
func (r *Repository) SaveResult(ctx context.Context, res *entities.ExperimentResult) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "workflow_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"metrics", "total_views", "total_engagements", "engagement_rate", "updated_at",
		}),
	}).Create(res).Error
}

func (r *Repository) Results(ctx context.Context, experimentID string) ([]entities.ExperimentResult, error) {
	var out []entities.ExperimentResult
	err := r.db.WithContext(ctx).
		Where("experiment_id = ?", experimentID).
		Find(&out).Error
	return out, err
}

func (r *Repository) ResultByWorkflow(ctx context.Context, workflowID string) (*entities.ExperimentResult, error) {
	var res entities.ExperimentResult
	err := r.db.WithContext(ctx).Where("workflow_id = ?", workflowID).First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *Repository) ActiveExperiments(ctx context.Context) ([]entities.Experiment, error) {
	var out []entities.Experiment
	err := r.db.WithContext(ctx).
		Where("status = ?", entities.ExperimentActive).
		Find(&out).Error
	return out, err
}
