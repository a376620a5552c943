package repositoryImp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"socialcast/entities"
	"socialcast/pkg/workflow/repository"
)

type wfRepo struct{ db *gorm.DB }

func New(db *gorm.DB) repository.WorkflowRepository { return &wfRepo{db} }

func (r *wfRepo) Create(ctx context.Context, wf *entities.Workflow) error {
	return r.db.WithContext(ctx).Create(wf).Error
}

func (r *wfRepo) Get(ctx context.Context, id string) (entities.Workflow, error) {
	var wf entities.Workflow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&wf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Workflow{}, fmt.Errorf("workflow %s not found", id)
	}
	return wf, err
}

func (r *wfRepo) List(ctx context.Context, brand entities.Brand, state entities.WorkflowState, limit int) ([]entities.Workflow, error) {
	q := r.db.WithContext(ctx).Model(&entities.Workflow{})
	if brand != "" {
		q = q.Where("brand = ?", brand)
	}
	if state != "" {
		q = q.Where("state = ?", state)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []entities.Workflow
	err := q.Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *wfRepo) CAS(ctx context.Context, wf *entities.Workflow, from entities.WorkflowState) (bool, error) {
	wf.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&entities.Workflow{}).
		Where("id = ? AND state = ?", wf.ID, from).
		Select("*").Omit("id", "created_at").
		Updates(wf)
	if res.Error != nil {
		return false, fmt.Errorf("transition workflow %s: %w", wf.ID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *wfRepo) HasActive(ctx context.Context, articleID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.Workflow{}).
		Where("article_id = ? AND state NOT IN ?", articleID,
			[]entities.WorkflowState{entities.StateCompleted, entities.StateFailed}).
		Count(&n).Error
	return n > 0, err
}

func (r *wfRepo) StuckSince(ctx context.Context, states []entities.WorkflowState, before time.Time) ([]entities.Workflow, error) {
	var out []entities.Workflow
	err := r.db.WithContext(ctx).
		Where("state IN ? AND updated_at < ?", states, before).
		Order("updated_at").
		Find(&out).Error
	return out, err
}
