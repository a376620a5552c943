package feed

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

// SeedSources inserts config-defined sources, leaving fetch bookkeeping on
// existing rows untouched and updating only the operator-editable fields.
func (r *Repository) SeedSources(ctx context.Context, sources []entities.FeedSource) error {
	for _, s := range sources {
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "url", "brand", "scanner", "selectors", "enabled",
			}),
		}).Create(&s).Error
		if err != nil {
			return fmt.Errorf("seed source %s: %w", s.ID, err)
		}
	}
	return nil
}

func (r *Repository) EnabledSources(ctx context.Context) ([]entities.FeedSource, error) {
	var out []entities.FeedSource
	err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&out).Error
	return out, err
}

// SaveArticle inserts one article, deduplicating on the canonical link.
// Returns false when the link was already known.
func (r *Repository) SaveArticle(ctx context.Context, a entities.Article) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "link"}},
		DoNothing: true,
	}).Create(&a)
	if res.Error != nil {
		return false, fmt.Errorf("save article %s: %w", a.Link, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// MarkFetched records a successful fetch; only this path advances
// LastFetched.
func (r *Repository) MarkFetched(ctx context.Context, sourceID string, at time.Time, seen, saved int) error {
	return r.db.WithContext(ctx).Model(&entities.FeedSource{}).
		Where("id = ?", sourceID).
		Updates(map[string]any{
			"last_fetched":   at,
			"last_error":     "",
			"articles_seen":  gorm.Expr("articles_seen + ?", seen),
			"articles_saved": gorm.Expr("articles_saved + ?", saved),
		}).Error
}

// MarkError records a failed fetch without touching LastFetched, so the next
// run re-scans the same window.
func (r *Repository) MarkError(ctx context.Context, sourceID string, fetchErr error) error {
	return r.db.WithContext(ctx).Model(&entities.FeedSource{}).
		Where("id = ?", sourceID).
		Update("last_error", fetchErr.Error()).Error
}

// Unprocessed lists articles awaiting a quality verdict for one brand,
// oldest first.
func (r *Repository) Unprocessed(ctx context.Context, brand entities.Brand) ([]entities.Article, error) {
	var out []entities.Article
	err := r.db.WithContext(ctx).
		Where("brand = ? AND processed = ?", brand, false).
		Order("published_at, id").
		Find(&out).Error
	return out, err
}

// MarkProcessed stores the verdict on the article row. A nil score means the
// article never reached the scorer.
func (r *Repository) MarkProcessed(ctx context.Context, articleID string, score *int, rejection string) error {
	upd := map[string]any{"processed": true, "rejection": rejection}
	if score != nil {
		upd["quality_score"] = *score
	}
	return r.db.WithContext(ctx).Model(&entities.Article{}).
		Where("id = ?", articleID).Updates(upd).Error
}

// AttachWorkflow links an accepted article to the workflow created for it.
func (r *Repository) AttachWorkflow(ctx context.Context, articleID, workflowID string) error {
	return r.db.WithContext(ctx).Model(&entities.Article{}).
		Where("id = ?", articleID).Update("workflow_id", workflowID).Error
}

func (r *Repository) Get(ctx context.Context, id string) (entities.Article, error) {
	var a entities.Article
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Article{}, fmt.Errorf("article %s not found", id)
	}
	return a, err
}
