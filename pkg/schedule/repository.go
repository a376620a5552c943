package schedule

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"socialcast/entities"
)

type Repository struct{ db *gorm.DB }

func NewRepository(db *gorm.DB) *Repository { return &Repository{db} }

// Claim atomically takes one slot occurrence for a workflow. The conflict
// clause makes the insert a compare-and-set on the (brand, day, slot) key:
// exactly one of two concurrent claimers gets true.
func (r *Repository) Claim(ctx context.Context, claim entities.SlotClaim) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "brand"}, {Name: "day"}, {Name: "slot_index"}},
		DoNothing: true,
	}).Create(&claim)
	if res.Error != nil {
		return false, fmt.Errorf("claim slot %s/%s/%d: %w", claim.Brand, claim.Day, claim.SlotIndex, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ClaimedIndexes returns which slot indexes are already taken for a brand's
// local day.
func (r *Repository) ClaimedIndexes(ctx context.Context, brand entities.Brand, day string) (map[int]bool, error) {
	var claims []entities.SlotClaim
	err := r.db.WithContext(ctx).
		Where("brand = ? AND day = ?", brand, day).
		Find(&claims).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(claims))
	for _, c := range claims {
		out[c.SlotIndex] = true
	}
	return out, nil
}

// Release frees a claim, used when a workflow fails after scheduling.
func (r *Repository) Release(ctx context.Context, brand entities.Brand, day string, slotIndex int) error {
	return r.db.WithContext(ctx).
		Where("brand = ? AND day = ? AND slot_index = ?", brand, day, slotIndex).
		Delete(&entities.SlotClaim{}).Error
}

// Upcoming lists claims with a publish time in the future, for the operator
// schedule view.
func (r *Repository) Upcoming(ctx context.Context, now time.Time) ([]entities.SlotClaim, error) {
	var claims []entities.SlotClaim
	err := r.db.WithContext(ctx).
		Where("publish_at > ?", now).
		Order("publish_at").
		Find(&claims).Error
	return claims, err
}
