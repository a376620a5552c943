package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"socialcast/entities"
)

// minLead keeps posts from being scheduled into a slot the publisher cannot
// realistically hit.
const minLead = 10 * time.Minute

// horizonDays bounds the forward scan; a brand with slots configured will
// always find one well inside this.
const horizonDays = 14

// Allocator assigns workflows to the next free posting slot for their brand
// and platform group. Scan order is the configured order, today first, then
// day by day forward.
type Allocator struct {
	table *SlotTable
	repo  *Repository
	log   *slog.Logger
	now   func() time.Time
}

func NewAllocator(table *SlotTable, repo *Repository, log *slog.Logger) *Allocator {
	return &Allocator{
		table: table,
		repo:  repo,
		log:   log.With("component", "schedule"),
		now:   time.Now,
	}
}

// NextSlot claims the earliest eligible slot for the workflow and returns the
// claim with its publish time. Eligible means: matches the group, at least
// the minimum lead away, and not already claimed for that local day. Claims
// race through the repository CAS, so a lost race just moves to the next
// candidate.
func (a *Allocator) NextSlot(ctx context.Context, brand entities.Brand, group entities.PlatformGroup, workflowID string) (entities.SlotClaim, error) {
	slots := a.table.Brand(brand)
	if len(slots) == 0 {
		return entities.SlotClaim{}, fmt.Errorf("brand %s has no slots configured", brand)
	}

	now := a.now().In(a.table.Location())
	cutoff := now.Add(minLead)

	for dayOffset := 0; dayOffset < horizonDays; dayOffset++ {
		day := now.AddDate(0, 0, dayOffset)
		dayKey := day.Format("2006-01-02")

		claimed, err := a.repo.ClaimedIndexes(ctx, brand, dayKey)
		if err != nil {
			return entities.SlotClaim{}, err
		}

		for _, s := range slots {
			if s.Group != group || claimed[s.Index] {
				continue
			}
			publishAt := a.table.At(day, s)
			if !publishAt.After(cutoff) {
				continue
			}
			claim := entities.SlotClaim{
				Brand: brand, Day: dayKey, SlotIndex: s.Index,
				WorkflowID: workflowID, PublishAt: publishAt,
			}
			ok, err := a.repo.Claim(ctx, claim)
			if err != nil {
				return entities.SlotClaim{}, err
			}
			if ok {
				a.log.Debug("slot claimed",
					"brand", brand, "day", dayKey, "slot", s.Index, "publish_at", publishAt)
				return claim, nil
			}
			// lost the race, next candidate
		}
	}
	return entities.SlotClaim{}, fmt.Errorf("no free %s slot for %s within %d days", group, brand, horizonDays)
}

// Location exposes the slot table's timezone for callers that compute
// variant-pinned posting times.
func (a *Allocator) Location() *time.Location { return a.table.Location() }

// Release frees a workflow's claim after a downstream failure so the slot
// can be reused.
func (a *Allocator) Release(ctx context.Context, claim entities.SlotClaim) error {
	return a.repo.Release(ctx, claim.Brand, claim.Day, claim.SlotIndex)
}
