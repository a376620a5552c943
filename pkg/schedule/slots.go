package schedule

import (
	"fmt"
	"time"

	"socialcast/config"
	"socialcast/entities"
)

// Slot is one standing posting occurrence per local day. Index is the slot's
// position in the configured list and doubles as the claim key, so reordering
// the config resets claims cleanly at the next day rollover.
type Slot struct {
	Index  int
	Hour   int
	Minute int
	Group  entities.PlatformGroup
}

// SlotTable holds every brand's configured slots plus the pipeline timezone
// all wall times are interpreted in.
type SlotTable struct {
	byBrand map[entities.Brand][]Slot
	loc     *time.Location
}

// BuildSlotTable converts validated pipeline config into the allocator's
// lookup form.
func BuildSlotTable(p *config.Pipeline) (*SlotTable, error) {
	t := &SlotTable{byBrand: map[entities.Brand][]Slot{}, loc: p.Location()}
	for brand, defs := range p.Slots {
		slots := make([]Slot, 0, len(defs))
		for i, d := range defs {
			h, m, err := config.ParseSlotTime(d.Time)
			if err != nil {
				return nil, fmt.Errorf("brand %s slot %d: %w", brand, i, err)
			}
			slots = append(slots, Slot{Index: i, Hour: h, Minute: m, Group: d.Group})
		}
		t.byBrand[brand] = slots
	}
	return t, nil
}

// Brand returns the brand's slots in configured order.
func (t *SlotTable) Brand(b entities.Brand) []Slot { return t.byBrand[b] }

func (t *SlotTable) Location() *time.Location { return t.loc }

// At resolves a slot's wall time on a given local day.
func (t *SlotTable) At(day time.Time, s Slot) time.Time {
	y, m, d := day.In(t.loc).Date()
	return time.Date(y, m, d, s.Hour, s.Minute, 0, 0, t.loc)
}
