package config

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"socialcast/entities"
)

// LoadSlotSheet reads posting slots from an XLSX workbook and overlays them
// onto the pipeline's slot map. Operators maintain posting times in a
// spreadsheet; one sheet per brand, columns Time and Group. Brands with no
// sheet keep their YAML slots.
func (p *Pipeline) LoadSlotSheet(path string) error {
	x, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open slot sheet: %w", err)
	}
	defer x.Close()

	norm := func(s string) string {
		s = strings.TrimSpace(s)
		s = strings.TrimPrefix(s, "\uFEFF")
		return strings.ToLower(s)
	}

	if p.Slots == nil {
		p.Slots = map[entities.Brand][]SlotDef{}
	}

	for _, sheet := range x.GetSheetList() {
		brand, err := entities.ParseBrand(norm(sheet))
		if err != nil {
			continue // unrelated sheet
		}
		rows, err := x.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("slot sheet %s: %w", sheet, err)
		}
		if len(rows) < 2 {
			continue
		}

		cTime, cGroup := -1, -1
		for i, h := range rows[0] {
			switch norm(h) {
			case "time", "slot", "slot_time":
				cTime = i
			case "group", "platform_group", "platforms":
				cGroup = i
			}
		}
		if cTime == -1 || cGroup == -1 {
			return fmt.Errorf("slot sheet %s: need Time and Group columns, got %v", sheet, rows[0])
		}

		var slots []SlotDef
		for n, rec := range rows[1:] {
			get := func(idx int) string {
				if idx >= len(rec) {
					return ""
				}
				return strings.TrimSpace(rec[idx])
			}
			ts, gs := get(cTime), get(cGroup)
			if ts == "" {
				continue // blank trailing row
			}
			if _, _, err := ParseSlotTime(ts); err != nil {
				return fmt.Errorf("slot sheet %s row %d: %w", sheet, n+2, err)
			}
			group, err := entities.ParsePlatformGroup(norm(gs))
			if err != nil {
				return fmt.Errorf("slot sheet %s row %d: %w", sheet, n+2, err)
			}
			slots = append(slots, SlotDef{Time: ts, Group: group})
		}
		if len(slots) > 0 {
			p.Slots[brand] = slots
		}
	}
	return nil
}
