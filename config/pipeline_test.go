package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"socialcast/entities"
)

const pipelineYAML = `
timezone: UTC
brands:
  autos:
    display_name: Auto Brief
    daily_capacity: 3
    broker_profile: autos-main
    avatar_id: av-1
    voice_id: vo-1
    caption_style: bold
    platforms: [tiktok, instagram]
  realty: {}
feeds:
  - id: autos-rss
    name: Autos RSS
    url: https://example.com/feed
    brand: autos
    scanner: rss
slots:
  autos:
    - { time: "12:00", group: midday }
    - { time: "18:30", group: evening }
budgets:
  videogen:
    daily_units: 10
    unit_cost_usd: 0.5
`

func writePipeline(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func TestLoadPipeline(t *testing.T) {
	p, err := LoadPipeline(writePipeline(t, pipelineYAML))
	require.NoError(t, err)

	autos := p.Brands[entities.BrandAutos]
	assert.Equal(t, 3, autos.DailyCapacity)
	assert.Equal(t, entities.GroupEvening, autos.PrimaryGroup, "default group applied")

	// empty brand block gets all defaults
	realty := p.Brands[entities.BrandRealty]
	assert.Equal(t, 2, realty.DailyCapacity)
	assert.NotEmpty(t, realty.Platforms)

	require.Len(t, p.Slots[entities.BrandAutos], 2)
	sources := p.FeedSources()
	require.Len(t, sources, 1)
	assert.Equal(t, "autos-rss", sources[0].ID)
}

func TestLoadPipeline_RejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"unknown brand":    "brands:\n  sports: {}\n",
		"unknown platform": "brands:\n  autos:\n    platforms: [myspace]\n",
		"bad slot time":    "slots:\n  autos:\n    - { time: \"25:99\", group: evening }\n",
		"unknown scanner":  "feeds:\n  - { id: x, url: \"https://x\", brand: autos, scanner: soap }\n",
		"unknown provider": "budgets:\n  blockchain:\n    daily_units: 1\n",
	}
	for name, yaml := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadPipeline(writePipeline(t, yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadSlotSheet_OverlaysYAML(t *testing.T) {
	p, err := LoadPipeline(writePipeline(t, pipelineYAML))
	require.NoError(t, err)

	x := excelize.NewFile()
	sheet := "autos"
	_, err = x.NewSheet(sheet)
	require.NoError(t, err)
	// header cells as CSV-converted sheets often carry them: a leading byte
	// order mark and stray whitespace
	require.NoError(t, x.SetSheetRow(sheet, "A1", &[]string{"\uFEFFTime", " Group"}))
	require.NoError(t, x.SetSheetRow(sheet, "A2", &[]string{"09:15", "professional"}))
	require.NoError(t, x.SetSheetRow(sheet, "A3", &[]string{"19:00", "evening"}))
	path := filepath.Join(t.TempDir(), "slots.xlsx")
	require.NoError(t, x.SaveAs(path))

	require.NoError(t, p.LoadSlotSheet(path))

	slots := p.Slots[entities.BrandAutos]
	require.Len(t, slots, 2, "sheet replaces the YAML slot list")
	assert.Equal(t, "09:15", slots[0].Time)
	assert.Equal(t, entities.GroupProfessional, slots[0].Group)
	assert.Equal(t, entities.GroupEvening, slots[1].Group)
}

func TestLoadSlotSheet_RejectsMalformedRows(t *testing.T) {
	p, err := LoadPipeline(writePipeline(t, pipelineYAML))
	require.NoError(t, err)

	x := excelize.NewFile()
	_, err = x.NewSheet("autos")
	require.NoError(t, err)
	require.NoError(t, x.SetSheetRow("autos", "A1", &[]string{"Time", "Group"}))
	require.NoError(t, x.SetSheetRow("autos", "A2", &[]string{"noonish", "evening"}))
	path := filepath.Join(t.TempDir(), "slots.xlsx")
	require.NoError(t, x.SaveAs(path))

	assert.Error(t, p.LoadSlotSheet(path))
}
