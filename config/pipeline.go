package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"socialcast/entities"
)

// Pipeline is the structured configuration operators edit: which brands
// exist, where their articles come from, when they post, and how much each
// provider may spend. Loaded from YAML; slot lists can be overridden by an
// XLSX sheet (see LoadSlotSheet).
type Pipeline struct {
	Timezone string                                `yaml:"timezone"`
	Brands   map[entities.Brand]BrandProfile       `yaml:"brands"`
	Feeds    []FeedDef                             `yaml:"feeds"`
	Slots    map[entities.Brand][]SlotDef          `yaml:"slots"`
	Budgets  map[entities.Provider]BudgetCap       `yaml:"budgets"`
	Groups   map[entities.PlatformGroup]GroupHours `yaml:"groups,omitempty"`
}

// BrandProfile carries everything provider calls need for one brand.
type BrandProfile struct {
	DisplayName   string              `yaml:"display_name"`
	DailyCapacity int                 `yaml:"daily_capacity"` // articles promoted to workflows per day
	BrokerProfile string              `yaml:"broker_profile"` // broker-side account-set id
	AvatarID      string              `yaml:"avatar_id"`
	VoiceID       string              `yaml:"voice_id"`
	CaptionStyle  string              `yaml:"caption_style"`
	Rubric        string              `yaml:"rubric,omitempty"` // scoring rubric override
	ScriptStyle   string              `yaml:"script_style,omitempty"`
	Platforms     []entities.Platform `yaml:"platforms"`
	Hashtags      string              `yaml:"hashtags,omitempty"`
	// PrimaryGroup is the slot group pipeline posts go out on.
	PrimaryGroup entities.PlatformGroup `yaml:"primary_group"`
}

// FeedDef seeds a FeedSource row. Selectors only applies to the listing
// scanner and is "item|title|link" CSS triplet form.
type FeedDef struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name"`
	URL       string         `yaml:"url"`
	Brand     entities.Brand `yaml:"brand"`
	Scanner   string         `yaml:"scanner"` // rss|listing
	Selectors string         `yaml:"selectors,omitempty"`
}

// SlotDef is one standing posting slot: local wall time plus the platform
// group that posts at it. Order in the list is the allocation order.
type SlotDef struct {
	Time  string                 `yaml:"time"` // "15:04"
	Group entities.PlatformGroup `yaml:"group"`
}

// BudgetCap bounds one provider's spend. Zero caps mean unlimited.
type BudgetCap struct {
	DailyUnits   int     `yaml:"daily_units"`
	MonthlyUnits int     `yaml:"monthly_units"`
	UnitCostUSD  float64 `yaml:"unit_cost_usd"`
}

// GroupHours optionally pins a fixed posting hour per platform group for
// brands with no explicit slot list.
type GroupHours struct {
	Hour   int `yaml:"hour"`
	Minute int `yaml:"minute"`
}

// LoadPipeline reads and validates the YAML pipeline file.
func LoadPipeline(path string) (*Pipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline config: %w", err)
	}
	var p Pipeline
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse pipeline config: %w", err)
	}
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Pipeline) applyDefaults() {
	if p.Timezone == "" {
		p.Timezone = "America/New_York"
	}
	for b, prof := range p.Brands {
		if prof.DailyCapacity <= 0 {
			prof.DailyCapacity = 2
		}
		if len(prof.Platforms) == 0 {
			prof.Platforms = []entities.Platform{
				entities.PlatformInstagram, entities.PlatformTikTok, entities.PlatformYouTube,
			}
		}
		if prof.PrimaryGroup == "" {
			prof.PrimaryGroup = entities.GroupEvening
		}
		p.Brands[b] = prof
	}
}

// Validate rejects unknown enum values and malformed slot times so a typo in
// the YAML fails at startup, not mid-pipeline.
func (p *Pipeline) Validate() error {
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("pipeline timezone %q: %w", p.Timezone, err)
	}
	for b := range p.Brands {
		if _, err := entities.ParseBrand(string(b)); err != nil {
			return fmt.Errorf("brands: %w", err)
		}
	}
	for b, prof := range p.Brands {
		for _, pl := range prof.Platforms {
			if _, err := entities.ParsePlatform(string(pl)); err != nil {
				return fmt.Errorf("brand %s platforms: %w", b, err)
			}
		}
		if _, err := entities.ParsePlatformGroup(string(prof.PrimaryGroup)); err != nil {
			return fmt.Errorf("brand %s: %w", b, err)
		}
	}
	for i, f := range p.Feeds {
		if f.ID == "" || f.URL == "" {
			return fmt.Errorf("feeds[%d]: id and url are required", i)
		}
		if _, err := entities.ParseBrand(string(f.Brand)); err != nil {
			return fmt.Errorf("feeds[%d]: %w", i, err)
		}
		if f.Scanner != "rss" && f.Scanner != "listing" {
			return fmt.Errorf("feeds[%d]: unknown scanner %q", i, f.Scanner)
		}
	}
	for b, slots := range p.Slots {
		if _, err := entities.ParseBrand(string(b)); err != nil {
			return fmt.Errorf("slots: %w", err)
		}
		for i, s := range slots {
			if _, _, err := ParseSlotTime(s.Time); err != nil {
				return fmt.Errorf("slots[%s][%d]: %w", b, i, err)
			}
			if _, err := entities.ParsePlatformGroup(string(s.Group)); err != nil {
				return fmt.Errorf("slots[%s][%d]: %w", b, i, err)
			}
		}
	}
	for prov := range p.Budgets {
		if _, err := entities.ParseProvider(string(prov)); err != nil {
			return fmt.Errorf("budgets: %w", err)
		}
	}
	return nil
}

// Location resolves the pipeline timezone; Validate has already proved it.
func (p *Pipeline) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FeedSources converts the config feed list into persistable rows.
func (p *Pipeline) FeedSources() []entities.FeedSource {
	out := make([]entities.FeedSource, 0, len(p.Feeds))
	for _, f := range p.Feeds {
		out = append(out, entities.FeedSource{
			ID:        f.ID,
			Name:      f.Name,
			URL:       f.URL,
			Brand:     f.Brand,
			Scanner:   f.Scanner,
			Selectors: f.Selectors,
			Enabled:   true,
		})
	}
	return out
}

// ParseSlotTime splits "15:04" into hour and minute.
func ParseSlotTime(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("slot time %q: want HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}
