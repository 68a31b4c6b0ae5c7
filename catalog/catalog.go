// Package catalog holds the static reference data: waste categories,
// achievement definitions, the reward shop and the educational lessons.
// It is loaded once at startup, from the embedded default or a TOML file.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"wastewise/core"
)

//go:embed default.toml
var defaultTOML []byte

// RewardItem is a badge or sticker that can be bought with coins.
type RewardItem struct {
	ID   string `json:"id" toml:"id"`
	Name string `json:"name" toml:"name"`
	Icon string `json:"icon,omitempty" toml:"icon"`
	Cost int64  `json:"cost" toml:"cost"`
}

// Lesson is a short piece of educational content.
type Lesson struct {
	Title   string `json:"title" toml:"title"`
	Content string `json:"content" toml:"content"`
}

// Catalog is immutable after construction.
type Catalog struct {
	Categories   []core.WasteCategory `json:"categories" toml:"categories"`
	Achievements []core.Achievement   `json:"achievements" toml:"achievements"`
	Badges       []RewardItem         `json:"badges" toml:"badges"`
	Stickers     []RewardItem         `json:"stickers" toml:"stickers"`
	Lessons      []Lesson             `json:"lessons" toml:"lessons"`

	byID   map[string]int
	byName map[string]int
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultTOML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Parse decodes and validates a TOML catalog. Unknown keys are rejected.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&c)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown catalog keys: %s", strings.Join(keys, ", "))
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile reads a TOML catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	var c Catalog
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("catalog %s: unknown key %s", path, undecoded[0].String())
	}
	if err := c.init(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return &c, nil
}

func (c *Catalog) init() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.byID = make(map[string]int, len(c.Categories))
	c.byName = make(map[string]int, len(c.Categories))
	for i, cat := range c.Categories {
		c.byID[cat.ID] = i
		c.byName[strings.ToLower(cat.Name)] = i
	}
	return nil
}

// Validate checks id uniqueness and cross references.
func (c *Catalog) Validate() error {
	var errs []string
	if len(c.Categories) == 0 {
		errs = append(errs, "at least one category is required")
	}
	categories := map[string]struct{}{}
	for i, cat := range c.Categories {
		if err := core.ValidateID(cat.ID); err != nil {
			errs = append(errs, fmt.Sprintf("categories[%d]: %v", i, err))
			continue
		}
		if _, dup := categories[cat.ID]; dup {
			errs = append(errs, fmt.Sprintf("categories[%d]: duplicate id %q", i, cat.ID))
		}
		categories[cat.ID] = struct{}{}
	}

	achievements := map[string]struct{}{}
	for i, a := range c.Achievements {
		if err := core.ValidateID(a.ID); err != nil {
			errs = append(errs, fmt.Sprintf("achievements[%d]: %v", i, err))
			continue
		}
		if _, dup := achievements[a.ID]; dup {
			errs = append(errs, fmt.Sprintf("achievements[%d]: duplicate id %q", i, a.ID))
		}
		achievements[a.ID] = struct{}{}
		if a.RequirementCount < 1 {
			errs = append(errs, fmt.Sprintf("achievements[%d]: requirement must be >= 1", i))
		}
		switch a.Trigger.Kind {
		case core.TriggerScanCount, core.TriggerLevelReached:
		case core.TriggerCategoryScans:
			if _, ok := categories[a.Trigger.CategoryID]; !ok {
				errs = append(errs, fmt.Sprintf("achievements[%d]: unknown category %q", i, a.Trigger.CategoryID))
			}
		default:
			errs = append(errs, fmt.Sprintf("achievements[%d]: unknown trigger %q", i, a.Trigger.Kind))
		}
	}

	errs = append(errs, validateRewards("badges", c.Badges)...)
	errs = append(errs, validateRewards("stickers", c.Stickers)...)

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateRewards(section string, items []RewardItem) []string {
	var errs []string
	seen := map[string]struct{}{}
	for i, it := range items {
		if err := core.ValidateID(it.ID); err != nil {
			errs = append(errs, fmt.Sprintf("%s[%d]: %v", section, i, err))
			continue
		}
		if _, dup := seen[it.ID]; dup {
			errs = append(errs, fmt.Sprintf("%s[%d]: duplicate id %q", section, i, it.ID))
		}
		seen[it.ID] = struct{}{}
		if it.Cost < 0 {
			errs = append(errs, fmt.Sprintf("%s[%d]: cost must not be negative", section, i))
		}
	}
	return errs
}

// Category looks a category up by id.
func (c *Catalog) Category(id string) (core.WasteCategory, bool) {
	i, ok := c.byID[id]
	if !ok {
		return core.WasteCategory{}, false
	}
	return c.Categories[i], true
}

// Resolve maps a classifier label to a category. The label may be the
// category id or its display name, compared case-insensitively.
func (c *Catalog) Resolve(label string) (core.WasteCategory, error) {
	trimmed := strings.TrimSpace(label)
	if i, ok := c.byID[trimmed]; ok {
		return c.Categories[i], nil
	}
	key := strings.ToLower(trimmed)
	if i, ok := c.byID[key]; ok {
		return c.Categories[i], nil
	}
	if i, ok := c.byName[key]; ok {
		return c.Categories[i], nil
	}
	return core.WasteCategory{}, fmt.Errorf("%w: %q", core.ErrUnknownCategory, label)
}

// CategoryIDs lists category ids in catalog order.
func (c *Catalog) CategoryIDs() []string {
	out := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		out[i] = cat.ID
	}
	return out
}

// Rewards lists the shop items for kind.
func (c *Catalog) Rewards(kind core.RewardKind) []RewardItem {
	switch kind {
	case core.RewardBadge:
		return c.Badges
	case core.RewardSticker:
		return c.Stickers
	}
	return nil
}

// Reward finds a shop item.
func (c *Catalog) Reward(kind core.RewardKind, id string) (RewardItem, error) {
	if kind != core.RewardBadge && kind != core.RewardSticker {
		return RewardItem{}, core.ErrInvalidRewardKind
	}
	for _, it := range c.Rewards(kind) {
		if it.ID == id {
			return it, nil
		}
	}
	return RewardItem{}, fmt.Errorf("%w: %s %q", core.ErrUnknownReward, kind, id)
}
