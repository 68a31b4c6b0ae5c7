package core

import (
	"fmt"
	"sort"
)

// TriggerKind names what an achievement is measured against.
type TriggerKind string

const (
	TriggerScanCount     TriggerKind = "scan_count"
	TriggerCategoryScans TriggerKind = "category_scan"
	TriggerLevelReached  TriggerKind = "level"
)

// Trigger selects the counter an achievement compares with its requirement.
// CategoryID is only meaningful for TriggerCategoryScans.
type Trigger struct {
	Kind       TriggerKind `json:"kind" toml:"kind"`
	CategoryID string      `json:"category_id,omitempty" toml:"category"`
}

func (t Trigger) String() string {
	if t.Kind == TriggerCategoryScans {
		return fmt.Sprintf("%s(%s)", t.Kind, t.CategoryID)
	}
	return string(t.Kind)
}

// Achievement is an immutable catalog entry.
type Achievement struct {
	ID               string  `json:"id" toml:"id"`
	Name             string  `json:"name" toml:"name"`
	Description      string  `json:"description" toml:"description"`
	RequirementCount int64   `json:"requirement" toml:"requirement"`
	Trigger          Trigger `json:"trigger" toml:"trigger"`
}

// Satisfied reports whether progress meets the achievement's requirement.
// Unknown trigger kinds are never satisfied.
func (a Achievement) Satisfied(p UserProgress) bool {
	switch a.Trigger.Kind {
	case TriggerScanCount:
		return p.TotalScanned >= a.RequirementCount
	case TriggerCategoryScans:
		return p.PerCategoryCount[a.Trigger.CategoryID] >= a.RequirementCount
	case TriggerLevelReached:
		return p.Level >= a.RequirementCount
	}
	return false
}

// Current is the counter value the achievement compares against.
func (a Achievement) Current(p UserProgress) int64 {
	switch a.Trigger.Kind {
	case TriggerScanCount:
		return p.TotalScanned
	case TriggerCategoryScans:
		return p.PerCategoryCount[a.Trigger.CategoryID]
	case TriggerLevelReached:
		return p.Level
	}
	return 0
}

// EvaluateAchievements returns the sorted ids of every achievement the
// progress satisfies. It keeps no state; diffing against what was already
// reported is the caller's job.
func EvaluateAchievements(p UserProgress, catalog []Achievement) []string {
	var out []string
	seen := make(map[string]struct{}, len(catalog))
	for _, a := range catalog {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		if a.Satisfied(p) {
			seen[a.ID] = struct{}{}
			out = append(out, a.ID)
		}
	}
	sort.Strings(out)
	return out
}

// AchievementStatus pairs a definition with its state for display.
type AchievementStatus struct {
	Achievement
	Current  int64 `json:"current"`
	Unlocked bool  `json:"unlocked"`
}

// AchievementStatuses reports every catalog entry in catalog order.
func AchievementStatuses(p UserProgress, catalog []Achievement) []AchievementStatus {
	out := make([]AchievementStatus, 0, len(catalog))
	for _, a := range catalog {
		out = append(out, AchievementStatus{
			Achievement: a,
			Current:     min(a.Current(p), a.RequirementCount),
			Unlocked:    a.Satisfied(p),
		})
	}
	return out
}
