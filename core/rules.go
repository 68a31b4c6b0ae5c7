package core

import "context"

// Rule inspects the state before and after a mutation and emits derived events.
type Rule interface {
	Evaluate(ctx context.Context, before, after UserProgress) []Event
}

// LevelUpRule emits a level up when the level increases.
type LevelUpRule struct{}

func (LevelUpRule) Evaluate(_ context.Context, before, after UserProgress) []Event {
	if after.Level > before.Level {
		return []Event{NewLevelUp(after.Level)}
	}
	return nil
}

// AchievementRule emits one event per achievement that became satisfied
// between the two snapshots.
type AchievementRule struct{ Catalog []Achievement }

func (r AchievementRule) Evaluate(_ context.Context, before, after UserProgress) []Event {
	was := make(map[string]struct{})
	for _, id := range EvaluateAchievements(before, r.Catalog) {
		was[id] = struct{}{}
	}
	var out []Event
	for _, id := range EvaluateAchievements(after, r.Catalog) {
		if _, ok := was[id]; !ok {
			out = append(out, NewAchievementUnlocked(id))
		}
	}
	return out
}
