package core

import (
	"context"
	"reflect"
	"testing"
)

var testAchievements = []Achievement{
	{ID: "first_scan", RequirementCount: 1, Trigger: Trigger{Kind: TriggerScanCount}},
	{ID: "paper_expert", RequirementCount: 10, Trigger: Trigger{Kind: TriggerCategoryScans, CategoryID: "paper"}},
	{ID: "eco_apprentice", RequirementCount: 5, Trigger: Trigger{Kind: TriggerLevelReached}},
}

func TestEvaluateAchievements(t *testing.T) {
	p := NewUserProgress()
	if got := EvaluateAchievements(p, testAchievements); len(got) != 0 {
		t.Fatalf("fresh progress satisfied %v", got)
	}

	p.TotalScanned = 10
	p.PerCategoryCount["paper"] = 9
	if got := EvaluateAchievements(p, testAchievements); !reflect.DeepEqual(got, []string{"first_scan"}) {
		t.Fatalf("got %v", got)
	}

	p.PerCategoryCount["paper"] = 10
	p.Level = 5
	want := []string{"eco_apprentice", "first_scan", "paper_expert"}
	if got := EvaluateAchievements(p, testAchievements); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	// repeated evaluation is idempotent
	if got := EvaluateAchievements(p, testAchievements); !reflect.DeepEqual(got, want) {
		t.Fatalf("second evaluation got %v", got)
	}
}

func TestAchievementStatuses(t *testing.T) {
	p := NewUserProgress()
	p.TotalScanned = 3
	p.PerCategoryCount["paper"] = 3
	st := AchievementStatuses(p, testAchievements)
	if len(st) != 3 {
		t.Fatalf("len %d", len(st))
	}
	if !st[0].Unlocked || st[0].Current != 1 {
		t.Fatalf("first_scan %+v", st[0])
	}
	if st[1].Unlocked || st[1].Current != 3 {
		t.Fatalf("paper_expert %+v", st[1])
	}
}

func TestRules(t *testing.T) {
	before := NewUserProgress()
	before.TotalScanned = 24
	after := before.Clone()
	after.TotalScanned = 25
	after.Level = 2

	evs := LevelUpRule{}.Evaluate(context.Background(), before, after)
	if len(evs) != 1 || evs[0].Type != EventLevelUp || evs[0].Level != 2 {
		t.Fatalf("unexpected %+v", evs)
	}
	if evs := (LevelUpRule{}).Evaluate(context.Background(), after, after); len(evs) != 0 {
		t.Fatalf("no level change should emit nothing, got %+v", evs)
	}

	rule := AchievementRule{Catalog: testAchievements}
	start := NewUserProgress()
	one := start.Clone()
	one.TotalScanned = 1
	evs = rule.Evaluate(context.Background(), start, one)
	if len(evs) != 1 || evs[0].AchievementID != "first_scan" {
		t.Fatalf("unexpected %+v", evs)
	}
	if evs := rule.Evaluate(context.Background(), one, one); len(evs) != 0 {
		t.Fatalf("already satisfied should not re-emit: %+v", evs)
	}
}
