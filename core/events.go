package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates domain events.
type EventType string

const (
	EventScanClassified      EventType = "scan_classified"
	EventScanRejected        EventType = "scan_rejected"
	EventScanRecorded        EventType = "scan_recorded"
	EventCoinsAdded          EventType = "coins_added"
	EventLevelUp             EventType = "level_up"
	EventRewardUnlocked      EventType = "reward_unlocked"
	EventAchievementUnlocked EventType = "achievement_unlocked"
	EventUsernameChanged     EventType = "username_changed"
)

// AllEventTypes lists every event type, for bridges that forward everything.
var AllEventTypes = []EventType{
	EventScanClassified,
	EventScanRejected,
	EventScanRecorded,
	EventCoinsAdded,
	EventLevelUp,
	EventRewardUnlocked,
	EventAchievementUnlocked,
	EventUsernameChanged,
}

// Event represents an immutable domain event.
type Event struct {
	ID            string         `json:"id"`
	Type          EventType      `json:"type"`
	Time          time.Time      `json:"time"`
	CategoryID    string         `json:"category_id,omitempty"`
	Tier          Tier           `json:"tier,omitempty"`
	Confidence    float64        `json:"confidence,omitempty"`
	Delta         int64          `json:"delta,omitempty"`
	Total         int64          `json:"total,omitempty"`
	Level         int64          `json:"level,omitempty"`
	RewardKind    RewardKind     `json:"reward_kind,omitempty"`
	RewardID      string         `json:"reward_id,omitempty"`
	AchievementID string         `json:"achievement_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func newEvent(typ EventType) Event {
	return Event{ID: uuid.NewString(), Type: typ, Time: time.Now().UTC()}
}

func NewScanClassified(result ClassificationResult, outcome RewardOutcome) Event {
	ev := newEvent(EventScanClassified)
	ev.CategoryID = result.CategoryID
	ev.Confidence = result.Confidence
	ev.Tier = outcome.Tier
	ev.Delta = outcome.CoinDelta
	return ev
}

func NewScanRejected(reason string) Event {
	ev := newEvent(EventScanRejected)
	ev.Metadata = map[string]any{"reason": reason}
	return ev
}

func NewScanRecorded(categoryID string, total int64) Event {
	ev := newEvent(EventScanRecorded)
	ev.CategoryID = categoryID
	ev.Total = total
	return ev
}

func NewCoinsAdded(delta int64, total int64) Event {
	ev := newEvent(EventCoinsAdded)
	ev.Delta = delta
	ev.Total = total
	return ev
}

func NewLevelUp(level int64) Event {
	ev := newEvent(EventLevelUp)
	ev.Level = level
	return ev
}

func NewRewardUnlocked(kind RewardKind, id string, cost int64, remaining int64) Event {
	ev := newEvent(EventRewardUnlocked)
	ev.RewardKind = kind
	ev.RewardID = id
	ev.Delta = -cost
	ev.Total = remaining
	return ev
}

func NewAchievementUnlocked(id string) Event {
	ev := newEvent(EventAchievementUnlocked)
	ev.AchievementID = id
	return ev
}

func NewUsernameChanged(name string) Event {
	ev := newEvent(EventUsernameChanged)
	ev.Metadata = map[string]any{"username": name}
	return ev
}
