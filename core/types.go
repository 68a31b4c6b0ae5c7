package core

import (
	"encoding/json"
	"errors"
	"math"
	"slices"
	"strings"
	"time"
)

// Default starting values for a fresh device.
const (
	StartingCoins int64 = 50
	StartingLevel int64 = 1

	// ScansPerLevel is the number of counting scans between levels.
	ScansPerLevel int64 = 25
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyUnlocked   = errors.New("already unlocked")
	ErrInvalidAmount     = errors.New("amount must not be negative")
	ErrUnknownCategory   = errors.New("unknown waste category")
	ErrUnknownReward     = errors.New("unknown reward")
	ErrInvalidRewardKind = errors.New("invalid reward kind")
	ErrInvalidConfidence = errors.New("confidence must be within [0, 1]")
	ErrIntegerOverflow   = errors.New("integer overflow")
	ErrEmptyIdentifier   = errors.New("empty identifier")
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// WasteCategory is a static catalog entry describing one kind of waste.
type WasteCategory struct {
	ID          string   `json:"id" toml:"id"`
	Name        string   `json:"name" toml:"name"`
	Emoji       string   `json:"emoji,omitempty" toml:"emoji"`
	Examples    []string `json:"examples" toml:"examples"`
	Recyclable  bool     `json:"recyclable" toml:"recyclable"`
	Description string   `json:"description" toml:"description"`
}

// ClassificationResult is what a single scan attempt produced.
type ClassificationResult struct {
	CategoryID string  `json:"category_id"`
	Confidence float64 `json:"confidence"`
}

// Validate checks the confidence range. NaN is rejected.
func (r ClassificationResult) Validate() error {
	if strings.TrimSpace(r.CategoryID) == "" {
		return ErrUnknownCategory
	}
	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return ErrInvalidConfidence
	}
	return nil
}

// RewardKind selects which collection an unlock targets.
type RewardKind string

const (
	RewardBadge   RewardKind = "badge"
	RewardSticker RewardKind = "sticker"
)

// ParseRewardKind accepts singular or plural forms, case-insensitive.
func ParseRewardKind(s string) (RewardKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "badge", "badges":
		return RewardBadge, nil
	case "sticker", "stickers":
		return RewardSticker, nil
	}
	return "", ErrInvalidRewardKind
}

// UserProgress is the persisted aggregate for one device.
// Values handed out by the store are deep copies.
type UserProgress struct {
	Username         string              `json:"username"`
	Coins            int64               `json:"coins"`
	Level            int64               `json:"level"`
	TotalScanned     int64               `json:"total_scanned"`
	PerCategoryCount map[string]int64    `json:"per_category_count"`
	UnlockedBadges   map[string]struct{} `json:"unlocked_badges"`
	UnlockedStickers map[string]struct{} `json:"unlocked_stickers"`
	Updated          time.Time           `json:"updated"`
}

// NewUserProgress returns the first-launch defaults.
func NewUserProgress() UserProgress {
	return UserProgress{
		Coins:            StartingCoins,
		Level:            StartingLevel,
		PerCategoryCount: map[string]int64{},
		UnlockedBadges:   map[string]struct{}{},
		UnlockedStickers: map[string]struct{}{},
		Updated:          time.Now().UTC(),
	}
}

// Clone returns a deep copy. Nil maps in the receiver come back empty.
func (p UserProgress) Clone() UserProgress {
	cp := UserProgress{
		Username:         p.Username,
		Coins:            p.Coins,
		Level:            p.Level,
		TotalScanned:     p.TotalScanned,
		PerCategoryCount: make(map[string]int64, len(p.PerCategoryCount)),
		UnlockedBadges:   make(map[string]struct{}, len(p.UnlockedBadges)),
		UnlockedStickers: make(map[string]struct{}, len(p.UnlockedStickers)),
		Updated:          p.Updated,
	}
	for k, v := range p.PerCategoryCount {
		cp.PerCategoryCount[k] = v
	}
	for k := range p.UnlockedBadges {
		cp.UnlockedBadges[k] = struct{}{}
	}
	for k := range p.UnlockedStickers {
		cp.UnlockedStickers[k] = struct{}{}
	}
	return cp
}

// Normalize repairs a decoded blob so the invariants hold: nil maps are
// allocated, negative counters are clamped and the level is raised to what
// the scan total implies.
func (p *UserProgress) Normalize() {
	if p.PerCategoryCount == nil {
		p.PerCategoryCount = map[string]int64{}
	}
	if p.UnlockedBadges == nil {
		p.UnlockedBadges = map[string]struct{}{}
	}
	if p.UnlockedStickers == nil {
		p.UnlockedStickers = map[string]struct{}{}
	}
	if p.Coins < 0 {
		p.Coins = 0
	}
	if p.TotalScanned < 0 {
		p.TotalScanned = 0
	}
	for k, v := range p.PerCategoryCount {
		if v < 0 {
			p.PerCategoryCount[k] = 0
		}
	}
	p.Level = max(p.Level, LevelFor(p.TotalScanned))
}

// Unlocked reports whether id is in the collection for kind.
func (p UserProgress) Unlocked(kind RewardKind, id string) bool {
	switch kind {
	case RewardBadge:
		_, ok := p.UnlockedBadges[id]
		return ok
	case RewardSticker:
		_, ok := p.UnlockedStickers[id]
		return ok
	}
	return false
}

// progressJSON is the stored layout: unlock sets are sorted id arrays.
type progressJSON struct {
	Username         string           `json:"username"`
	Coins            int64            `json:"coins"`
	Level            int64            `json:"level"`
	TotalScanned     int64            `json:"total_scanned"`
	PerCategoryCount map[string]int64 `json:"per_category_count"`
	UnlockedBadges   []string         `json:"unlocked_badges"`
	UnlockedStickers []string         `json:"unlocked_stickers"`
	Updated          time.Time        `json:"updated"`
}

func (p UserProgress) MarshalJSON() ([]byte, error) {
	counts := p.PerCategoryCount
	if counts == nil {
		counts = map[string]int64{}
	}
	return json.Marshal(progressJSON{
		Username:         p.Username,
		Coins:            p.Coins,
		Level:            p.Level,
		TotalScanned:     p.TotalScanned,
		PerCategoryCount: counts,
		UnlockedBadges:   sortedSet(p.UnlockedBadges),
		UnlockedStickers: sortedSet(p.UnlockedStickers),
		Updated:          p.Updated,
	})
}

func (p *UserProgress) UnmarshalJSON(b []byte) error {
	var raw progressJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = UserProgress{
		Username:         raw.Username,
		Coins:            raw.Coins,
		Level:            raw.Level,
		TotalScanned:     raw.TotalScanned,
		PerCategoryCount: raw.PerCategoryCount,
		UnlockedBadges:   make(map[string]struct{}, len(raw.UnlockedBadges)),
		UnlockedStickers: make(map[string]struct{}, len(raw.UnlockedStickers)),
		Updated:          raw.Updated,
	}
	for _, id := range raw.UnlockedBadges {
		p.UnlockedBadges[id] = struct{}{}
	}
	for _, id := range raw.UnlockedStickers {
		p.UnlockedStickers[id] = struct{}{}
	}
	return nil
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// CategoryTotal sums the per-category counters.
func (p UserProgress) CategoryTotal() int64 {
	var n int64
	for _, v := range p.PerCategoryCount {
		n += v
	}
	return n
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, ErrIntegerOverflow
	}
	return base + delta, nil
}

// NormalizeID trims and lowercases catalog identifiers.
func NormalizeID(id string) (string, error) {
	s := strings.TrimSpace(id)
	if s == "" {
		return "", ErrEmptyIdentifier
	}
	return strings.ToLower(s), nil
}

// ValidateID ensures a non-empty id made of alnum, dash and underscore.
func ValidateID(id string) error {
	s := strings.TrimSpace(id)
	if s == "" {
		return ErrEmptyIdentifier
	}
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return ErrInvalidIdentifier
	}
	return nil
}

// LevelFor is the level implied by a number of counting scans.
// level = floor(total/25) + 1, never below 1.
func LevelFor(totalScanned int64) int64 {
	if totalScanned <= 0 {
		return StartingLevel
	}
	return totalScanned/ScansPerLevel + 1
}

// LevelProgress describes how far the user is into the current level.
type LevelProgress struct {
	Level      int64 `json:"level"`
	Current    int64 `json:"current"`
	Required   int64 `json:"required"`
	NextLevel  int64 `json:"next_level"`
	Percentage int   `json:"percentage"`
}

// ProgressFor computes the scans accumulated since the current level's
// threshold. A stored level above the scan-implied level reports zero.
func ProgressFor(p UserProgress) LevelProgress {
	level := max(p.Level, StartingLevel)
	current := p.TotalScanned - (level-1)*ScansPerLevel
	current = min(max(current, 0), ScansPerLevel)
	return LevelProgress{
		Level:      level,
		Current:    current,
		Required:   ScansPerLevel,
		NextLevel:  level + 1,
		Percentage: int(current * 100 / ScansPerLevel),
	}
}

// CategoryGoal is the scan count that fills one category's progress bar.
const CategoryGoal int64 = 10

// CategoryProgress is one category's scans toward CategoryGoal.
type CategoryProgress struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Emoji      string `json:"emoji,omitempty"`
	Count      int64  `json:"count"`
	Goal       int64  `json:"goal"`
	Percentage int    `json:"percentage"`
}

// CategoryProgressFor reports every category in the given order, scanned or
// not. Percentage is rounded to the nearest point and capped at 100.
func CategoryProgressFor(p UserProgress, categories []WasteCategory) []CategoryProgress {
	out := make([]CategoryProgress, 0, len(categories))
	for _, c := range categories {
		count := max(p.PerCategoryCount[c.ID], 0)
		pct := min((count*100+CategoryGoal/2)/CategoryGoal, 100)
		out = append(out, CategoryProgress{
			CategoryID: c.ID,
			Name:       c.Name,
			Emoji:      c.Emoji,
			Count:      count,
			Goal:       CategoryGoal,
			Percentage: int(pct),
		})
	}
	return out
}

// ErrNotFound is returned by storage adapters when no progress blob exists.
var ErrNotFound = errors.New("progress not found")

// DefaultProgressKey is the storage key of the single progress blob.
const DefaultProgressKey = "user-progress"
