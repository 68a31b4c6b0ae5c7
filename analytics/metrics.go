// Package analytics keeps play statistics for a parent or classroom
// dashboard: scans, coins earned and spent, level ups and achievements,
// bucketed by UTC day. Statistics live in memory for the process lifetime;
// the progress blob remains the source of truth.
package analytics

import (
	"context"
	"sync"

	"wastewise/core"
)

type dayStats struct {
	scans        int64
	rejected     int64
	coinsEarned  int64
	coinsSpent   int64
	levelUps     int64
	achievements int64
	byTier       map[core.Tier]int64
	byCategory   map[string]int64
}

func newDayStats() *dayStats {
	return &dayStats{byTier: map[core.Tier]int64{}, byCategory: map[string]int64{}}
}

// Metrics consumes domain events. Attach OnEvent to the event bus.
type Metrics struct {
	mu   sync.RWMutex
	days map[string]*dayStats
}

func NewMetrics() *Metrics {
	return &Metrics{days: make(map[string]*dayStats)}
}

func dayKey(ev core.Event) string { return ev.Time.UTC().Format("2006-01-02") }

// OnEvent matches the event bus handler signature.
func (m *Metrics) OnEvent(_ context.Context, ev core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := dayKey(ev)
	d, ok := m.days[day]
	if !ok {
		d = newDayStats()
		m.days[day] = d
	}

	switch ev.Type {
	case core.EventScanClassified:
		d.byTier[ev.Tier]++
	case core.EventScanRecorded:
		d.scans++
		d.byCategory[ev.CategoryID]++
	case core.EventScanRejected:
		d.rejected++
	case core.EventCoinsAdded:
		if ev.Delta > 0 {
			d.coinsEarned += ev.Delta
		}
	case core.EventRewardUnlocked:
		d.coinsSpent += -ev.Delta
	case core.EventLevelUp:
		d.levelUps++
	case core.EventAchievementUnlocked:
		d.achievements++
	}
}

// ScansOn returns counting scans for a "2006-01-02" day key.
func (m *Metrics) ScansOn(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.days[day]; ok {
		return d.scans
	}
	return 0
}
