package analytics

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"wastewise/core"
)

// AggregationPeriod represents different time periods for aggregation
type AggregationPeriod string

const (
	PeriodDaily   AggregationPeriod = "daily"
	PeriodWeekly  AggregationPeriod = "weekly"
	PeriodMonthly AggregationPeriod = "monthly"
)

// ParsePeriod accepts daily, weekly or monthly.
func ParsePeriod(s string) (AggregationPeriod, error) {
	switch p := AggregationPeriod(s); p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// AggregatedData summarizes play over one period.
type AggregatedData struct {
	Period    AggregationPeriod `json:"period"`
	Key       string            `json:"key"` // "2024-01-01", "2024-W01" or "2024-01"
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`

	Scans        int64 `json:"scans"`
	Rejected     int64 `json:"rejected"`
	CoinsEarned  int64 `json:"coins_earned"`
	CoinsSpent   int64 `json:"coins_spent"`
	LevelUps     int64 `json:"level_ups"`
	Achievements int64 `json:"achievements"`

	ByTier     map[core.Tier]int64 `json:"by_tier"`
	ByCategory map[string]int64    `json:"by_category"`
}

// Summary aggregates the period containing now.
func (m *Metrics) Summary(period AggregationPeriod, now time.Time) (AggregatedData, error) {
	now = now.UTC()
	var data AggregatedData
	switch period {
	case PeriodDaily:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		data = AggregatedData{Key: start.Format("2006-01-02"), StartTime: start, EndTime: start.AddDate(0, 0, 1)}
	case PeriodWeekly:
		year, week := now.ISOWeek()
		// weeks start on Monday
		daysSinceMonday := (int(now.Weekday()) + 6) % 7
		start := time.Date(now.Year(), now.Month(), now.Day()-daysSinceMonday, 0, 0, 0, 0, time.UTC)
		data = AggregatedData{Key: fmt.Sprintf("%d-W%02d", year, week), StartTime: start, EndTime: start.AddDate(0, 0, 7)}
	case PeriodMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		data = AggregatedData{Key: start.Format("2006-01"), StartTime: start, EndTime: start.AddDate(0, 1, 0)}
	default:
		return AggregatedData{}, fmt.Errorf("unknown period %q", period)
	}
	data.Period = period
	data.ByTier = map[core.Tier]int64{}
	data.ByCategory = map[string]int64{}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for day := data.StartTime; day.Before(data.EndTime); day = day.AddDate(0, 0, 1) {
		d, ok := m.days[day.Format("2006-01-02")]
		if !ok {
			continue
		}
		data.Scans += d.scans
		data.Rejected += d.rejected
		data.CoinsEarned += d.coinsEarned
		data.CoinsSpent += d.coinsSpent
		data.LevelUps += d.levelUps
		data.Achievements += d.achievements
		addAll(data.ByTier, d.byTier)
		addAll(data.ByCategory, d.byCategory)
	}
	return data, nil
}

// History returns one daily summary per day with activity, oldest first.
func (m *Metrics) History() []AggregatedData {
	m.mu.RLock()
	keys := slices.Sorted(maps.Keys(m.days))
	m.mu.RUnlock()

	out := make([]AggregatedData, 0, len(keys))
	for _, k := range keys {
		day, err := time.Parse("2006-01-02", k)
		if err != nil {
			continue
		}
		data, _ := m.Summary(PeriodDaily, day)
		out = append(out, data)
	}
	return out
}

func addAll[K comparable](dst, src map[K]int64) {
	for k, v := range src {
		dst[k] += v
	}
}
