package analytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastewise/core"
)

func at(ev core.Event, t time.Time) core.Event {
	ev.Time = t
	return ev
}

// Wednesday 2024-01-03 plus the next two days.
var base = time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *Metrics {
	t.Helper()
	m := NewMetrics()
	ctx := context.Background()
	paper := core.ClassificationResult{CategoryID: "paper", Confidence: 0.9}
	events := []core.Event{
		at(core.NewScanClassified(paper, core.ComputeReward(paper)), base),
		at(core.NewScanRecorded("paper", 1), base),
		at(core.NewCoinsAdded(16, 66), base),
		at(core.NewAchievementUnlocked("first_scan"), base),
		at(core.NewScanRejected("model down"), base.AddDate(0, 0, 1)),
		at(core.NewScanRecorded("glass", 2), base.AddDate(0, 0, 1)),
		at(core.NewCoinsAdded(12, 78), base.AddDate(0, 0, 1)),
		at(core.NewRewardUnlocked(core.RewardSticker, "recycle", 10, 68), base.AddDate(0, 0, 2)),
		at(core.NewLevelUp(2), base.AddDate(0, 0, 2)),
	}
	for _, ev := range events {
		m.OnEvent(ctx, ev)
	}
	return m
}

func TestMetricsDaily(t *testing.T) {
	m := seeded(t)

	day, err := m.Summary(PeriodDaily, base)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-03", day.Key)
	assert.Equal(t, int64(1), day.Scans)
	assert.Equal(t, int64(16), day.CoinsEarned)
	assert.Equal(t, int64(1), day.Achievements)
	assert.Equal(t, int64(1), day.ByTier[core.TierExcellent])
	assert.Equal(t, int64(1), m.ScansOn("2024-01-04"))
	assert.Zero(t, m.ScansOn("2023-12-31"))
}

func TestMetricsWeeklyMonthly(t *testing.T) {
	m := seeded(t)

	week, err := m.Summary(PeriodWeekly, base)
	require.NoError(t, err)
	assert.Equal(t, "2024-W01", week.Key)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), week.StartTime)
	assert.Equal(t, int64(2), week.Scans)
	assert.Equal(t, int64(1), week.Rejected)
	assert.Equal(t, int64(28), week.CoinsEarned)
	assert.Equal(t, int64(10), week.CoinsSpent)
	assert.Equal(t, int64(1), week.LevelUps)
	assert.Equal(t, map[string]int64{"paper": 1, "glass": 1}, week.ByCategory)

	month, err := m.Summary(PeriodMonthly, base)
	require.NoError(t, err)
	assert.Equal(t, "2024-01", month.Key)
	assert.Equal(t, week.Scans, month.Scans)

	_, err = m.Summary("yearly", base)
	assert.Error(t, err)
}

func TestHistoryIsOrdered(t *testing.T) {
	hist := seeded(t).History()
	require.Len(t, hist, 3)
	assert.Equal(t, "2024-01-03", hist[0].Key)
	assert.Equal(t, "2024-01-05", hist[2].Key)
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatCSV, seeded(t).History()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	header := rows[0]
	assert.Equal(t, "period", header[0])
	assert.Equal(t, "category_glass", header[len(header)-2])
	assert.Equal(t, "category_paper", header[len(header)-1])
	assert.Equal(t, []string{"daily", "2024-01-03", "2024-01-03", "2024-01-04", "1", "0", "16", "0", "0", "1"}, rows[1][:10])
	assert.Equal(t, "1", rows[1][len(header)-1])
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	assert.Error(t, Export(&bytes.Buffer{}, "xml", nil))
	_, err := ParsePeriod("hourly")
	assert.Error(t, err)
}
