package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastewise/core"
	"wastewise/engine"
)

// value returns the counter or gauge value, or the histogram sample count,
// of the series matching name and labels.
func value(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	series:
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if want, ok := labels[l.GetName()]; ok && want != l.GetValue() {
					continue series
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func TestOnEventCountsScansAndCoins(t *testing.T) {
	ctx := context.Background()
	excellent := value(t, "wastewise_scans_total", map[string]string{"tier": "excellent"})
	rejected := value(t, "wastewise_scans_rejected_total", nil)
	earned := value(t, "wastewise_coins_earned_total", nil)
	spent := value(t, "wastewise_coins_spent_total", nil)
	stickers := value(t, "wastewise_rewards_unlocked_total", map[string]string{"kind": "sticker"})
	levels := value(t, "wastewise_level_ups_total", nil)

	result := core.ClassificationResult{CategoryID: "paper", Confidence: 0.9}
	OnEvent(ctx, core.NewScanClassified(result, core.ComputeReward(result)))
	OnEvent(ctx, core.NewCoinsAdded(16, 66))
	OnEvent(ctx, core.NewScanRejected("unknown label"))
	OnEvent(ctx, core.NewRewardUnlocked(core.RewardSticker, "recycle", 10, 56))
	OnEvent(ctx, core.NewLevelUp(2))

	assert.Equal(t, excellent+1, value(t, "wastewise_scans_total", map[string]string{"tier": "excellent"}))
	assert.Equal(t, rejected+1, value(t, "wastewise_scans_rejected_total", nil))
	assert.Equal(t, earned+16, value(t, "wastewise_coins_earned_total", nil))
	assert.Equal(t, spent+10, value(t, "wastewise_coins_spent_total", nil))
	assert.Equal(t, stickers+1, value(t, "wastewise_rewards_unlocked_total", map[string]string{"kind": "sticker"}))
	assert.Equal(t, levels+1, value(t, "wastewise_level_ups_total", nil))
	assert.Equal(t, float64(56), value(t, "wastewise_coins_balance", nil))
}

func TestObservePersist(t *testing.T) {
	failed := value(t, "wastewise_persist_writes_total", map[string]string{"result": "error"})
	ok := value(t, "wastewise_persist_writes_total", map[string]string{"result": "ok"})
	retries := value(t, "wastewise_persist_retries_total", nil)
	samples := value(t, "wastewise_persist_latency_seconds", nil)

	ObservePersist(engine.PersistAttempt{Duration: time.Millisecond, Err: errors.New("disk full")})
	ObservePersist(engine.PersistAttempt{Duration: time.Millisecond, Retry: true})

	assert.Equal(t, failed+1, value(t, "wastewise_persist_writes_total", map[string]string{"result": "error"}))
	assert.Equal(t, ok+1, value(t, "wastewise_persist_writes_total", map[string]string{"result": "ok"}))
	assert.Equal(t, retries+1, value(t, "wastewise_persist_retries_total", nil))
	assert.Equal(t, samples+2, value(t, "wastewise_persist_latency_seconds", nil))
}

func TestObserveClassify(t *testing.T) {
	before := value(t, "wastewise_classify_latency_seconds", map[string]string{"result": "error"})
	ObserveClassify(200*time.Millisecond, context.DeadlineExceeded)
	assert.Equal(t, before+1, value(t, "wastewise_classify_latency_seconds", map[string]string{"result": "error"}))
}

func TestHandler(t *testing.T) {
	ObserveClassify(time.Millisecond, nil)

	scrape := func(collectSystem bool) string {
		srv := httptest.NewServer(Handler(collectSystem))
		defer srv.Close()
		resp, err := http.Get(srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	plain := scrape(false)
	assert.Contains(t, plain, "wastewise_classify_latency_seconds")
	assert.NotContains(t, plain, "go_goroutines")

	full := scrape(true)
	assert.Contains(t, full, "wastewise_coins_balance")
	assert.Contains(t, full, "go_goroutines")
}
