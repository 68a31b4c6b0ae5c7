package gamify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "wastewise/adapters/memory"
	"wastewise/classifier"
	"wastewise/config"
	"wastewise/core"
	"wastewise/engine"
	"wastewise/metrics"
	"wastewise/realtime"
)

func TestNewDefaultsAndOptions(t *testing.T) {
	hub := realtime.NewHub()
	storage := mem.New()
	svc, err := New(context.Background(),
		WithRealtime(hub),
		WithStorage(storage),
		WithClassifier(classifier.Results(classifier.Result{Label: "paper", Confidence: 0.9})),
		WithDispatchMode(engine.DispatchSync),
	)
	require.NoError(t, err)
	defer svc.Close(context.Background())

	_, ch := hub.Subscribe(8)
	out, err := svc.ProcessScan(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(66), out.Progress.Coins)

	// realtime bridge should receive the scan's events
	ev := <-ch
	assert.Equal(t, core.EventScanClassified, ev.Type)

	require.NoError(t, svc.Flush(context.Background()))
	saved, err := storage.LoadProgress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(66), saved.Coins)
}

func TestWithMetricsExportsScan(t *testing.T) {
	svc, err := New(context.Background(),
		WithMetrics(),
		WithClassifier(classifier.Results(classifier.Result{Label: "paper", Confidence: 0.9})),
		WithDispatchMode(engine.DispatchSync),
	)
	require.NoError(t, err)
	defer svc.Close(context.Background())

	_, err = svc.ProcessScan(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, svc.Flush(context.Background()))

	srv := httptest.NewServer(metrics.Handler(false))
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `wastewise_scans_total{tier="excellent"} 1`)
	assert.Contains(t, string(body), `wastewise_coins_balance 66`)
	assert.Contains(t, string(body), `wastewise_classify_latency_seconds_count{result="ok"} 1`)
	assert.Contains(t, string(body), `wastewise_persist_writes_total{result="ok"}`)
}

func TestNewWithoutOptions(t *testing.T) {
	svc, err := New(context.Background())
	require.NoError(t, err)
	defer svc.Close(context.Background())

	out, err := svc.ProcessScan(context.Background(), nil)
	require.NoError(t, err)
	_, known := svc.Catalog().Category(out.Category.ID)
	assert.True(t, known)
	assert.GreaterOrEqual(t, out.Result.Confidence, classifier.MinConfidence)
}

func TestFromConfig(t *testing.T) {
	var hooks atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks.Add(1)
	}))
	defer srv.Close()

	cfg, err := config.LoadProfile("testing")
	require.NoError(t, err)
	cfg.Storage.Adapter = "file"
	cfg.Storage.File.Path = filepath.Join(t.TempDir(), "progress.json")
	cfg.Webhooks.Endpoints = []string{srv.URL}
	cfg.Webhooks.Types = []string{string(core.EventRewardUnlocked)}

	svc, closeSvc, err := FromConfig(context.Background(), cfg, nil, nil)
	require.NoError(t, err)

	_, err = svc.Unlock(context.Background(), core.RewardSticker, "earth")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hooks.Load())
	require.NoError(t, closeSvc())

	// a fresh engine over the same file sees the unlock
	again, closeAgain, err := FromConfig(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	defer func() { _ = closeAgain() }()
	p := again.Snapshot()
	assert.Equal(t, int64(35), p.Coins)
	assert.True(t, p.Unlocked(core.RewardSticker, "earth"))
}

func TestNewClassifierModes(t *testing.T) {
	cfg := config.DefaultConfig()
	cat, err := LoadCatalog(cfg.Catalog)
	require.NoError(t, err)

	cfg.Classifier.Seed = 7
	demo, err := NewClassifier(cfg.Classifier, cat)
	require.NoError(t, err)
	assert.IsType(t, &classifier.Demo{}, demo)

	cfg.Classifier.Mode = "remote"
	cfg.Classifier.Endpoint = "http://model.local/classify"
	cfg.Classifier.Timeout = time.Second
	remote, err := NewClassifier(cfg.Classifier, cat)
	require.NoError(t, err)
	assert.IsType(t, &classifier.Remote{}, remote)

	cfg.Classifier.Mode = "magic"
	_, err = NewClassifier(cfg.Classifier, cat)
	assert.Error(t, err)
}

func TestOpenStorageRejectsUnknownAdapter(t *testing.T) {
	_, _, err := OpenStorage(context.Background(), config.StorageConfig{Adapter: "tape"})
	assert.Error(t, err)
}
