// Package metrics exports WasteWise counters, gauges and histograms to
// Prometheus. The event bus feeds OnEvent; the progress store and the scan
// pipeline feed ObservePersist and ObserveClassify.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wastewise/core"
	"wastewise/engine"
)

// Registry holds every WasteWise series. Go and process collectors live in
// a separate registry so they can be left out of the exposition.
var Registry = prometheus.NewRegistry()

var system = func() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}()

var factory = promauto.With(Registry)

// ─── Scans ──────────────────────────────────────────────────────────────────

// Scans counts classified scans by reward tier, poor ones included.
var Scans = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wastewise",
	Name:      "scans_total",
	Help:      "Classified scans by reward tier.",
}, []string{"tier"})

// ScansRejected counts scans that produced no usable classification.
var ScansRejected = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "wastewise",
	Name:      "scans_rejected_total",
	Help:      "Scans rejected before any reward was applied.",
})

// ClassifyLatency tracks classifier call duration by result.
var ClassifyLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "wastewise",
	Name:      "classify_latency_seconds",
	Help:      "Classifier call duration in seconds.",
	Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
}, []string{"result"})

// ─── Coins ──────────────────────────────────────────────────────────────────

// CoinsEarned counts coins credited by scans and grants.
var CoinsEarned = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "wastewise",
	Name:      "coins_earned_total",
	Help:      "Coins credited.",
})

// CoinsSpent counts coins spent in the reward shop.
var CoinsSpent = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "wastewise",
	Name:      "coins_spent_total",
	Help:      "Coins spent on badges and stickers.",
})

// CoinsBalance is the balance after the last coin movement.
var CoinsBalance = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "wastewise",
	Name:      "coins_balance",
	Help:      "Current coin balance.",
})

// RewardsUnlocked counts shop purchases by kind.
var RewardsUnlocked = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wastewise",
	Name:      "rewards_unlocked_total",
	Help:      "Badges and stickers unlocked.",
}, []string{"kind"})

// ─── Progression ────────────────────────────────────────────────────────────

// LevelUps counts level transitions.
var LevelUps = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "wastewise",
	Name:      "level_ups_total",
	Help:      "Level ups.",
})

// AchievementsUnlocked counts achievement transitions.
var AchievementsUnlocked = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "wastewise",
	Name:      "achievements_unlocked_total",
	Help:      "Achievements newly satisfied.",
})

// ─── Persistence ────────────────────────────────────────────────────────────

// PersistWrites counts save attempts by result (ok or error).
var PersistWrites = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wastewise",
	Name:      "persist_writes_total",
	Help:      "Progress save attempts by result.",
}, []string{"result"})

// PersistRetries counts save attempts that followed a failed one.
var PersistRetries = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "wastewise",
	Name:      "persist_retries_total",
	Help:      "Progress saves retried after a failure.",
})

// PersistLatency tracks storage write duration.
var PersistLatency = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "wastewise",
	Name:      "persist_latency_seconds",
	Help:      "Progress save duration in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1, 5},
})

// OnEvent matches the event bus handler signature.
func OnEvent(_ context.Context, ev core.Event) {
	switch ev.Type {
	case core.EventScanClassified:
		Scans.WithLabelValues(string(ev.Tier)).Inc()
	case core.EventScanRejected:
		ScansRejected.Inc()
	case core.EventCoinsAdded:
		if ev.Delta > 0 {
			CoinsEarned.Add(float64(ev.Delta))
		}
		CoinsBalance.Set(float64(ev.Total))
	case core.EventRewardUnlocked:
		CoinsSpent.Add(float64(-ev.Delta))
		CoinsBalance.Set(float64(ev.Total))
		RewardsUnlocked.WithLabelValues(string(ev.RewardKind)).Inc()
	case core.EventLevelUp:
		LevelUps.Inc()
	case core.EventAchievementUnlocked:
		AchievementsUnlocked.Inc()
	}
}

// ObservePersist records one write-behind save.
func ObservePersist(a engine.PersistAttempt) {
	PersistLatency.Observe(a.Duration.Seconds())
	if a.Retry {
		PersistRetries.Inc()
	}
	PersistWrites.WithLabelValues(result(a.Err)).Inc()
}

// ObserveClassify records one classifier call.
func ObserveClassify(d time.Duration, err error) {
	ClassifyLatency.WithLabelValues(result(err)).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the exposition format. collectSystem adds Go runtime and
// process series.
func Handler(collectSystem bool) http.Handler {
	var g prometheus.Gatherer = Registry
	if collectSystem {
		g = prometheus.Gatherers{Registry, system}
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
