package sdk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	mem "wastewise/adapters/memory"
	"wastewise/api/httpapi"
	"wastewise/catalog"
	"wastewise/classifier"
	"wastewise/core"
	"wastewise/engine"
	"wastewise/realtime"
)

func TestClient_ScanUnlockProgressHealth(t *testing.T) {
	srv, _ := newTestServer(t, classifier.Results(classifier.Result{Label: "paper", Confidence: 0.9}))

	client, err := NewClient(srv.URL+"/api", WithAPIKey("k1"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()

	out, err := client.Scan(ctx, []byte("jpeg"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if out.Reward.CoinDelta != 16 || out.Progress.Coins != 66 || out.Category.ID != "paper" {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	p, err := client.Unlock(ctx, core.RewardSticker, "recycle")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if p.Progress.Coins != 56 || !p.Progress.Unlocked(core.RewardSticker, "recycle") {
		t.Fatalf("unexpected progress: %+v", p.Progress)
	}

	if _, err := client.Unlock(ctx, core.RewardSticker, "recycle"); !errors.Is(err, core.ErrAlreadyUnlocked) {
		t.Fatalf("expected already unlocked, got %v", err)
	}

	coins, err := client.AddCoins(ctx, 4)
	if err != nil || coins != 60 {
		t.Fatalf("add coins got %d err=%v", coins, err)
	}

	p, err = client.SetUsername(ctx, "Ada")
	if err != nil || p.Progress.Username != "Ada" {
		t.Fatalf("set username: %+v err=%v", p.Progress, err)
	}

	p, err = client.Progress(ctx)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.Progress.TotalScanned != 1 || p.Level.Level != 1 || p.Level.Current != 1 {
		t.Fatalf("unexpected progress: %+v", p)
	}

	top, err := client.TopCategories(ctx, 3)
	if err != nil || len(top) != 1 || top[0].Key != "paper" {
		t.Fatalf("top categories: %+v err=%v", top, err)
	}

	cats, err := client.CategoryProgress(ctx)
	if err != nil || len(cats) != 7 {
		t.Fatalf("category progress: %+v err=%v", cats, err)
	}
	for _, c := range cats {
		if c.CategoryID == "paper" && (c.Count != 1 || c.Goal != core.CategoryGoal) {
			t.Fatalf("paper progress: %+v", c)
		}
	}

	shop, err := client.Shop(ctx)
	if err != nil || shop.Coins != 60 || len(shop.Badges) == 0 {
		t.Fatalf("shop: %+v err=%v", shop, err)
	}

	health, err := client.Health(ctx)
	if err != nil || health.Status != "healthy" {
		t.Fatalf("health: %+v err=%v", health, err)
	}
}

func TestClient_ScanRejected(t *testing.T) {
	srv, _ := newTestServer(t, classifier.Results(classifier.Result{Label: "moon rock", Confidence: 0.9}))
	client, _ := NewClient(srv.URL + "/api/")

	_, err := client.Scan(context.Background(), []byte("jpeg"))
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 422 {
		t.Fatalf("expected 422 APIError, got %v", err)
	}
}

func TestClient_SubscribeEvents(t *testing.T) {
	srv, hub := newTestServer(t, classifier.Results(classifier.Result{Label: "glass", Confidence: 0.95}))

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := client.SubscribeEvents(ctx, core.EventAchievementUnlocked)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for hub.Len() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("timed out waiting for subscription")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := client.Scan(ctx, []byte("jpeg")); err != nil {
		t.Fatalf("scan: %v", err)
	}

	select {
	case evt := <-events:
		if evt.Type != core.EventAchievementUnlocked || evt.AchievementID != "first_scan" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestDeriveWSURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080/api": "ws://localhost:8080/api/ws",
		"https://example.com/api/":  "wss://example.com/api/ws",
		"http://localhost:8080":     "ws://localhost:8080/ws",
	}
	for in, want := range cases {
		if got := deriveWSURL(in); got != want {
			t.Errorf("deriveWSURL(%q) = %q, want %q", in, got, want)
		}
	}
}

// newTestServer runs the real API over an in-memory store.
func newTestServer(t *testing.T, cls classifier.Classifier) (*httptest.Server, *realtime.Hub) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := engine.OpenProgressStore(context.Background(), mem.New(), engine.WithStoreLogger(log))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cat := catalog.Default()
	svc := engine.NewService(store, cls, cat, engine.NewEventBus(engine.DispatchSync), engine.DefaultRuleEngine(cat),
		engine.WithLogger(log))
	hub := realtime.NewHub()
	detach := hub.Attach(svc)

	srv := httptest.NewServer(httpapi.NewMux(svc, hub, httpapi.Options{PathPrefix: "/api", Logger: log}))
	t.Cleanup(func() {
		srv.Close()
		detach()
		_ = svc.Close(context.Background())
	})
	return srv, hub
}
