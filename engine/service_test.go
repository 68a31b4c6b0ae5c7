package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "wastewise/adapters/memory"
	"wastewise/catalog"
	"wastewise/classifier"
	"wastewise/core"
)

type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) handle(_ context.Context, e core.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) types() []core.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func newService(t *testing.T, cls classifier.Classifier) (*Service, *recorder, *mem.Store) {
	t.Helper()
	storage := mem.New()
	store := openStore(t, storage)
	cat := catalog.Default()
	svc := NewService(store, cls, cat, NewEventBus(DispatchSync), DefaultRuleEngine(cat),
		WithLogger(quietLog), WithClassifyTimeout(50*time.Millisecond))
	rec := &recorder{}
	svc.SubscribeAll(rec.handle)
	return svc, rec, storage
}

func TestProcessScanExcellentPaper(t *testing.T) {
	svc, rec, storage := newService(t, classifier.Results(classifier.Result{Label: "paper", Confidence: 0.9}))

	out, err := svc.ProcessScan(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, core.TierExcellent, out.Reward.Tier)
	assert.Equal(t, int64(16), out.Reward.CoinDelta)
	assert.Equal(t, "paper", out.Category.ID)
	assert.Equal(t, int64(66), out.Progress.Coins)
	assert.Equal(t, int64(1), out.Progress.TotalScanned)
	assert.Equal(t, int64(1), out.Progress.PerCategoryCount["paper"])
	assert.Equal(t, int64(1), out.Progress.Level)
	assert.False(t, out.LevelUp)
	assert.Equal(t, []string{"first_scan"}, out.NewAchievements)
	assert.True(t, out.Feedback.Celebrate)

	assert.Equal(t, []core.EventType{
		core.EventScanClassified,
		core.EventScanRecorded,
		core.EventCoinsAdded,
		core.EventAchievementUnlocked,
	}, rec.types())

	require.NoError(t, svc.Flush(context.Background()))
	saved, err := storage.LoadProgress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(66), saved.Coins)
}

func TestProcessScanPoorConfidence(t *testing.T) {
	svc, rec, _ := newService(t, classifier.Results(classifier.Result{Label: "paper", Confidence: 0.4}))

	out, err := svc.ProcessScan(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, core.TierPoor, out.Reward.Tier)
	assert.Zero(t, out.Reward.CoinDelta)
	assert.Equal(t, core.StartingCoins, out.Progress.Coins)
	assert.Zero(t, out.Progress.TotalScanned)
	assert.Empty(t, out.NewAchievements)
	assert.Equal(t, []core.EventType{core.EventScanClassified}, rec.types())
}

func TestProcessScanResolvesDisplayName(t *testing.T) {
	svc, _, _ := newService(t, classifier.Results(classifier.Result{Label: "E-Waste", Confidence: 0.75}))
	out, err := svc.ProcessScan(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "electronic", out.Category.ID)
	assert.Equal(t, core.TierGood, out.Reward.Tier)
	assert.Equal(t, int64(12), out.Reward.CoinDelta)
}

func TestProcessScanLevelUpAtTwentyFive(t *testing.T) {
	svc, _, _ := newService(t, classifier.Results(classifier.Result{Label: "plastic", Confidence: 0.6}))
	ctx := context.Background()
	for i := 0; i < 24; i++ {
		out, err := svc.ProcessScan(ctx, nil)
		require.NoError(t, err)
		require.False(t, out.LevelUp)
	}
	out, err := svc.ProcessScan(ctx, nil)
	require.NoError(t, err)
	assert.True(t, out.LevelUp)
	assert.Equal(t, int64(2), out.Progress.Level)
	// uncertain tier pays floor(11/2)
	assert.Equal(t, core.StartingCoins+25*5, out.Progress.Coins)

	lp := svc.LevelProgress()
	assert.Equal(t, int64(2), lp.Level)
	assert.Zero(t, lp.Current)

	var plasticWarrior bool
	for _, st := range svc.Achievements() {
		if st.ID == "plastic_warrior" {
			plasticWarrior = st.Unlocked
		}
	}
	assert.True(t, plasticWarrior)
}

func TestProcessScanRejectsBadResults(t *testing.T) {
	boom := errors.New("model offline")
	cases := map[string]classifier.Step{
		"classifier error":    {Err: boom},
		"unknown label":       {Result: classifier.Result{Label: "spaceship", Confidence: 0.9}},
		"confidence too high": {Result: classifier.Result{Label: "paper", Confidence: 1.2}},
		"negative confidence": {Result: classifier.Result{Label: "paper", Confidence: -0.1}},
	}
	for name, step := range cases {
		t.Run(name, func(t *testing.T) {
			svc, rec, _ := newService(t, classifier.NewFixture(step))
			_, err := svc.ProcessScan(context.Background(), nil)
			require.ErrorIs(t, err, ErrNoResult)
			assert.Equal(t, []core.EventType{core.EventScanRejected}, rec.types())
			assert.Equal(t, core.NewUserProgress().Coins, svc.Snapshot().Coins)
			assert.Zero(t, svc.Snapshot().TotalScanned)
		})
	}
}

func TestProcessScanTimesOut(t *testing.T) {
	slow := classifier.Func(func(ctx context.Context, _ []byte) (classifier.Result, error) {
		<-ctx.Done()
		return classifier.Result{}, ctx.Err()
	})
	svc, _, _ := newService(t, slow)
	_, err := svc.ProcessScan(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoResult)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessScanRejectsOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	blocking := classifier.Func(func(ctx context.Context, _ []byte) (classifier.Result, error) {
		close(started)
		<-release
		return classifier.Result{Label: "glass", Confidence: 0.8}, nil
	})
	storage := mem.New()
	store := openStore(t, storage)
	cat := catalog.Default()
	svc := NewService(store, blocking, cat, NewEventBus(DispatchSync), DefaultRuleEngine(cat), WithLogger(quietLog))

	done := make(chan error, 1)
	go func() {
		_, err := svc.ProcessScan(context.Background(), nil)
		done <- err
	}()
	<-started
	_, err := svc.ProcessScan(context.Background(), nil)
	assert.ErrorIs(t, err, ErrScanInProgress)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), svc.Snapshot().TotalScanned)
}

func TestServiceUnlockUsesCatalogPrice(t *testing.T) {
	svc, rec, _ := newService(t, classifier.Results())
	ctx := context.Background()

	p, err := svc.Unlock(ctx, core.RewardSticker, "earth")
	require.NoError(t, err)
	assert.Equal(t, int64(35), p.Coins)
	assert.Equal(t, []core.EventType{core.EventRewardUnlocked}, rec.types())

	_, err = svc.Unlock(ctx, core.RewardSticker, "earth")
	assert.ErrorIs(t, err, core.ErrAlreadyUnlocked)

	_, err = svc.Unlock(ctx, core.RewardBadge, "plastic")
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)

	_, err = svc.Unlock(ctx, core.RewardBadge, "unicorn")
	assert.ErrorIs(t, err, core.ErrUnknownReward)
	assert.Equal(t, int64(35), svc.Snapshot().Coins)
}

func TestServiceAddCoinsAndUsername(t *testing.T) {
	svc, rec, _ := newService(t, classifier.Results())
	ctx := context.Background()

	total, err := svc.AddCoins(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(60), total)

	_, err = svc.SetUsername(ctx, "Mia")
	require.NoError(t, err)
	_, err = svc.SetUsername(ctx, "Mia")
	require.NoError(t, err)
	assert.Equal(t, []core.EventType{core.EventCoinsAdded, core.EventUsernameChanged}, rec.types())
}

func TestTopCategories(t *testing.T) {
	svc, _, _ := newService(t, classifier.NewFixture(
		classifier.Step{Result: classifier.Result{Label: "glass", Confidence: 0.9}},
		classifier.Step{Result: classifier.Result{Label: "paper", Confidence: 0.9}},
		classifier.Step{Result: classifier.Result{Label: "paper", Confidence: 0.9}},
		classifier.Step{Result: classifier.Result{Label: "metal", Confidence: 0.3}},
	))
	for i := 0; i < 4; i++ {
		_, err := svc.ProcessScan(context.Background(), nil)
		require.NoError(t, err)
	}
	top := svc.TopCategories(5)
	require.Len(t, top, 2)
	assert.Equal(t, "paper", top[0].Key)
	assert.Equal(t, int64(2), top[0].Score)
	assert.Equal(t, "glass", top[1].Key)
}

func TestCategoryProgressCoversCatalog(t *testing.T) {
	svc, _, _ := newService(t, classifier.Results(
		classifier.Result{Label: "paper", Confidence: 0.9},
	))
	for i := 0; i < 2; i++ {
		_, err := svc.ProcessScan(context.Background(), nil)
		require.NoError(t, err)
	}

	got := svc.CategoryProgress()
	require.Len(t, got, len(svc.Catalog().Categories))
	byID := map[string]core.CategoryProgress{}
	for _, c := range got {
		byID[c.CategoryID] = c
	}
	assert.Equal(t, int64(2), byID["paper"].Count)
	assert.Equal(t, 20, byID["paper"].Percentage)
	assert.Equal(t, core.CategoryGoal, byID["metal"].Goal)
	assert.Zero(t, byID["metal"].Count)
}

func TestClassifyObserver(t *testing.T) {
	var calls []error
	store := openStore(t, mem.New())
	cat := catalog.Default()
	boom := errors.New("camera unplugged")
	svc := NewService(store, classifier.NewFixture(
		classifier.Step{Result: classifier.Result{Label: "paper", Confidence: 0.9}},
		classifier.Step{Err: boom},
	), cat, NewEventBus(DispatchSync), DefaultRuleEngine(cat),
		WithLogger(quietLog),
		WithClassifyObserver(func(_ time.Duration, err error) { calls = append(calls, err) }))

	_, err := svc.ProcessScan(context.Background(), nil)
	require.NoError(t, err)
	_, err = svc.ProcessScan(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoResult)

	require.Len(t, calls, 2)
	assert.NoError(t, calls[0])
	assert.ErrorIs(t, calls[1], boom)
}
