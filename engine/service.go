package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"wastewise/catalog"
	"wastewise/classifier"
	"wastewise/core"
	"wastewise/leaderboard"
)

var (
	// ErrNoResult means a scan produced no usable classification. It wraps
	// the underlying cause.
	ErrNoResult = errors.New("no classification result")
	// ErrScanInProgress rejects a scan while another one is running.
	ErrScanInProgress = errors.New("scan already in progress")
)

// DefaultClassifyTimeout bounds a single classifier call.
const DefaultClassifyTimeout = 10 * time.Second

// ScanOutcome is everything a presentation layer needs after a scan.
type ScanOutcome struct {
	Result          core.ClassificationResult `json:"result"`
	Category        core.WasteCategory        `json:"category"`
	Reward          core.RewardOutcome        `json:"reward"`
	Feedback        core.Feedback             `json:"feedback"`
	Progress        core.UserProgress         `json:"progress"`
	LevelUp         bool                      `json:"level_up"`
	NewAchievements []string                  `json:"new_achievements,omitempty"`
}

// Service wires the classifier, progress store, catalog, event bus and
// rules into one API.
type Service struct {
	store      *ProgressStore
	classifier classifier.Classifier
	catalog    *catalog.Catalog
	bus        *EventBus
	rules      RuleEngine
	ranking    *leaderboard.SkipList
	log        *slog.Logger
	timeout    time.Duration
	observe    func(time.Duration, error)
	busy       atomic.Bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClassifyTimeout bounds each classifier call.
func WithClassifyTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClassifyObserver is called with the duration and error of every
// classifier call.
func WithClassifyObserver(fn func(time.Duration, error)) ServiceOption {
	return func(s *Service) { s.observe = fn }
}

func NewService(store *ProgressStore, cls classifier.Classifier, cat *catalog.Catalog, bus *EventBus, rules RuleEngine, opts ...ServiceOption) *Service {
	if store == nil || cls == nil || cat == nil || bus == nil || rules == nil {
		panic("NewService requires non-nil store, classifier, catalog, bus, and rules")
	}
	s := &Service{
		store:      store,
		classifier: cls,
		catalog:    cat,
		bus:        bus,
		rules:      rules,
		ranking:    leaderboard.NewSkipList(),
		log:        slog.Default(),
		timeout:    DefaultClassifyTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	s.ranking.Reset(store.Snapshot().PerCategoryCount)
	return s
}

// DefaultRuleEngine emits level ups and achievement unlocks for cat.
func DefaultRuleEngine(cat *catalog.Catalog) RuleEngine {
	var achievements []core.Achievement
	if cat != nil {
		achievements = cat.Achievements
	}
	return &simpleRuleEngine{rules: []core.Rule{
		core.LevelUpRule{},
		core.AchievementRule{Catalog: achievements},
	}}
}

// Subscribe convenience method.
func (s *Service) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

// SubscribeAll registers handler for every event type.
func (s *Service) SubscribeAll(handler func(context.Context, core.Event)) func() {
	return s.bus.SubscribeAll(handler)
}

func (s *Service) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

// ProcessScan classifies image and applies the reward. A scan that yields
// no usable result fails with ErrNoResult and leaves progress untouched.
// A poor-confidence scan is not an error: it returns a zero reward.
func (s *Service) ProcessScan(ctx context.Context, image []byte) (ScanOutcome, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return ScanOutcome{}, ErrScanInProgress
	}
	defer s.busy.Store(false)

	result, category, err := s.classify(ctx, image)
	if err != nil {
		s.log.Warn("scan rejected", "error", err)
		s.bus.Publish(ctx, core.NewScanRejected(err.Error()))
		return ScanOutcome{}, fmt.Errorf("%w: %w", ErrNoResult, err)
	}

	reward := core.ComputeReward(result)
	applied, err := s.store.ApplyScan(ctx, category.ID, reward)
	if err != nil {
		return ScanOutcome{}, fmt.Errorf("apply scan: %w", err)
	}

	events := []core.Event{core.NewScanClassified(result, reward)}
	if reward.CountsTowardProgress {
		s.ranking.Update(category.ID, applied.After.PerCategoryCount[category.ID])
		events = append(events, core.NewScanRecorded(category.ID, applied.After.TotalScanned))
	}
	if reward.CoinDelta > 0 {
		events = append(events, core.NewCoinsAdded(reward.CoinDelta, applied.After.Coins))
	}

	out := ScanOutcome{
		Result:   result,
		Category: category,
		Reward:   reward,
		Feedback: core.FeedbackFor(reward, category.Name),
		Progress: applied.After,
	}
	for _, d := range s.rules.Evaluate(ctx, applied.Before, applied.After) {
		switch d.Type {
		case core.EventLevelUp:
			out.LevelUp = true
		case core.EventAchievementUnlocked:
			out.NewAchievements = append(out.NewAchievements, d.AchievementID)
		}
		events = append(events, d)
	}
	for _, ev := range events {
		s.bus.Publish(ctx, ev)
	}

	s.log.Info("scan processed",
		"category", category.ID,
		"confidence", result.Confidence,
		"tier", reward.Tier,
		"coins", reward.CoinDelta,
		"total_scanned", applied.After.TotalScanned,
		"level", applied.After.Level)
	return out, nil
}

func (s *Service) classify(ctx context.Context, image []byte) (core.ClassificationResult, core.WasteCategory, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.classifier.Classify(cctx, image)
	if s.observe != nil {
		s.observe(time.Since(start), err)
	}
	if err != nil {
		return core.ClassificationResult{}, core.WasteCategory{}, err
	}
	category, err := s.catalog.Resolve(raw.Label)
	if err != nil {
		return core.ClassificationResult{}, core.WasteCategory{}, err
	}
	result := core.ClassificationResult{CategoryID: category.ID, Confidence: raw.Confidence}
	if err := result.Validate(); err != nil {
		return core.ClassificationResult{}, core.WasteCategory{}, fmt.Errorf("%w: %v", err, raw.Confidence)
	}
	return result, category, nil
}

// Unlock buys a badge or sticker at its catalog price.
func (s *Service) Unlock(ctx context.Context, kind core.RewardKind, id string) (core.UserProgress, error) {
	item, err := s.catalog.Reward(kind, id)
	if err != nil {
		return core.UserProgress{}, err
	}
	p, err := s.store.Unlock(ctx, kind, item.ID, item.Cost)
	if err != nil {
		return core.UserProgress{}, err
	}
	s.bus.Publish(ctx, core.NewRewardUnlocked(kind, item.ID, item.Cost, p.Coins))
	s.log.Info("reward unlocked", "kind", kind, "id", item.ID, "cost", item.Cost, "coins", p.Coins)
	return p, nil
}

// AddCoins credits coins outside of a scan.
func (s *Service) AddCoins(ctx context.Context, amount int64) (int64, error) {
	total, err := s.store.AddCoins(ctx, amount)
	if err != nil {
		return 0, err
	}
	if amount > 0 {
		s.bus.Publish(ctx, core.NewCoinsAdded(amount, total))
	}
	return total, nil
}

func (s *Service) SetUsername(ctx context.Context, name string) (core.UserProgress, error) {
	before := s.store.Snapshot().Username
	p, err := s.store.SetUsername(ctx, name)
	if err != nil {
		return core.UserProgress{}, err
	}
	if p.Username != before {
		s.bus.Publish(ctx, core.NewUsernameChanged(p.Username))
	}
	return p, nil
}

// Snapshot returns a copy of the current progress.
func (s *Service) Snapshot() core.UserProgress { return s.store.Snapshot() }

// Achievements reports every catalog achievement against current progress.
func (s *Service) Achievements() []core.AchievementStatus {
	return core.AchievementStatuses(s.store.Snapshot(), s.catalog.Achievements)
}

func (s *Service) LevelProgress() core.LevelProgress {
	return core.ProgressFor(s.store.Snapshot())
}

// CategoryProgress reports scans toward the per-category goal for every
// catalog category, in catalog order.
func (s *Service) CategoryProgress() []core.CategoryProgress {
	return core.CategoryProgressFor(s.store.Snapshot(), s.catalog.Categories)
}

// TopCategories ranks categories by counting scans, most scanned first.
func (s *Service) TopCategories(n int) []leaderboard.Entry {
	return s.ranking.TopN(n)
}

func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Flush waits for pending progress writes.
func (s *Service) Flush(ctx context.Context) error { return s.store.Flush(ctx) }

// Close flushes progress and stops event delivery.
func (s *Service) Close(ctx context.Context) error {
	err := s.store.Close(ctx)
	s.bus.Close()
	return err
}

type simpleRuleEngine struct{ rules []core.Rule }

func (s *simpleRuleEngine) Evaluate(ctx context.Context, before, after core.UserProgress) []core.Event {
	var out []core.Event
	for _, r := range s.rules {
		out = append(out, r.Evaluate(ctx, before, after)...)
	}
	return out
}
