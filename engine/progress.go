package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"wastewise/core"
)

// ProgressStore owns the device's UserProgress. Every mutation runs under a
// single mutex and hands the resulting state to the write-behind persister,
// so readers never observe half of a scan and storage sees states in
// mutation order.
type ProgressStore struct {
	mu      sync.Mutex
	state   core.UserProgress
	version uint64
	writer  *writeBehind
	log     *slog.Logger
	now     func() time.Time
}

// StoreOption configures a ProgressStore.
type StoreOption func(*storeConfig)

type storeConfig struct {
	log     *slog.Logger
	retry   time.Duration
	now     func() time.Time
	observe func(PersistAttempt)
}

// WithStoreLogger sets the logger used for persistence failures.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(c *storeConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRetryInterval sets how long to wait before retrying a failed write.
func WithRetryInterval(d time.Duration) StoreOption {
	return func(c *storeConfig) {
		if d > 0 {
			c.retry = d
		}
	}
}

// WithClock overrides the time source used for the Updated stamp.
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPersistObserver is called after every save attempt, from the
// persister goroutine.
func WithPersistObserver(fn func(PersistAttempt)) StoreOption {
	return func(c *storeConfig) { c.observe = fn }
}

// ScanApplied carries the state on both sides of an applied scan.
type ScanApplied struct {
	Before core.UserProgress
	After  core.UserProgress
}

// OpenProgressStore loads the persisted progress, or starts from the
// first-launch defaults when storage has none.
func OpenProgressStore(ctx context.Context, storage Storage, opts ...StoreOption) (*ProgressStore, error) {
	if storage == nil {
		return nil, errors.New("progress store requires storage")
	}
	cfg := storeConfig{log: slog.Default(), retry: 2 * time.Second, now: time.Now}
	for _, o := range opts {
		o(&cfg)
	}

	state, err := storage.LoadProgress(ctx)
	switch {
	case errors.Is(err, core.ErrNotFound):
		state = core.NewUserProgress()
		state.Updated = cfg.now().UTC()
		cfg.log.Info("no saved progress, starting fresh", "coins", state.Coins)
	case err != nil:
		return nil, fmt.Errorf("load progress: %w", err)
	default:
		state.Normalize()
	}

	return &ProgressStore{
		state:  state,
		writer: newWriteBehind(storage, cfg.log, cfg.retry, cfg.observe),
		log:    cfg.log,
		now:    cfg.now,
	}, nil
}

// commitLocked stamps the state and queues it for persistence. Adapters
// order writes by Updated, so the stamp never moves backward even when the
// wall clock does.
func (s *ProgressStore) commitLocked() {
	now := s.now().UTC()
	if !now.After(s.state.Updated) {
		now = s.state.Updated.Add(time.Nanosecond)
	}
	s.state.Updated = now
	s.version++
	s.writer.submit(s.state.Clone(), s.version)
}

// Snapshot returns a deep copy of the current progress.
func (s *ProgressStore) Snapshot() core.UserProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// AddCoins credits amount coins and returns the new balance. Negative
// amounts are rejected; spending goes through Unlock.
func (s *ProgressStore) AddCoins(_ context.Context, amount int64) (int64, error) {
	if amount < 0 {
		return 0, core.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount == 0 {
		return s.state.Coins, nil
	}
	next, err := core.AddSafe(s.state.Coins, amount)
	if err != nil {
		return 0, err
	}
	s.state.Coins = next
	s.commitLocked()
	return next, nil
}

// RecordScan counts one scan toward progress. It is a no-op when counts
// is false.
func (s *ProgressStore) RecordScan(_ context.Context, categoryID string, counts bool) (core.UserProgress, error) {
	if strings.TrimSpace(categoryID) == "" {
		return core.UserProgress{}, core.ErrUnknownCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !counts {
		return s.state.Clone(), nil
	}
	next, err := s.recordLocked(categoryID)
	if err != nil {
		return core.UserProgress{}, err
	}
	s.state = next
	s.commitLocked()
	return s.state.Clone(), nil
}

// recordLocked computes the post-scan state without touching s.state.
func (s *ProgressStore) recordLocked(categoryID string) (core.UserProgress, error) {
	next := s.state.Clone()
	total, err := core.AddSafe(next.TotalScanned, 1)
	if err != nil {
		return core.UserProgress{}, err
	}
	count, ok := next.PerCategoryCount[categoryID]
	if !ok {
		count = 0
	}
	next.TotalScanned = total
	next.PerCategoryCount[categoryID] = count + 1
	next.Level = max(next.Level, core.LevelFor(total))
	return next, nil
}

// ApplyScan applies a reward outcome: the scan is recorded and the coins
// credited in one critical section, or nothing changes.
func (s *ProgressStore) ApplyScan(_ context.Context, categoryID string, outcome core.RewardOutcome) (ScanApplied, error) {
	if strings.TrimSpace(categoryID) == "" {
		return ScanApplied{}, core.ErrUnknownCategory
	}
	if outcome.CoinDelta < 0 {
		return ScanApplied{}, core.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.state.Clone()
	if !outcome.CountsTowardProgress && outcome.CoinDelta == 0 {
		return ScanApplied{Before: before, After: before.Clone()}, nil
	}

	next := s.state.Clone()
	if outcome.CountsTowardProgress {
		var err error
		if next, err = s.recordLocked(categoryID); err != nil {
			return ScanApplied{}, err
		}
	}
	coins, err := core.AddSafe(next.Coins, outcome.CoinDelta)
	if err != nil {
		return ScanApplied{}, err
	}
	next.Coins = coins

	s.state = next
	s.commitLocked()
	return ScanApplied{Before: before, After: s.state.Clone()}, nil
}

// Unlock spends cost coins to add id to the badge or sticker collection.
// An id that is already present fails with core.ErrAlreadyUnlocked before
// the balance is checked; a short balance fails with
// core.ErrInsufficientFunds. Neither failure mutates state.
func (s *ProgressStore) Unlock(_ context.Context, kind core.RewardKind, id string, cost int64) (core.UserProgress, error) {
	if kind != core.RewardBadge && kind != core.RewardSticker {
		return core.UserProgress{}, core.ErrInvalidRewardKind
	}
	if err := core.ValidateID(id); err != nil {
		return core.UserProgress{}, err
	}
	if cost < 0 {
		return core.UserProgress{}, core.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Unlocked(kind, id) {
		return core.UserProgress{}, fmt.Errorf("%w: %s %q", core.ErrAlreadyUnlocked, kind, id)
	}
	if s.state.Coins < cost {
		return core.UserProgress{}, fmt.Errorf("%w: need %d coins, have %d", core.ErrInsufficientFunds, cost, s.state.Coins)
	}
	s.state.Coins -= cost
	switch kind {
	case core.RewardBadge:
		s.state.UnlockedBadges[id] = struct{}{}
	case core.RewardSticker:
		s.state.UnlockedStickers[id] = struct{}{}
	}
	s.commitLocked()
	return s.state.Clone(), nil
}

// SetUsername changes the display name.
func (s *ProgressStore) SetUsername(_ context.Context, name string) (core.UserProgress, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.UserProgress{}, core.ErrEmptyIdentifier
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Username == name {
		return s.state.Clone(), nil
	}
	s.state.Username = name
	s.commitLocked()
	return s.state.Clone(), nil
}

// Flush blocks until every mutation so far has been written, or returns
// the storage error of the failed attempt.
func (s *ProgressStore) Flush(ctx context.Context) error {
	return s.writer.flush(ctx)
}

// Close flushes pending writes and stops the persister.
func (s *ProgressStore) Close(ctx context.Context) error {
	return s.writer.close(ctx)
}
