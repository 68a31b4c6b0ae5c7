package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wastewise/core"
)

const saveTimeout = 5 * time.Second

// writeBehind persists progress snapshots on a single goroutine. Only the
// newest submitted snapshot is kept, so a slow or failing backend never sees
// an older state after a newer one. Failed writes are retried with whatever
// is newest at retry time.
type writeBehind struct {
	storage Storage
	log     *slog.Logger
	retry   time.Duration
	observe func(PersistAttempt)

	mu       sync.Mutex
	pending  *core.UserProgress
	queued   uint64
	written  uint64
	lastErr  error
	advanced chan struct{}

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newWriteBehind(storage Storage, log *slog.Logger, retry time.Duration, observe func(PersistAttempt)) *writeBehind {
	w := &writeBehind{
		storage:  storage,
		log:      log,
		retry:    retry,
		observe:  observe,
		advanced: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

// submit must be called in mutation order; version increases per mutation.
func (w *writeBehind) submit(p core.UserProgress, version uint64) {
	w.mu.Lock()
	if version > w.queued {
		w.pending = &p
		w.queued = version
	}
	w.mu.Unlock()
	w.kick()
}

func (w *writeBehind) kick() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *writeBehind) run() {
	defer close(w.done)
	timer := time.NewTimer(w.retry)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-w.wake:
		case <-timer.C:
		case <-w.stop:
			return
		}
		if !w.writeLatest() {
			timer.Reset(w.retry)
		}
	}
}

// writeLatest reports false when a write failed and a retry is needed.
func (w *writeBehind) writeLatest() bool {
	w.mu.Lock()
	p, version := w.pending, w.queued
	retry := w.lastErr != nil
	w.pending = nil
	w.mu.Unlock()
	if p == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	start := time.Now()
	err := w.storage.SaveProgress(ctx, *p)
	elapsed := time.Since(start)
	cancel()
	if w.observe != nil {
		w.observe(PersistAttempt{Duration: elapsed, Retry: retry, Err: err})
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	defer w.notifyLocked()
	if err != nil {
		w.lastErr = err
		if w.pending == nil {
			w.pending = p
		}
		w.log.Error("persist progress failed", "version", version, "error", err)
		return false
	}
	w.lastErr = nil
	if version > w.written {
		w.written = version
	}
	w.log.Debug("progress persisted", "version", version)
	return true
}

func (w *writeBehind) notifyLocked() {
	close(w.advanced)
	w.advanced = make(chan struct{})
}

// flush waits until everything submitted so far is persisted. It returns
// the write error if an attempt fails before that point.
func (w *writeBehind) flush(ctx context.Context) error {
	for {
		w.mu.Lock()
		if w.written >= w.queued {
			w.mu.Unlock()
			return nil
		}
		ch := w.advanced
		w.mu.Unlock()

		w.kick()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}

		w.mu.Lock()
		caughtUp, err := w.written >= w.queued, w.lastErr
		w.mu.Unlock()
		if caughtUp {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (w *writeBehind) close(ctx context.Context) error {
	err := w.flush(ctx)
	w.stopOnce.Do(func() { close(w.stop) })
	select {
	case <-w.done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}
