package engine

import (
	"context"
	"time"

	"wastewise/core"
)

// Storage persists the single progress blob. LoadProgress returns
// core.ErrNotFound when nothing has been saved yet.
type Storage interface {
	LoadProgress(ctx context.Context) (core.UserProgress, error)
	SaveProgress(ctx context.Context, p core.UserProgress) error
}

// RuleEngine evaluates rules and emits derived events.
type RuleEngine interface {
	Evaluate(ctx context.Context, before, after core.UserProgress) []core.Event
}

// PersistAttempt describes one write-behind save. Retry is set when the
// previous attempt failed.
type PersistAttempt struct {
	Duration time.Duration
	Retry    bool
	Err      error
}
