// Package classifier defines the image classification collaborator and its
// implementations: a seeded demo stub, an HTTP model adapter, and a scripted
// fixture for tests.
package classifier

import (
	"context"
	"errors"
)

// Result is the raw collaborator answer. Label is a category id or display
// name; Confidence is expected in [0, 1].
type Result struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier classifies an optional image. Implementations must honour ctx
// cancellation.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (Result, error)
}

// ErrUnavailable reports that no classification could be produced.
var ErrUnavailable = errors.New("classifier unavailable")

// Func adapts a function to the Classifier interface.
type Func func(ctx context.Context, image []byte) (Result, error)

func (f Func) Classify(ctx context.Context, image []byte) (Result, error) { return f(ctx, image) }
