package classifier

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// Demo stands in for a real model: it picks a label uniformly and a
// confidence in [MinConfidence, MinConfidence+ConfidenceSpread).
type Demo struct {
	labels []string
	delay  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

const (
	MinConfidence    = 0.5
	ConfidenceSpread = 0.48
)

// DemoOption configures a Demo classifier.
type DemoOption func(*Demo)

// WithSeed makes the sequence reproducible.
func WithSeed(seed uint64) DemoOption {
	return func(d *Demo) { d.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithDelay simulates model latency.
func WithDelay(delay time.Duration) DemoOption {
	return func(d *Demo) { d.delay = delay }
}

// NewDemo builds a demo classifier over the given labels.
func NewDemo(labels []string, opts ...DemoOption) (*Demo, error) {
	if len(labels) == 0 {
		return nil, errors.New("demo classifier needs at least one label")
	}
	d := &Demo{labels: append([]string(nil), labels...)}
	for _, o := range opts {
		o(d)
	}
	if d.rng == nil {
		// secure seed for PCG when no seed was configured
		var seed [16]byte
		if _, err := cryptorand.Read(seed[:]); err != nil {
			seed = [16]byte{}
		}
		d.rng = rand.New(rand.NewPCG(binary.BigEndian.Uint64(seed[:8]), binary.BigEndian.Uint64(seed[8:])))
	}
	return d, nil
}

// Classify ignores the image.
func (d *Demo) Classify(ctx context.Context, _ []byte) (Result, error) {
	if d.delay > 0 {
		t := time.NewTimer(d.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	label := d.labels[d.rng.IntN(len(d.labels))]
	confidence := MinConfidence + d.rng.Float64()*ConfidenceSpread
	return Result{Label: label, Confidence: confidence}, nil
}
