package classifier

import (
	"context"
	"sync"
)

// Step is one scripted fixture answer.
type Step struct {
	Result Result
	Err    error
}

// Fixture replays scripted answers in order, then repeats the last one.
type Fixture struct {
	mu     sync.Mutex
	steps  []Step
	next   int
	images [][]byte
}

// NewFixture scripts results.
func NewFixture(steps ...Step) *Fixture {
	return &Fixture{steps: steps}
}

// Results is shorthand for a fixture with no errors.
func Results(rs ...Result) *Fixture {
	steps := make([]Step, len(rs))
	for i, r := range rs {
		steps[i] = Step{Result: r}
	}
	return NewFixture(steps...)
}

func (f *Fixture) Classify(ctx context.Context, image []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = append(f.images, image)
	if len(f.steps) == 0 {
		return Result{}, ErrUnavailable
	}
	i := min(f.next, len(f.steps)-1)
	f.next++
	return f.steps[i].Result, f.steps[i].Err
}

// Calls returns how many times Classify ran.
func (f *Fixture) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.images)
}
