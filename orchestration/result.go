package orchestration

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/magentic/core"
	"github.com/hupe1980/magentic/observability"
)

// Result is the pending outcome of one run. It settles exactly once, with
// the final message or the first error.
type Result struct {
	done chan struct{}
	once sync.Once
	msg  core.Message
	err  error

	onSettle func(outcome observability.Outcome, err error)
}

func newResult(onSettle func(observability.Outcome, error)) *Result {
	return &Result{done: make(chan struct{}), onSettle: onSettle}
}

// Get blocks until the run finishes or ctx is done.
func (r *Result) Get(ctx context.Context) (core.Message, error) {
	select {
	case <-r.done:
		return r.msg.Clone(), r.err
	case <-ctx.Done():
		return core.Message{}, ctx.Err()
	}
}

// Done is closed once the result has settled.
func (r *Result) Done() <-chan struct{} { return r.done }

func (r *Result) resolve(msg core.Message, outcome observability.Outcome) {
	r.settle(msg, outcome, nil)
}

func (r *Result) fail(err error) {
	outcome := observability.OutcomeFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		outcome = observability.OutcomeCancelled
	}
	r.settle(core.Message{}, outcome, err)
}

func (r *Result) settle(msg core.Message, outcome observability.Outcome, err error) {
	r.once.Do(func() {
		r.msg, r.err = msg, err
		close(r.done)
		if r.onSettle != nil {
			r.onSettle(outcome, err)
		}
	})
}
