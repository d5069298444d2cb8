package orchestration

import (
	"context"
	"fmt"

	"github.com/hupe1980/magentic/core"
)

// Notices delivered as the final message when a limit ends a run.
const (
	MaxRoundCountMessage = "Max round count reached."
	MaxResetCountMessage = "Max reset count reached."
)

// DefaultMaxStallCount is the stall threshold used when none is configured.
const DefaultMaxStallCount = 3

// Manager is the planning strategy driven by the manager actor.
//
// Every method receives a snapshot of the run context that the strategy may
// mutate freely (for example by appending prompts to its History); changes
// are never seen by the actor.
type Manager interface {
	// Plan gathers facts, drafts a plan, stores both as a new task ledger
	// and returns the rendered task ledger message.
	Plan(ctx context.Context, rc *RunContext) (core.Message, error)

	// Replan updates the existing task ledger from its previous facts and
	// returns the re-rendered task ledger message. It fails with
	// ErrNoTaskLedger if Plan never succeeded.
	Replan(ctx context.Context, rc *RunContext) (core.Message, error)

	// CreateProgressLedger judges the conversation so far.
	CreateProgressLedger(ctx context.Context, rc *RunContext) (*ProgressLedger, error)

	// PrepareFinalAnswer produces the answer delivered to the caller.
	PrepareFinalAnswer(ctx context.Context, rc *RunContext) (core.Message, error)

	// Limits returns the policy knobs consulted by the manager actor.
	Limits() Limits
}

// RunCloser is implemented by managers that keep state per run. The manager
// actor calls CloseRun once the run identified by runID has ended.
type RunCloser interface {
	CloseRun(runID string)
}

// Limits bounds a run. Nil pointers mean unlimited.
type Limits struct {
	MaxStallCount int
	MaxResetCount *int
	MaxRoundCount *int
}

// Validate checks MaxStallCount >= 0, MaxResetCount >= 0 and MaxRoundCount > 0.
func (l Limits) Validate() error {
	if l.MaxStallCount < 0 {
		return fmt.Errorf("%w: max stall count must be >= 0, got %d", ErrInvalidLimit, l.MaxStallCount)
	}
	if l.MaxResetCount != nil && *l.MaxResetCount < 0 {
		return fmt.Errorf("%w: max reset count must be >= 0, got %d", ErrInvalidLimit, *l.MaxResetCount)
	}
	if l.MaxRoundCount != nil && *l.MaxRoundCount <= 0 {
		return fmt.Errorf("%w: max round count must be > 0, got %d", ErrInvalidLimit, *l.MaxRoundCount)
	}
	return nil
}

// Exceeded reports the notice for the first limit reached by rc. The round
// limit is checked before the reset limit, so it wins when both are reached.
func (l Limits) Exceeded(rc *RunContext) (string, bool) {
	if l.MaxRoundCount != nil && rc.RoundCount >= *l.MaxRoundCount {
		return MaxRoundCountMessage, true
	}
	if l.MaxResetCount != nil && rc.ResetCount > *l.MaxResetCount {
		return MaxResetCountMessage, true
	}
	return "", false
}

// Int returns a pointer to v, for optional limits.
func Int(v int) *int { return &v }
