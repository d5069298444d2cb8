package orchestration

import (
	"strings"

	"github.com/hupe1980/magentic/core"
)

// Participant is one roster entry.
type Participant struct {
	Name        string
	Description string
}

// Roster lists the participants of a run in member order.
type Roster []Participant

// Has reports whether name is a participant.
func (r Roster) Has(name string) bool {
	for _, p := range r {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Names returns the participant names in order.
func (r Roster) Names() []string {
	names := make([]string, len(r))
	for i, p := range r {
		names[i] = p.Name
	}
	return names
}

// String renders the roster as "name: description" lines.
func (r Roster) String() string {
	lines := make([]string, len(r))
	for i, p := range r {
		lines[i] = p.Name + ": " + p.Description
	}
	return strings.Join(lines, "\n")
}

// RunContext is the manager's working state for one run. It is owned by the
// manager actor; strategies receive a Clone.
type RunContext struct {
	// RunID identifies the run; the manager actor uses the run's topic type.
	// Clones share it, so strategies can key per-run state on it.
	RunID string

	Task         core.Message
	History      *core.History
	Participants Roster

	RoundCount int
	StallCount int
	ResetCount int
}

// NewRunContext creates the context for a run of task with the given roster.
func NewRunContext(task core.Message, participants Roster) *RunContext {
	return &RunContext{
		RunID:        core.NewID(),
		Task:         task,
		History:      core.NewHistory(),
		Participants: participants,
	}
}

// Reset clears the shared history, zeroes the stall counter and counts the reset.
func (c *RunContext) Reset() {
	c.History.Clear()
	c.StallCount = 0
	c.ResetCount++
}

// UpdateStallCount applies one progress judgment: +1 when stalling,
// otherwise -1 floored at zero.
func (c *RunContext) UpdateStallCount(stalling bool) {
	if stalling {
		c.StallCount++
		return
	}
	c.StallCount = max(0, c.StallCount-1)
}

// Clone returns a deep copy.
func (c *RunContext) Clone() *RunContext {
	clone := *c
	clone.Task = c.Task.Clone()
	clone.History = c.History.Clone()
	clone.Participants = append(Roster(nil), c.Participants...)
	return &clone
}
