package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/magentic/core"
	"github.com/hupe1980/magentic/orchestration"
)

// ErrScriptExhausted is returned when a ScriptedManager runs out of ledgers.
var ErrScriptExhausted = errors.New("scripted manager: no progress ledger left")

// ScriptedManager is an orchestration.Manager that replays a fixed sequence
// of progress ledgers and records every call with the snapshot it received.
type ScriptedManager struct {
	LimitsValue orchestration.Limits
	FinalAnswer string

	mu       sync.Mutex
	ledgers  []*orchestration.ProgressLedger
	calls    []string
	contexts map[string][]*orchestration.RunContext
	closed   []string
}

var _ orchestration.RunCloser = (*ScriptedManager)(nil)

// NewScriptedManager creates a manager replaying ledgers in order.
func NewScriptedManager(limits orchestration.Limits, ledgers ...*orchestration.ProgressLedger) *ScriptedManager {
	return &ScriptedManager{
		LimitsValue: limits,
		FinalAnswer: "final answer",
		ledgers:     ledgers,
		contexts:    make(map[string][]*orchestration.RunContext),
	}
}

func (m *ScriptedManager) record(op string, rc *orchestration.RunContext) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op)
	m.contexts[op] = append(m.contexts[op], rc)
	return len(m.contexts[op])
}

// Plan implements orchestration.Manager.
func (m *ScriptedManager) Plan(_ context.Context, rc *orchestration.RunContext) (core.Message, error) {
	n := m.record("plan", rc)
	return core.NewAssistantMessage(orchestration.ManagerName, fmt.Sprintf("task ledger %d", n)), nil
}

// Replan implements orchestration.Manager.
func (m *ScriptedManager) Replan(_ context.Context, rc *orchestration.RunContext) (core.Message, error) {
	n := m.record("replan", rc)
	return core.NewAssistantMessage(orchestration.ManagerName, fmt.Sprintf("updated task ledger %d", n)), nil
}

// CreateProgressLedger implements orchestration.Manager.
func (m *ScriptedManager) CreateProgressLedger(_ context.Context, rc *orchestration.RunContext) (*orchestration.ProgressLedger, error) {
	m.record("progress", rc)

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ledgers) == 0 {
		return nil, ErrScriptExhausted
	}
	next := m.ledgers[0]
	m.ledgers = m.ledgers[1:]
	return next, nil
}

// PrepareFinalAnswer implements orchestration.Manager.
func (m *ScriptedManager) PrepareFinalAnswer(_ context.Context, rc *orchestration.RunContext) (core.Message, error) {
	m.record("final", rc)
	return core.NewAssistantMessage(orchestration.ManagerName, m.FinalAnswer), nil
}

// CloseRun implements orchestration.RunCloser.
func (m *ScriptedManager) CloseRun(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, runID)
}

// Closed returns the run IDs passed to CloseRun.
func (m *ScriptedManager) Closed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.closed...)
}

// Limits implements orchestration.Manager.
func (m *ScriptedManager) Limits() orchestration.Limits { return m.LimitsValue }

// Calls returns the operations in call order.
func (m *ScriptedManager) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Count returns how often op ("plan", "replan", "progress", "final") was called.
func (m *ScriptedManager) Count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.contexts[op])
}

// Contexts returns the snapshots passed to op.
func (m *ScriptedManager) Contexts(op string) []*orchestration.RunContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*orchestration.RunContext(nil), m.contexts[op]...)
}
