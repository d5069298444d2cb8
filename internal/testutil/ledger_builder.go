package testutil

import (
	"github.com/hupe1980/magentic/orchestration"
)

// LedgerBuilder provides a fluent helper for progress ledgers. The default
// ledger is not satisfied, making progress and not in a loop.
//
//	l := NewLedger().Next("coder", "write the function").InLoop().Build()
type LedgerBuilder struct {
	l orchestration.ProgressLedger
}

// NewLedger creates a builder with the default judgment.
func NewLedger() *LedgerBuilder {
	b := &LedgerBuilder{}
	b.l.IsRequestSatisfied = item("not done yet", orchestration.BoolAnswer(false))
	b.l.IsInLoop = item("no repetition", orchestration.BoolAnswer(false))
	b.l.IsProgressBeingMade = item("steps are adding value", orchestration.BoolAnswer(true))
	return b
}

// Next selects the next speaker and the instruction for it (chainable).
func (b *LedgerBuilder) Next(agent, instruction string) *LedgerBuilder {
	b.l.NextSpeaker = item("best suited", orchestration.StringAnswer(agent))
	b.l.InstructionOrQuestion = item("next step", orchestration.StringAnswer(instruction))
	return b
}

// Satisfied marks the request as satisfied (chainable).
func (b *LedgerBuilder) Satisfied() *LedgerBuilder {
	b.l.IsRequestSatisfied = item("done", orchestration.BoolAnswer(true))
	return b
}

// InLoop marks the conversation as looping (chainable).
func (b *LedgerBuilder) InLoop() *LedgerBuilder {
	b.l.IsInLoop = item("repeating", orchestration.BoolAnswer(true))
	return b
}

// NoProgress marks the conversation as not progressing (chainable).
func (b *LedgerBuilder) NoProgress() *LedgerBuilder {
	b.l.IsProgressBeingMade = item("stuck", orchestration.BoolAnswer(false))
	return b
}

// Build returns a copy of the ledger.
func (b *LedgerBuilder) Build() *orchestration.ProgressLedger {
	l := b.l
	return &l
}

func item(reason string, answer orchestration.LedgerAnswer) orchestration.ProgressLedgerItem {
	return orchestration.ProgressLedgerItem{Reason: reason, Answer: answer}
}
