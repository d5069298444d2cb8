package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/hupe1980/magentic/core"
	"github.com/hupe1980/magentic/internal/util"
	"github.com/hupe1980/magentic/logging"
	"github.com/hupe1980/magentic/model"
)

// ProgressLedgerSchemaName names the response format requested for progress ledgers.
const ProgressLedgerSchemaName = "progress_ledger"

// StandardManagerOptions configures a StandardManager.
type StandardManagerOptions struct {
	// Settings are applied to every completion. ResponseFormat must be nil;
	// the manager sets it for progress ledger calls.
	Settings model.Settings

	// MaxStallCount is the number of stalling rounds tolerated before a
	// replan. Defaults to DefaultMaxStallCount.
	MaxStallCount int

	// MaxResetCount bounds the number of replans. Nil means unlimited.
	MaxResetCount *int

	// MaxRoundCount bounds the number of inner loop rounds. Nil means unlimited.
	MaxRoundCount *int

	// Prompts overrides individual prompt templates; empty fields keep the default.
	Prompts Prompts

	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// StandardManager is a Manager backed by a chat completion model with fixed prompts.
//
// Task ledgers are kept per run (see RunContext.RunID), so one StandardManager
// can serve concurrent runs. A run's ledger is dropped by CloseRun.
type StandardManager struct {
	model     model.Model
	settings  model.Settings
	limits    Limits
	logger    logging.Logger
	templates templates
	format    *model.ResponseFormat
	validator *util.Validator

	mu      sync.Mutex
	ledgers map[string]*TaskLedger
}

var _ RunCloser = (*StandardManager)(nil)

type templates struct {
	facts, plan, full, factsUpdate, planUpdate, progress, final *template.Template
}

// promptData is the template input.
type promptData struct {
	Task     string
	Team     string
	Names    string
	Facts    string
	Plan     string
	OldFacts string
}

// NewStandardManager creates a StandardManager. The model must support
// structured output (see model.StructuredOutputModel).
//
// Example:
//
//	mgr, err := orchestration.NewStandardManager(openai.NewModel(), func(o *orchestration.StandardManagerOptions) {
//	    o.MaxRoundCount = orchestration.Int(20)
//	})
func NewStandardManager(m model.Model, optFns ...func(o *StandardManagerOptions)) (*StandardManager, error) {
	if m == nil {
		return nil, errors.New("model is required")
	}

	opts := StandardManagerOptions{
		MaxStallCount: DefaultMaxStallCount,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if !model.SupportsResponseFormat(m) {
		return nil, fmt.Errorf("%s/%s: %w", m.Info().Provider, m.Info().Name, ErrStructuredOutputUnsupported)
	}
	if opts.Settings.ResponseFormat != nil {
		return nil, ErrResponseFormatConflict
	}

	limits := Limits{
		MaxStallCount: opts.MaxStallCount,
		MaxResetCount: opts.MaxResetCount,
		MaxRoundCount: opts.MaxRoundCount,
	}
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	tmpls, err := parseTemplates(opts.Prompts.withDefaults())
	if err != nil {
		return nil, err
	}

	schema, err := util.SchemaFor[ProgressLedger]()
	if err != nil {
		return nil, fmt.Errorf("progress ledger schema: %w", err)
	}
	validator, err := util.NewValidator(ProgressLedgerSchemaName, schema)
	if err != nil {
		return nil, fmt.Errorf("progress ledger schema: %w", err)
	}

	return &StandardManager{
		model:     m,
		settings:  opts.Settings.Clone(),
		limits:    limits,
		logger:    opts.Logger,
		templates: tmpls,
		format: &model.ResponseFormat{
			Name:        ProgressLedgerSchemaName,
			Description: "Judgment of the team's progress and the next step",
			Schema:      schema,
		},
		validator: validator,
		ledgers:   make(map[string]*TaskLedger),
	}, nil
}

func parseTemplates(p Prompts) (templates, error) {
	var (
		t   templates
		err error
	)
	for _, spec := range []struct {
		name string
		text string
		dst  **template.Template
	}{
		{"task_ledger_facts", p.TaskLedgerFacts, &t.facts},
		{"task_ledger_plan", p.TaskLedgerPlan, &t.plan},
		{"task_ledger_full", p.TaskLedgerFull, &t.full},
		{"task_ledger_facts_update", p.TaskLedgerFactsUpdate, &t.factsUpdate},
		{"task_ledger_plan_update", p.TaskLedgerPlanUpdate, &t.planUpdate},
		{"progress_ledger", p.ProgressLedger, &t.progress},
		{"final_answer", p.FinalAnswer, &t.final},
	} {
		if *spec.dst, err = util.ParseTemplate(spec.name, spec.text); err != nil {
			return templates{}, err
		}
	}
	return t, nil
}

// Limits implements Manager.
func (m *StandardManager) Limits() Limits { return m.limits }

// TaskLedger returns a copy of the task ledger of run runID, or nil before
// Plan or after CloseRun.
func (m *StandardManager) TaskLedger(runID string) *TaskLedger {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ledgers[runID]
	if !ok {
		return nil
	}
	return &TaskLedger{Facts: l.Facts.Clone(), Plan: l.Plan.Clone()}
}

// CloseRun implements RunCloser.
func (m *StandardManager) CloseRun(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ledgers, runID)
}

// Plan implements Manager.
func (m *StandardManager) Plan(ctx context.Context, rc *RunContext) (core.Message, error) {
	facts, plan, err := m.createFactsAndPlan(ctx, rc, nil)
	if err != nil {
		return core.Message{}, fmt.Errorf("plan: %w", err)
	}

	m.mu.Lock()
	m.ledgers[rc.RunID] = &TaskLedger{Facts: facts, Plan: plan}
	m.mu.Unlock()

	return m.renderTaskLedger(rc, facts, plan)
}

// Replan implements Manager.
func (m *StandardManager) Replan(ctx context.Context, rc *RunContext) (core.Message, error) {
	m.mu.Lock()
	current, ok := m.ledgers[rc.RunID]
	if !ok {
		m.mu.Unlock()
		return core.Message{}, ErrNoTaskLedger
	}
	oldFacts := current.Facts.Clone()
	m.mu.Unlock()

	facts, plan, err := m.createFactsAndPlan(ctx, rc, &oldFacts)
	if err != nil {
		return core.Message{}, fmt.Errorf("replan: %w", err)
	}

	m.mu.Lock()
	m.ledgers[rc.RunID] = &TaskLedger{Facts: facts, Plan: plan}
	m.mu.Unlock()

	return m.renderTaskLedger(rc, facts, plan)
}

// CreateProgressLedger implements Manager.
func (m *StandardManager) CreateProgressLedger(ctx context.Context, rc *RunContext) (*ProgressLedger, error) {
	prompt, err := util.Execute(m.templates.progress, promptData{
		Task:  rc.Task.Text(),
		Team:  rc.Participants.String(),
		Names: strings.Join(rc.Participants.Names(), ", "),
	})
	if err != nil {
		return nil, err
	}
	rc.History.Add(core.NewUserMessage(prompt))

	settings := m.settings.Clone()
	settings.ResponseFormat = m.format

	reply, err := m.complete(ctx, rc.History, settings)
	if err != nil {
		return nil, fmt.Errorf("progress ledger: %w", err)
	}

	raw := []byte(stripCodeFence(reply.Text()))
	if err := m.validator.ValidateJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProgressLedger, err)
	}

	var ledger ProgressLedger
	if err := json.Unmarshal(raw, &ledger); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProgressLedger, err)
	}

	m.logger.Debug("magentic.progress_ledger",
		"satisfied", ledger.IsRequestSatisfied.Answer.String(),
		"in_loop", ledger.IsInLoop.Answer.String(),
		"progress", ledger.IsProgressBeingMade.Answer.String(),
		"next_speaker", ledger.NextSpeaker.Answer.String(),
	)
	return &ledger, nil
}

// PrepareFinalAnswer implements Manager.
func (m *StandardManager) PrepareFinalAnswer(ctx context.Context, rc *RunContext) (core.Message, error) {
	prompt, err := util.Execute(m.templates.final, promptData{Task: rc.Task.Text()})
	if err != nil {
		return core.Message{}, err
	}
	rc.History.Add(core.NewUserMessage(prompt))

	reply, err := m.complete(ctx, rc.History, m.settings)
	if err != nil {
		return core.Message{}, fmt.Errorf("final answer: %w", err)
	}
	return reply, nil
}

// createFactsAndPlan runs the facts and plan prompts on rc.History. A non-nil
// oldFacts selects the update prompt variants.
func (m *StandardManager) createFactsAndPlan(
	ctx context.Context,
	rc *RunContext,
	oldFacts *core.Message,
) (core.Message, core.Message, error) {
	factsTmpl, planTmpl := m.templates.facts, m.templates.plan
	data := promptData{Task: rc.Task.Text(), Team: rc.Participants.String()}
	if oldFacts != nil {
		factsTmpl, planTmpl = m.templates.factsUpdate, m.templates.planUpdate
		data.OldFacts = oldFacts.Text()
	}

	prompt, err := util.Execute(factsTmpl, data)
	if err != nil {
		return core.Message{}, core.Message{}, err
	}
	rc.History.Add(core.NewUserMessage(prompt))

	facts, err := m.complete(ctx, rc.History, m.settings)
	if err != nil {
		return core.Message{}, core.Message{}, fmt.Errorf("facts: %w", err)
	}
	rc.History.Add(facts)

	prompt, err = util.Execute(planTmpl, data)
	if err != nil {
		return core.Message{}, core.Message{}, err
	}
	rc.History.Add(core.NewUserMessage(prompt))

	plan, err := m.complete(ctx, rc.History, m.settings)
	if err != nil {
		return core.Message{}, core.Message{}, fmt.Errorf("plan: %w", err)
	}

	return facts, plan, nil
}

func (m *StandardManager) renderTaskLedger(rc *RunContext, facts, plan core.Message) (core.Message, error) {
	text, err := util.Execute(m.templates.full, promptData{
		Task:  rc.Task.Text(),
		Team:  rc.Participants.String(),
		Facts: facts.Text(),
		Plan:  plan.Text(),
	})
	if err != nil {
		return core.Message{}, err
	}
	return core.NewAssistantMessage(ManagerName, text), nil
}

func (m *StandardManager) complete(ctx context.Context, h *core.History, settings model.Settings) (core.Message, error) {
	return model.Complete(ctx, m.model, model.Request{
		Messages: h.Messages(),
		Settings: settings,
	})
}

// stripCodeFence removes a surrounding markdown code fence some models add
// around JSON replies.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
