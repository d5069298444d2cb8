// Package observability holds the OpenTelemetry instruments recorded by the
// orchestration and the tracer provider setup used by the CLI.
package observability

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the meter and tracer name used by this module.
const InstrumentationName = "github.com/hupe1980/magentic"

// Outcome labels how a run ended.
type Outcome string

const (
	OutcomeAnswered  Outcome = "answered"
	OutcomeMaxRounds Outcome = "max_rounds"
	OutcomeMaxResets Outcome = "max_resets"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Instruments groups the orchestration metrics.
type Instruments struct {
	rounds           metric.Int64Counter
	stalls           metric.Int64Counter
	resets           metric.Int64Counter
	runs             metric.Int64Counter
	agentInvocations metric.Int64Counter
	managerDuration  metric.Float64Histogram
}

// NewInstruments creates the orchestration instruments on mp. A nil mp uses
// the global meter provider.
func NewInstruments(mp metric.MeterProvider) (*Instruments, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(InstrumentationName)

	rounds, err := meter.Int64Counter(
		"magentic_rounds_total",
		metric.WithDescription("Inner loop rounds executed by the manager"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rounds counter: %w", err)
	}

	stalls, err := meter.Int64Counter(
		"magentic_stalls_total",
		metric.WithDescription("Progress judgments reporting no progress or a loop"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stalls counter: %w", err)
	}

	resets, err := meter.Int64Counter(
		"magentic_resets_total",
		metric.WithDescription("Replan and reset cycles"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resets counter: %w", err)
	}

	runs, err := meter.Int64Counter(
		"magentic_runs_total",
		metric.WithDescription("Finished orchestration runs by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}

	agentInvocations, err := meter.Int64Counter(
		"magentic_agent_invocations_total",
		metric.WithDescription("Member agent invocations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent invocations counter: %w", err)
	}

	managerDuration, err := meter.Float64Histogram(
		"magentic_manager_call_duration_seconds",
		metric.WithDescription("Duration of manager strategy calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create manager duration histogram: %w", err)
	}

	return &Instruments{
		rounds:           rounds,
		stalls:           stalls,
		resets:           resets,
		runs:             runs,
		agentInvocations: agentInvocations,
		managerDuration:  managerDuration,
	}, nil
}

// Round records one inner loop round.
func (i *Instruments) Round(ctx context.Context) {
	if i == nil {
		return
	}
	i.rounds.Add(ctx, 1)
}

// Stall records a stalling progress judgment.
func (i *Instruments) Stall(ctx context.Context) {
	if i == nil {
		return
	}
	i.stalls.Add(ctx, 1)
}

// Reset records a replan and reset cycle.
func (i *Instruments) Reset(ctx context.Context) {
	if i == nil {
		return
	}
	i.resets.Add(ctx, 1)
}

// RunFinished records the outcome of a run.
func (i *Instruments) RunFinished(ctx context.Context, outcome Outcome) {
	if i == nil {
		return
	}
	i.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}

// AgentInvoked records one member invocation.
func (i *Instruments) AgentInvoked(ctx context.Context, agent string, failed bool) {
	if i == nil {
		return
	}
	i.agentInvocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.Bool("error", failed),
	))
}

// ManagerCall records the duration of a manager strategy call.
func (i *Instruments) ManagerCall(ctx context.Context, op string, seconds float64) {
	if i == nil {
		return
	}
	i.managerDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("op", op)))
}

// Tracer returns the module tracer from tp, or from the global provider when tp is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName)
}

// NewStdoutTracerProvider creates a tracer provider that pretty prints
// finished spans to w. The caller owns Shutdown.
func NewStdoutTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)), nil
}
