// Package magentic provides a high-level façade for running a Magentic team:
// a manager that plans a task and coordinates member agents until the task
// is answered or a limit is reached. Most applications interact with this
// package by:
//  1. Creating member agents (see package agent) and a manager (see
//     orchestration.NewStandardManager)
//  2. Calling Run with a task
//
// Run creates a private actor runtime per call unless one is supplied, so
// it is safe for concurrent use. Applications that need finer control use
// package orchestration directly.
package magentic

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/magentic/core"
	"github.com/hupe1980/magentic/logging"
	"github.com/hupe1980/magentic/orchestration"
	"github.com/hupe1980/magentic/runtime"
)

// Options configures a Run.
type Options struct {
	// Name identifies the orchestration in traces and logs.
	Name string

	// AgentResponseCallback, if set, receives every member response.
	AgentResponseCallback func(core.Message)

	// Runtime hosts the run. When nil, Run creates one and stops it on return.
	Runtime *runtime.Runtime

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// TracerProvider and MeterProvider default to the global providers.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Run executes task with the given team and blocks until the final message
// or the first error. A round or reset limit is not an error: the final
// message is then the limit notice.
//
// Example:
//
//	mgr, _ := orchestration.NewStandardManager(llm)
//	answer, err := magentic.Run(ctx, core.NewUserMessage("Plan a launch"), []core.Agent{writer, analyst}, mgr)
func Run(
	ctx context.Context,
	task core.Message,
	members []core.Agent,
	manager orchestration.Manager,
	optFns ...func(o *Options),
) (core.Message, error) {
	opts := Options{
		Name:   "MagenticOrchestration",
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	orch, err := orchestration.NewMagenticOrchestration(members, manager, func(o *orchestration.Options) {
		o.Name = opts.Name
		o.AgentResponseCallback = opts.AgentResponseCallback
		o.Logger = opts.Logger
		o.TracerProvider = opts.TracerProvider
		o.MeterProvider = opts.MeterProvider
	})
	if err != nil {
		return core.Message{}, err
	}

	rt := opts.Runtime
	if rt == nil {
		rt = runtime.New(func(o *runtime.Options) {
			o.Logger = opts.Logger
		})
		defer func() {
			_ = rt.Stop(context.WithoutCancel(ctx))
		}()
	}

	res, err := orch.Invoke(ctx, task, rt)
	if err != nil {
		return core.Message{}, err
	}
	return res.Get(ctx)
}
