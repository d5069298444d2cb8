package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/magentic"
	"github.com/hupe1980/magentic/config"
	"github.com/hupe1980/magentic/core"
	"github.com/hupe1980/magentic/logging"
	"github.com/hupe1980/magentic/observability"
)

type runOptions struct {
	*rootOptions
	trace   bool
	quiet   bool
	timeout time.Duration
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Run a task against the configured team",
		Example: `  magentic run "Compare the licensing of the three most popular Go web frameworks"
  magentic run --trace -c team.yaml "Draft a release announcement"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().BoolVar(&opts.trace, "trace", false, "print OpenTelemetry spans to stderr")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "print only the final answer")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "abort the run after this duration (0 disables)")

	return cmd
}

func runTask(cmd *cobra.Command, opts *runOptions, task string) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := cfg.LoggerConfig()
	logCfg.Output = cmd.ErrOrStderr()
	logger, closer := logging.NewLogger(logCfg)
	defer closer.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	var tp trace.TracerProvider
	if opts.trace {
		sdkTP, err := observability.NewStdoutTracerProvider(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() {
			_ = sdkTP.Shutdown(context.WithoutCancel(ctx))
		}()
		tp = sdkTP
	}

	out := newTranscript(cmd.OutOrStdout(), opts.quiet)

	t, err := buildTeam(cfg, observability.Tracer(tp), logger, nil)
	if err != nil {
		return err
	}

	logger.Info("magentic.cli.run", "members", len(t.members), "provider", cfg.Model.Provider)

	answer, err := magentic.Run(ctx, core.NewUserMessage(task), t.members, t.manager, func(o *magentic.Options) {
		o.AgentResponseCallback = out.Response
		o.Logger = logger
		o.TracerProvider = tp
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("run timed out after %s: %w", opts.timeout, err)
		}
		out.Error(err)
		return err
	}

	out.Final(answer)
	return nil
}
