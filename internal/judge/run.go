package judge

import (
	"context"
	"fmt"

	"compile-and-judge/internal/metrics"
	"compile-and-judge/internal/sandbox"
)

// RunStage executes the program once against a single test case.
type RunStage struct {
	executor sandbox.Executor
}

func NewRunStage(executor sandbox.Executor) *RunStage {
	return &RunStage{executor: executor}
}

// Run feeds the input of the test case to the program and classifies how it
// ended. Output is never compared here. A memory kill is only reported when
// the sandbox attributes the non-zero exit to it, otherwise the failure is
// a runtime error.
func (r *RunStage) Run(ctx context.Context, profile *sandbox.LanguageProfile, workspace *sandbox.Workspace,
	test TestCase, limits sandbox.ResourceLimits) *ExecutionOutcome {
	return r.run(ctx, profile, workspace, test, limits, 0)
}

func (r *RunStage) run(ctx context.Context, profile *sandbox.LanguageProfile, workspace *sandbox.Workspace,
	test TestCase, limits sandbox.ResourceLimits, index int) *ExecutionOutcome {
	execution, err := r.executor.Execute(ctx, &sandbox.Invocation{
		ID:        fmt.Sprintf("%s-run-%d", workspace.ID(), index),
		Image:     profile.RuntimeImage,
		Command:   profile.RunCommand,
		Workspace: workspace,
		Stdin:     test.Input,
		Timeout:   limits.WallTime,
		Limits:    limits,
	})

	if err != nil {
		metrics.SandboxFailures.WithLabelValues("run").Inc()
		return &ExecutionOutcome{Status: OutcomeSandboxError, ExitCode: -1, Err: err}
	}

	metrics.SandboxDuration.WithLabelValues(profile.ID, "run").
		Observe(float64(execution.Elapsed.Milliseconds()))

	outcome := &ExecutionOutcome{
		Status:     OutcomeSuccess,
		Stdout:     execution.Stdout,
		Stderr:     execution.Stderr,
		ExitCode:   execution.ExitCode,
		Elapsed:    execution.Elapsed,
		PeakMemory: execution.PeakMemory,
	}

	switch {
	case execution.TimedOut:
		outcome.Status = OutcomeTimedOut
	case execution.ExitCode != 0 && execution.OOMKilled:
		outcome.Status = OutcomeMemoryExceeded
	case execution.ExitCode != 0:
		outcome.Status = OutcomeRuntimeError
	}

	return outcome
}
