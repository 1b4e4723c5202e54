package judge

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"compile-and-judge/internal/metrics"
	"compile-and-judge/internal/sandbox"
)

// CompileStage builds the submission once, the artifact is left in the
// workspace for every following run.
type CompileStage struct {
	executor sandbox.Executor
	// The upper bound of the diagnostics carried back to the caller.
	maxDiagnostics int
}

func NewCompileStage(executor sandbox.Executor, maxDiagnostics int) *CompileStage {
	return &CompileStage{executor: executor, maxDiagnostics: maxDiagnostics}
}

// Compile runs the compile command of the language. Any non-zero exit or
// output on the diagnostic stream fails the compilation, as do exceeding
// the compile time or memory budget. The returned error is only set when the
// sandbox itself failed.
func (c *CompileStage) Compile(ctx context.Context, profile *sandbox.LanguageProfile,
	workspace *sandbox.Workspace, limits sandbox.ResourceLimits) (*CompileOutcome, error) {
	if profile.Interpreted() {
		return &CompileOutcome{Result: CompileSkipped}, nil
	}

	execution, err := c.executor.Execute(ctx, &sandbox.Invocation{
		ID:        fmt.Sprintf("%s-compile", workspace.ID()),
		Image:     profile.RuntimeImage,
		Command:   profile.CompileCommand,
		Workspace: workspace,
		Timeout:   limits.CompileTime,
		Limits:    limits,
	})

	if err != nil {
		metrics.SandboxFailures.WithLabelValues("compile").Inc()
		return nil, errors.Wrap(err, "failed to compile submission")
	}

	metrics.SandboxDuration.WithLabelValues(profile.ID, "compile").
		Observe(float64(execution.Elapsed.Milliseconds()))

	outcome := &CompileOutcome{Result: CompileSucceeded, Elapsed: execution.Elapsed}

	switch {
	case execution.TimedOut:
		outcome.Result = CompileFailed
		outcome.Diagnostics = fmt.Sprintf("Compilation exceeded the time limit of %s", limits.CompileTime)

	case execution.OOMKilled:
		outcome.Result = CompileFailed
		outcome.Diagnostics = fmt.Sprintf("Compilation exceeded the memory limit of %s", limits.Memory)

	case execution.ExitCode != 0 || strings.TrimSpace(execution.Stderr) != "":
		outcome.Result = CompileFailed
		outcome.Diagnostics = compilerDiagnostics(execution)
	}

	if outcome.Result == CompileFailed {
		outcome.Diagnostics = Truncate(outcome.Diagnostics, c.maxDiagnostics)

		log.Debug().
			Str("workspace", workspace.ID()).
			Str("language", profile.ID).
			Int("exitCode", execution.ExitCode).
			Msg("compilation failed")
	}

	return outcome, nil
}

// compilerDiagnostics prefers the diagnostic stream, some compilers only
// report problems on standard output.
func compilerDiagnostics(execution *sandbox.Execution) string {
	if diagnostics := strings.TrimSpace(execution.Stderr); diagnostics != "" {
		return diagnostics
	}

	if diagnostics := strings.TrimSpace(execution.Stdout); diagnostics != "" {
		return diagnostics
	}

	return fmt.Sprintf("Compiler exited with code %d", execution.ExitCode)
}
