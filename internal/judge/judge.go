package judge

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"

	"compile-and-judge/internal/metrics"
	"compile-and-judge/internal/sandbox"
)

// Policy decides what happens after the first failing test case.
type Policy int

const (
	// StopOnFirstFailure ends the judgment at the first test that is not
	// accepted, the verdict is the kind of that failure.
	StopOnFirstFailure Policy = iota
	// ContinueOnFailure runs every test case to collect partial credit. Only
	// a sandbox failure stops the judgment early.
	ContinueOnFailure
)

const (
	DefaultMessageLimit = 8000
	// The bounds of the expected and received output shown for a wrong answer.
	excerptLines   = 32
	excerptColumns = 200
	// The bound of the diagnostic output shown for a runtime error.
	runtimeDiagnosticsLimit = 2000
)

// Judge drives the compile stage once and the run stage across every test
// case of a submission, producing the final verdict.
type Judge struct {
	registry   *sandbox.Registry
	workspaces *sandbox.Workspaces
	profile    *sandbox.Profile

	compiler *CompileStage
	runner   *RunStage

	policy       Policy
	progress     ProgressReporter
	messageLimit int
}

type Option func(j *Judge)

func WithPolicy(policy Policy) Option {
	return func(j *Judge) { j.policy = policy }
}

func WithProgressReporter(reporter ProgressReporter) Option {
	return func(j *Judge) { j.progress = reporter }
}

func WithMessageLimit(limit int) Option {
	return func(j *Judge) { j.messageLimit = limit }
}

func New(registry *sandbox.Registry, workspaces *sandbox.Workspaces, executor sandbox.Executor,
	profile *sandbox.Profile, options ...Option) *Judge {
	judge := &Judge{
		registry:     registry,
		workspaces:   workspaces,
		profile:      profile,
		policy:       StopOnFirstFailure,
		progress:     nopProgress{},
		messageLimit: DefaultMessageLimit,
	}

	for _, option := range options {
		option(judge)
	}

	judge.compiler = NewCompileStage(executor, judge.messageLimit)
	judge.runner = NewRunStage(executor)

	return judge
}

// Evaluate judges the submission to completion. It never fails, every fault
// of the judge itself is reported as a SystemError verdict.
func (j *Judge) Evaluate(ctx context.Context, submission *Submission) (verdict *SubmissionVerdict) {
	started := time.Now()

	metrics.ActiveJudgments.Inc()
	defer metrics.ActiveJudgments.Dec()

	defer func() {
		if recovered := recover(); recovered != nil {
			log.Error().
				Object("submission", submission).
				Interface("panic", recovered).
				Bytes("stack", debug.Stack()).
				Msg("judgment panicked")

			verdict = j.systemError(submission, fmt.Sprintf("Internal error while judging: %v", recovered))
		}

		verdict.Message = Truncate(verdict.Message, j.messageLimit)
		j.finish(ctx, submission, verdict, time.Since(started))
	}()

	j.report(ctx, submission, PhaseQueued, 0)

	profile, err := j.registry.Resolve(submission.Language)

	if err != nil {
		return j.systemError(submission, fmt.Sprintf("Unsupported language: %s", submission.Language))
	}

	if len(submission.Tests) == 0 {
		return j.systemError(submission, "No test cases configured")
	}

	limits := submission.Limits.WithDefaults(j.profile.DefaultLimits).Clamp(j.profile.MaximumLimits)

	workspace, err := j.workspaces.Acquire()

	if err != nil {
		log.Error().Err(err).Object("submission", submission).Msg("failed to acquire workspace")
		return j.systemError(submission, "Failed to prepare the sandbox workspace")
	}

	defer func() {
		if closeErr := workspace.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("workspace", workspace.ID()).Msg("failed to release workspace")
		}
	}()

	if err := workspace.WriteFile(profile.SourceFilename, []byte(submission.SourceCode)); err != nil {
		log.Error().Err(err).Object("submission", submission).Msg("failed to write source code")
		return j.systemError(submission, "Failed to prepare the sandbox workspace")
	}

	j.report(ctx, submission, PhaseCompiling, 0)

	compiled, err := j.compiler.Compile(ctx, profile, workspace, limits)

	if err != nil {
		log.Error().Err(err).Object("submission", submission).Msg("sandbox failed during compilation")
		return j.systemError(submission, "The sandbox failed while compiling the submission")
	}

	verdict = &SubmissionVerdict{
		SubmissionID: submission.ID,
		ScoreTotal:   submission.TotalPoints(),
	}

	if compiled.Result == CompileFailed {
		verdict.Status = CompileError
		verdict.Message = compiled.Diagnostics
		return verdict
	}

	return j.runTests(ctx, submission, profile, workspace, limits, verdict)
}

func (j *Judge) runTests(ctx context.Context, submission *Submission, profile *sandbox.LanguageProfile,
	workspace *sandbox.Workspace, limits sandbox.ResourceLimits, verdict *SubmissionVerdict) *SubmissionVerdict {
	var failure *TestVerdict

	for i, test := range submission.Tests {
		index := i + 1
		j.report(ctx, submission, PhaseRunning, index)

		outcome := j.runner.run(ctx, profile, workspace, test, limits, index)

		if outcome.Status == OutcomeSandboxError {
			log.Error().
				Err(outcome.Err).
				Object("submission", submission).
				Int("test", index).
				Msg("sandbox failed during test execution")

			verdict.Status = SystemError
			verdict.ScoreEarned = 0
			verdict.Message = fmt.Sprintf("The sandbox failed while running test #%d", index)
			verdict.FirstFailingTestIndex = nil
			return verdict
		}

		result := judgeTest(index, test, outcome)
		verdict.Tests = append(verdict.Tests, result)

		verdict.TotalTimeMs += outcome.Elapsed.Milliseconds()
		if peak := outcome.PeakMemory.Kilobytes(); peak > verdict.PeakMemoryKb {
			verdict.PeakMemoryKb = peak
		}

		if result.Status == TestAccepted {
			verdict.ScoreEarned += test.Points
			continue
		}

		if failure == nil {
			first := result
			failure = &first
			verdict.FirstFailingTestIndex = &first.Index
		}

		if j.policy == StopOnFirstFailure {
			break
		}
	}

	switch {
	case failure == nil && verdict.ScoreEarned == verdict.ScoreTotal:
		verdict.Status = Accepted
		verdict.Message = "Accepted"

	case failure == nil:
		verdict.Status = PartiallyAccepted
		verdict.Message = fmt.Sprintf("Earned %d of %d points", verdict.ScoreEarned, verdict.ScoreTotal)

	case j.policy == ContinueOnFailure && verdict.ScoreEarned > 0:
		verdict.Status = PartiallyAccepted
		verdict.Message = fmt.Sprintf("Earned %d of %d points\n%s", verdict.ScoreEarned, verdict.ScoreTotal, failure.Diff)

	default:
		verdict.Status = failure.Status.final()
		verdict.Message = failure.Diff
	}

	return verdict
}

// judgeTest decides the result of a single test from how the program ended
// and what it printed.
func judgeTest(index int, test TestCase, outcome *ExecutionOutcome) TestVerdict {
	result := TestVerdict{
		Index:      index,
		Status:     TestAccepted,
		Elapsed:    outcome.Elapsed,
		PeakMemory: outcome.PeakMemory,
	}

	switch outcome.Status {
	case OutcomeTimedOut:
		result.Status = TestTimedOut
		result.Diff = fmt.Sprintf("Test #%d exceeded time limit", index)

	case OutcomeMemoryExceeded:
		result.Status = TestMemoryExceeded
		result.Diff = fmt.Sprintf("Test #%d exceeded memory limit", index)

	case OutcomeRuntimeError, OutcomeCompileError:
		result.Status = TestRuntimeError
		result.Diff = fmt.Sprintf("Test #%d runtime error (exit code %d):\n%s",
			index, outcome.ExitCode, Truncate(outcome.Stderr, runtimeDiagnosticsLimit))

	default:
		expected := Normalize(test.ExpectedOutput)
		actual := Normalize(outcome.Stdout)

		if expected != actual {
			result.Status = TestWrongAnswer
			result.Diff = fmt.Sprintf("Wrong Answer on test #%d\nExpected:\n%s\nGot:\n%s", index,
				Excerpt(expected, excerptLines, excerptColumns),
				Excerpt(actual, excerptLines, excerptColumns))
		}
	}

	return result
}

func (j *Judge) systemError(submission *Submission, message string) *SubmissionVerdict {
	return &SubmissionVerdict{
		SubmissionID: submission.ID,
		Status:       SystemError,
		ScoreTotal:   submission.TotalPoints(),
		Message:      message,
	}
}

func (j *Judge) report(ctx context.Context, submission *Submission, phase Phase, test int) {
	event := &ProgressEvent{
		SubmissionID: submission.ID,
		Phase:        phase,
		Test:         test,
		TotalTests:   len(submission.Tests),
		Timestamp:    time.Now().UTC(),
	}

	if err := j.progress.Progress(ctx, event); err != nil {
		log.Warn().Err(err).Str("submission", submission.ID).Str("phase", phase.String()).
			Msg("failed to report progress")
	}
}

func (j *Judge) finish(ctx context.Context, submission *Submission, verdict *SubmissionVerdict, elapsed time.Duration) {
	// unknown languages are collapsed so untrusted input cannot grow the
	// label space.
	language := "unknown"
	if _, err := j.registry.Resolve(submission.Language); err == nil {
		language = submission.Language
	}

	metrics.VerdictsTotal.WithLabelValues(language, verdict.Status.String()).Inc()
	metrics.JudgmentDuration.WithLabelValues(language).Observe(float64(elapsed.Milliseconds()))

	if verdict.PeakMemoryKb > 0 {
		metrics.PeakMemory.WithLabelValues(language).Observe(float64(verdict.PeakMemoryKb))
	}

	event := &ProgressEvent{
		SubmissionID: submission.ID,
		Phase:        PhaseFinished,
		TotalTests:   len(submission.Tests),
		Verdict:      verdict,
		Timestamp:    time.Now().UTC(),
	}

	if err := j.progress.Progress(ctx, event); err != nil {
		log.Warn().Err(err).Str("submission", submission.ID).Msg("failed to report progress")
	}

	log.Info().
		Object("submission", submission).
		Object("verdict", verdict).
		Dur("elapsed", elapsed).
		Msg("judgment finished")
}
