package judge

import (
	"time"

	"github.com/rs/zerolog"

	"compile-and-judge/internal/memory"
	"compile-and-judge/internal/sandbox"
)

type TestCase struct {
	// The data fed to the standard input of the program.
	Input string `json:"input"`
	// The output the program must produce, compared after normalization.
	ExpectedOutput string `json:"expected_output"`
	// The weight of the test case, earned only when the test is accepted.
	Points int `json:"points" validate:"gte=0"`
}

// Submission is the unit of work of the judge. It is treated as read only for
// the entire judgment.
type Submission struct {
	// The internal id of the submission, used to relate the verdict back to
	// the request.
	ID string
	// The key of the language within the registry.
	Language string
	// The untrusted source code being judged.
	SourceCode string
	// The ordered test cases, the order defines which test is reported as
	// the first failing one.
	Tests []TestCase
	// The requested limits, unset values fall back to the sandbox profile.
	Limits sandbox.ResourceLimits
}

func (s *Submission) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", s.ID).
		Str("language", s.Language).
		Int("tests", len(s.Tests)).
		Int("sourceBytes", len(s.SourceCode))
}

// TotalPoints is the sum of the points of every test case.
func (s *Submission) TotalPoints() int {
	total := 0

	for _, test := range s.Tests {
		total += test.Points
	}

	return total
}

// ExecutionOutcome is the classified result of one sandboxed invocation.
type ExecutionOutcome struct {
	Status     OutcomeStatus
	Stdout     string
	Stderr     string
	ExitCode   int
	Elapsed    time.Duration
	PeakMemory memory.Memory

	// The sandbox failure, only set for OutcomeSandboxError.
	Err error
}

// CompileOutcome is the result of the compile stage.
type CompileOutcome struct {
	Result CompileResult
	// The bounded compiler diagnostics, only set for CompileFailed.
	Diagnostics string
	Elapsed     time.Duration
}

// TestVerdict is the judged result of a single test case.
type TestVerdict struct {
	// The 1-based position of the test within the submission.
	Index      int           `json:"index"`
	Status     TestStatus    `json:"status"`
	Elapsed    time.Duration `json:"elapsed"`
	PeakMemory memory.Memory `json:"peak_memory"`
	// A bounded excerpt explaining the failure.
	Diff string `json:"diff,omitempty"`
}

// SubmissionVerdict is the externally visible result of a judgment.
type SubmissionVerdict struct {
	SubmissionID string `json:"submission_id"`
	Status       Status `json:"status"`
	ScoreEarned  int    `json:"score_earned"`
	ScoreTotal   int    `json:"score_total"`
	TotalTimeMs  int64  `json:"total_time_ms"`
	PeakMemoryKb int64  `json:"peak_memory_kb"`
	Message      string `json:"message"`
	// The 1-based position of the first failing test case, if any.
	FirstFailingTestIndex *int `json:"first_failing_test_index,omitempty"`

	// The per test results, internal to the judge and never part of the
	// reported verdict.
	Tests []TestVerdict `json:"-"`
}

func (v *SubmissionVerdict) MarshalZerologObject(e *zerolog.Event) {
	e.Str("submissionId", v.SubmissionID).
		Str("status", v.Status.String()).
		Int("scoreEarned", v.ScoreEarned).
		Int("scoreTotal", v.ScoreTotal).
		Int64("totalTimeMs", v.TotalTimeMs).
		Int64("peakMemoryKb", v.PeakMemoryKb)

	if v.FirstFailingTestIndex != nil {
		e.Int("firstFailingTest", *v.FirstFailingTestIndex)
	}
}
