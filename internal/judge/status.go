//go:generate stringer -type=Status
//go:generate stringer -type=TestStatus -trimprefix=Test
//go:generate stringer -type=OutcomeStatus -trimprefix=Outcome
//go:generate stringer -type=CompileResult -trimprefix=Compile
//go:generate stringer -type=Phase -trimprefix=Phase

package judge

import (
	"github.com/pkg/errors"
)

// Status is the final verdict of a submission.
type Status int

const (
	// Pending - The submission has been accepted but not yet judged. This is
	// never the result of a judgment and only exists for persisted records.
	Pending Status = iota

	Accepted
	PartiallyAccepted
	WrongAnswer
	TimeLimitExceeded
	MemoryLimitExceeded
	RuntimeError
	CompileError

	// SystemError - The judge failed, e.g. an unknown language or the sandbox
	// could not be provisioned. This is never the fault of the submitter.
	SystemError
)

var statuses = func() map[string]Status {
	lookup := map[string]Status{}

	for status := Pending; status <= SystemError; status++ {
		lookup[status.String()] = status
	}

	return lookup
}()

// ParseStatus is the inverse of Status.String.
func ParseStatus(value string) (Status, error) {
	status, ok := statuses[value]

	if !ok {
		return Pending, errors.Errorf("unknown verdict status %q", value)
	}

	return status, nil
}

// Finished reports if the status is the result of a completed judgment.
func (i Status) Finished() bool {
	return i != Pending
}

// SubmitterFault reports if the verdict is caused by the submission itself
// rather than by a failure of the judge.
func (i Status) SubmitterFault() bool {
	switch i {
	case Pending, Accepted, SystemError:
		return false
	default:
		return true
	}
}

func (i Status) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Status) UnmarshalText(text []byte) error {
	status, err := ParseStatus(string(text))

	if err != nil {
		return err
	}

	*i = status
	return nil
}

// TestStatus is the judged result of a single test case.
type TestStatus int

const (
	TestAccepted TestStatus = iota
	TestWrongAnswer
	TestRuntimeError
	TestTimedOut
	TestMemoryExceeded
)

func (i TestStatus) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// final maps a failed test onto the submission verdict of matching kind.
func (i TestStatus) final() Status {
	switch i {
	case TestAccepted:
		return Accepted
	case TestWrongAnswer:
		return WrongAnswer
	case TestTimedOut:
		return TimeLimitExceeded
	case TestMemoryExceeded:
		return MemoryLimitExceeded
	default:
		return RuntimeError
	}
}

// OutcomeStatus classifies a single sandboxed invocation.
type OutcomeStatus int

const (
	OutcomeSuccess OutcomeStatus = iota
	OutcomeCompileError
	OutcomeRuntimeError
	OutcomeTimedOut
	OutcomeMemoryExceeded
	OutcomeSandboxError
)

// CompileResult is the result of the compile stage.
type CompileResult int

const (
	// CompileSkipped - The language is interpreted and has no compile step.
	CompileSkipped CompileResult = iota
	CompileSucceeded
	CompileFailed
)

// Phase is the state of a judgment as it moves through the judge.
type Phase int

const (
	PhaseQueued Phase = iota
	PhaseCompiling
	PhaseRunning
	PhaseFinished
)

func (i Phase) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Phase) UnmarshalText(text []byte) error {
	for phase := PhaseQueued; phase <= PhaseFinished; phase++ {
		if phase.String() == string(text) {
			*i = phase
			return nil
		}
	}

	return errors.Errorf("unknown judgment phase %q", text)
}
